package agent

import (
	"fmt"

	"github.com/ashbuilds/computer-use/pkg/proto"
	"github.com/ashbuilds/computer-use/pkg/tools"
)

// maybePrependSystem wraps a tool's system note in a marker and prefixes it
// to the given text so the model can tell operator guidance apart from tool
// output.
func maybePrependSystem(system, text string) string {
	if system == "" {
		return text
	}
	return fmt.Sprintf("<system>%s</system>\n%s", system, text)
}

// assembleToolResult maps one tool result plus its correlating tool_use id
// into a tool_result content block.
//
// A failed result carries a single text block holding the error. A
// successful result carries a text block for the output (if any) followed
// by an image block (if any); an entirely empty result is valid and yields
// empty content. The system note is prefixed to the first text block only.
func assembleToolResult(toolUseID string, result *tools.Result) proto.ContentBlock {
	if result.Failed() {
		content := []proto.ContentBlock{
			proto.NewTextBlock(maybePrependSystem(result.System, result.Error)),
		}
		return proto.NewToolResultBlock(toolUseID, content, true)
	}

	var content []proto.ContentBlock
	if result.Output != "" {
		content = append(content, proto.NewTextBlock(maybePrependSystem(result.System, result.Output)))
	}
	if result.Image != nil {
		content = append(content, proto.NewImageBlock(result.Image.MediaType, result.Image.Data))
	}
	return proto.NewToolResultBlock(toolUseID, content, false)
}
