package proto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolUsesPreservesOrder(t *testing.T) {
	msg := NewAssistantMessage(
		NewTextBlock("thinking"),
		NewToolUseBlock("toolu_01", "computer", map[string]any{"action": "screenshot"}),
		NewTextBlock("more"),
		NewToolUseBlock("toolu_02", "bash", map[string]any{"command": "ls"}),
	)

	uses := msg.ToolUses()
	require.Len(t, uses, 2)
	assert.Equal(t, "toolu_01", uses[0].ID)
	assert.Equal(t, "toolu_02", uses[1].ID)
}

func TestToolUsesEmpty(t *testing.T) {
	msg := NewAssistantMessage(NewTextBlock("done"))
	assert.Empty(t, msg.ToolUses())
}

func TestContentBlockJSONShape(t *testing.T) {
	block := NewToolResultBlock("toolu_01", []ContentBlock{
		NewTextBlock("ok"),
		NewImageBlock("image/png", "aGVsbG8="),
	}, false)

	data, err := json.Marshal(block)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "tool_result", decoded["type"])
	assert.Equal(t, "toolu_01", decoded["tool_use_id"])
	// is_error=false must be omitted, not serialized.
	_, present := decoded["is_error"]
	assert.False(t, present)

	content, ok := decoded["content"].([]any)
	require.True(t, ok)
	require.Len(t, content, 2)

	image, ok := content[1].(map[string]any)
	require.True(t, ok)
	source, ok := image["source"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "base64", source["type"])
	assert.Equal(t, "image/png", source["media_type"])
}
