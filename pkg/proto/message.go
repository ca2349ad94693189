// Package proto defines the conversation data model exchanged with the
// Anthropic Messages API: messages, content blocks, and image sources.
package proto

// Role identifies the author of a message.
type Role string

const (
	// RoleUser indicates a message produced locally (the initial request or
	// a batch of tool results).
	RoleUser Role = "user"
	// RoleAssistant indicates a message returned by the model.
	RoleAssistant Role = "assistant"
)

// BlockType identifies the variant of a ContentBlock.
type BlockType string

const (
	BlockTypeText       BlockType = "text"
	BlockTypeToolUse    BlockType = "tool_use"
	BlockTypeToolResult BlockType = "tool_result"
	BlockTypeImage      BlockType = "image"
)

// EncodingBase64 is the only image encoding carried on the wire.
const EncodingBase64 = "base64"

// ImageSource holds an encoded image payload.
type ImageSource struct {
	Encoding  string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// ContentBlock is a tagged union over the block variants. Only the fields
// matching Type are populated; the rest stay at their zero values.
//
//nolint:govet // fieldalignment: union layout grouped by variant for clarity
type ContentBlock struct {
	Type BlockType `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// tool_use (emitted only by the model)
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// tool_result (emitted only by the loop, correlated via ToolUseID)
	ToolUseID string         `json:"tool_use_id,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
	Content   []ContentBlock `json:"content,omitempty"`

	// image
	Source *ImageSource `json:"source,omitempty"`
}

// Message is one turn in the conversation. Conversation state is an
// append-only ordered sequence of Messages; appended messages are never
// rewritten except for in-place image eviction inside tool_result content.
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// NewTextBlock creates a text content block.
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockTypeText, Text: text}
}

// NewImageBlock creates a base64 image content block.
func NewImageBlock(mediaType, data string) ContentBlock {
	return ContentBlock{
		Type: BlockTypeImage,
		Source: &ImageSource{
			Encoding:  EncodingBase64,
			MediaType: mediaType,
			Data:      data,
		},
	}
}

// NewToolUseBlock creates a tool_use content block.
func NewToolUseBlock(id, name string, input map[string]any) ContentBlock {
	return ContentBlock{Type: BlockTypeToolUse, ID: id, Name: name, Input: input}
}

// NewToolResultBlock creates a tool_result content block correlated to the
// originating tool_use id.
func NewToolResultBlock(toolUseID string, content []ContentBlock, isError bool) ContentBlock {
	return ContentBlock{
		Type:      BlockTypeToolResult,
		ToolUseID: toolUseID,
		IsError:   isError,
		Content:   content,
	}
}

// NewUserMessage creates a user message from the given blocks.
func NewUserMessage(blocks ...ContentBlock) Message {
	return Message{Role: RoleUser, Content: blocks}
}

// NewAssistantMessage creates an assistant message from the given blocks.
func NewAssistantMessage(blocks ...ContentBlock) Message {
	return Message{Role: RoleAssistant, Content: blocks}
}

// ToolUses returns the tool_use blocks of a message in content order.
func (m *Message) ToolUses() []ContentBlock {
	var uses []ContentBlock
	for i := range m.Content {
		if m.Content[i].Type == BlockTypeToolUse {
			uses = append(uses, m.Content[i])
		}
	}
	return uses
}
