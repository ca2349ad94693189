package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ashbuilds/computer-use/pkg/proto"
	"github.com/ashbuilds/computer-use/pkg/tools"
)

// ClaudeClient wraps the Anthropic API client to implement the LLMClient
// interface.
//
//nolint:govet // Simple client struct, logical grouping preferred
type ClaudeClient struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewClaudeClient creates a new Claude client for the given model.
func NewClaudeClient(apiKey, model string) *ClaudeClient {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &ClaudeClient{
		client: client,
		model:  anthropic.Model(model),
	}
}

// Complete implements the LLMClient interface.
//
//nolint:gocritic // passing CompletionRequest by value matches interface
func (c *ClaudeClient) Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error) {
	messages, err := buildMessages(in.Messages)
	if err != nil {
		return CompletionResponse{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: int64(in.MaxTokens),
		Messages:  messages,
	}
	if in.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: in.System}}
	}
	if len(in.Tools) > 0 {
		params.Tools = buildTools(in.Tools)
		params.ToolChoice = anthropic.ToolChoiceUnionParam{
			OfAuto: &anthropic.ToolChoiceAutoParam{},
		}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("anthropic request failed: %w", err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return CompletionResponse{}, fmt.Errorf("received empty response from Anthropic API")
	}

	content := make([]proto.ContentBlock, 0, len(resp.Content))
	for i := range resp.Content {
		block := &resp.Content[i]
		switch block.Type {
		case "text":
			textBlock := block.AsText()
			content = append(content, proto.NewTextBlock(textBlock.Text))
		case "tool_use":
			toolUseBlock := block.AsToolUse()
			var input map[string]any
			if len(toolUseBlock.Input) > 0 {
				if err := json.Unmarshal(toolUseBlock.Input, &input); err != nil {
					return CompletionResponse{}, fmt.Errorf("failed to parse tool input: %w", err)
				}
			}
			content = append(content, proto.NewToolUseBlock(toolUseBlock.ID, toolUseBlock.Name, input))
		default:
			// Unknown block types (thinking, server tool results) are carried
			// through as opaque text so the conversation stays well-formed.
			if raw := block.RawJSON(); raw != "" {
				content = append(content, proto.NewTextBlock(raw))
			}
		}
	}

	return CompletionResponse{
		Content:    content,
		StopReason: string(resp.StopReason),
		Usage: Usage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}

// GetModelName returns the model name for this client.
func (c *ClaudeClient) GetModelName() string {
	return string(c.model)
}

// buildMessages converts the conversation to Anthropic message parameters.
func buildMessages(messages []proto.Message) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for i := range messages {
		msg := &messages[i]
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Content))
		for j := range msg.Content {
			block, err := buildContentBlock(&msg.Content[j])
			if err != nil {
				return nil, fmt.Errorf("message %d block %d: %w", i, j, err)
			}
			blocks = append(blocks, block)
		}
		if msg.Role == proto.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out, nil
}

func buildContentBlock(block *proto.ContentBlock) (anthropic.ContentBlockParamUnion, error) {
	switch block.Type {
	case proto.BlockTypeText:
		return anthropic.NewTextBlock(block.Text), nil
	case proto.BlockTypeImage:
		if block.Source == nil {
			return anthropic.ContentBlockParamUnion{}, fmt.Errorf("image block has no source")
		}
		return anthropic.NewImageBlockBase64(block.Source.MediaType, block.Source.Data), nil
	case proto.BlockTypeToolUse:
		return anthropic.NewToolUseBlock(block.ID, block.Input, block.Name), nil
	case proto.BlockTypeToolResult:
		return buildToolResultBlock(block)
	default:
		return anthropic.ContentBlockParamUnion{}, fmt.Errorf("unsupported block type %q", block.Type)
	}
}

func buildToolResultBlock(block *proto.ContentBlock) (anthropic.ContentBlockParamUnion, error) {
	result := anthropic.ToolResultBlockParam{
		ToolUseID: block.ToolUseID,
	}
	if block.IsError {
		result.IsError = anthropic.Bool(true)
	}
	for i := range block.Content {
		inner := &block.Content[i]
		switch inner.Type {
		case proto.BlockTypeText:
			result.Content = append(result.Content, anthropic.ToolResultBlockParamContentUnion{
				OfText: &anthropic.TextBlockParam{Text: inner.Text},
			})
		case proto.BlockTypeImage:
			if inner.Source == nil {
				return anthropic.ContentBlockParamUnion{}, fmt.Errorf("image block has no source")
			}
			result.Content = append(result.Content, anthropic.ToolResultBlockParamContentUnion{
				OfImage: &anthropic.ImageBlockParam{
					Source: anthropic.ImageBlockParamSourceUnion{
						OfBase64: &anthropic.Base64ImageSourceParam{
							Data:      inner.Source.Data,
							MediaType: anthropic.Base64ImageSourceMediaType(inner.Source.MediaType),
						},
					},
				},
			})
		default:
			return anthropic.ContentBlockParamUnion{}, fmt.Errorf("unsupported tool_result inner block type %q", inner.Type)
		}
	}
	return anthropic.ContentBlockParamUnion{OfToolResult: &result}, nil
}

// buildTools converts tool definitions to Anthropic tool parameters.
func buildTools(defs []tools.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for i := range defs {
		def := &defs[i]

		var properties any
		if len(def.InputSchema.Properties) > 0 {
			props := make(map[string]any, len(def.InputSchema.Properties))
			for name, prop := range def.InputSchema.Properties {
				propMap := map[string]any{"type": prop.Type}
				if prop.Description != "" {
					propMap["description"] = prop.Description
				}
				if len(prop.Enum) > 0 {
					propMap["enum"] = prop.Enum
				}
				props[name] = propMap
			}
			properties = props
		}

		param := anthropic.ToolParam{
			Name:        def.Name,
			Description: anthropic.String(def.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type:       "object",
				Properties: properties,
				Required:   def.InputSchema.Required,
			},
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &param})
	}
	return out
}
