// Package agent implements the sampling loop that mediates between the
// Anthropic Messages API and the local tools.
package agent

import (
	"context"

	"github.com/ashbuilds/computer-use/pkg/proto"
	"github.com/ashbuilds/computer-use/pkg/tools"
)

// CompletionRequest represents a request to generate a completion.
//
//nolint:govet // fieldalignment: fields ordered for clarity
type CompletionRequest struct {
	System    string
	Messages  []proto.Message
	Tools     []tools.ToolDefinition
	MaxTokens int
}

// Usage reports token accounting for one completion.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// CompletionResponse represents a response from a completion request. Content
// preserves the order and identity of the blocks returned by the model.
type CompletionResponse struct {
	Content    []proto.ContentBlock
	StopReason string
	Usage      Usage
}

// LLMClient defines the interface for language model interactions.
type LLMClient interface {
	// Complete generates a completion synchronously.
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)

	// GetModelName returns the model identifier used for requests.
	GetModelName() string
}
