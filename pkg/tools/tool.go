// Package tools provides the effector contract and implementations that act
// on the local environment: pointer/keyboard control, file editing, and shell
// execution. The orchestration loop treats all tools uniformly through the
// Tool interface and the Registry.
package tools

import (
	"context"
	"fmt"
)

// Property describes a single input parameter in a tool's schema.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// InputSchema is the JSON schema advertised for a tool's input.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// ToolDefinition is the capability descriptor advertised to the model.
// Name must be unique across all tools registered together.
type ToolDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// ImageData holds a base64-encoded image produced by a tool.
type ImageData struct {
	Data      string
	MediaType string
}

// Result is the outcome of one tool execution. Error and Output/Image may
// coexist in representation, but a non-empty Error marks the result as a
// failure regardless of the other fields.
type Result struct {
	Output string
	Error  string
	Image  *ImageData
	System string
}

// Failed reports whether the result represents a failure.
func (r *Result) Failed() bool {
	return r.Error != ""
}

// Tool is the capability interface implemented by every effector.
type Tool interface {
	// Name returns the unique tool name.
	Name() string

	// Definition returns the capability descriptor for the model.
	Definition() ToolDefinition

	// Exec executes the tool with the given arguments. A returned error is
	// folded into a failure Result by the Registry; it never aborts the
	// conversation.
	Exec(ctx context.Context, args map[string]any) (*Result, error)
}

// ValidationError signals that tool input was missing or malformed. It is
// distinguished from unexpected errors only for local logging; both surface
// identically as failure results to the model.
type ValidationError struct {
	Message string
}

// NewValidationError creates a validation error with a formatted message.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}
