package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashbuilds/computer-use/pkg/logx"
)

// Registry owns the name -> Tool mapping, built once at construction from a
// fixed list. It is read-only after construction and safe for reuse across
// conversations.
type Registry struct {
	tools  map[string]Tool
	order  []string
	logger *logx.Logger
}

// NewRegistry builds a registry from the given tools. Duplicate names
// overwrite silently; the last registration wins.
func NewRegistry(list ...Tool) *Registry {
	r := &Registry{
		tools:  make(map[string]Tool, len(list)),
		logger: logx.NewLogger("tool-registry"),
	}
	for _, tool := range list {
		name := tool.Name()
		if _, exists := r.tools[name]; !exists {
			r.order = append(r.order, name)
		}
		r.tools[name] = tool
	}
	return r
}

// Definitions returns the capability descriptors for every registered tool,
// each exactly once, in registration order.
func (r *Registry) Definitions() []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Dispatch looks up name and executes the tool with the given input. It never
// returns an error: an unknown name or a failing tool is converted to a
// failure Result so the model can react on the next turn.
func (r *Registry) Dispatch(ctx context.Context, name string, input map[string]any) *Result {
	tool, ok := r.tools[name]
	if !ok {
		return &Result{Error: fmt.Sprintf("%s is invalid", name)}
	}

	result, err := tool.Exec(ctx, input)
	if err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			r.logger.Warn("tool %s rejected input: %v", name, err)
			return &Result{Error: err.Error()}
		}
		r.logger.Error("tool %s failed: %v", name, err)
		return &Result{Error: fmt.Sprintf("unexpected error: %v", err)}
	}

	if result == nil {
		result = &Result{}
	}
	if result.Failed() {
		r.logger.Warn("tool %s returned failure: %s", name, result.Error)
	}
	return result
}
