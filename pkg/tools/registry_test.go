package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTool is a configurable tool for registry tests.
type mockTool struct {
	name     string
	execFunc func(ctx context.Context, args map[string]any) (*Result, error)
}

func (m *mockTool) Name() string { return m.name }

func (m *mockTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        m.name,
		Description: "mock tool",
		InputSchema: InputSchema{Type: "object"},
	}
}

func (m *mockTool) Exec(ctx context.Context, args map[string]any) (*Result, error) {
	return m.execFunc(ctx, args)
}

func echoTool() *mockTool {
	return &mockTool{
		name: "echo",
		execFunc: func(_ context.Context, args map[string]any) (*Result, error) {
			text, _ := args["text"].(string)
			return &Result{Output: text}, nil
		},
	}
}

func TestDispatchEcho(t *testing.T) {
	registry := NewRegistry(echoTool())

	result := registry.Dispatch(context.Background(), "echo", map[string]any{"text": "hi"})
	require.NotNil(t, result)
	assert.False(t, result.Failed())
	assert.Equal(t, "hi", result.Output)
}

func TestDispatchUnknownTool(t *testing.T) {
	registry := NewRegistry(echoTool())

	result := registry.Dispatch(context.Background(), "missing", nil)
	require.NotNil(t, result)
	assert.True(t, result.Failed())
	assert.Equal(t, "missing is invalid", result.Error)
}

func TestDispatchValidationError(t *testing.T) {
	tool := &mockTool{
		name: "strict",
		execFunc: func(_ context.Context, _ map[string]any) (*Result, error) {
			return nil, NewValidationError("text is required")
		},
	}
	registry := NewRegistry(tool)

	result := registry.Dispatch(context.Background(), "strict", nil)
	assert.True(t, result.Failed())
	assert.Equal(t, "text is required", result.Error)
}

func TestDispatchUnexpectedError(t *testing.T) {
	tool := &mockTool{
		name: "flaky",
		execFunc: func(_ context.Context, _ map[string]any) (*Result, error) {
			return nil, errors.New("disk on fire")
		},
	}
	registry := NewRegistry(tool)

	result := registry.Dispatch(context.Background(), "flaky", nil)
	assert.True(t, result.Failed())
	assert.Contains(t, result.Error, "disk on fire")
}

func TestDispatchNilResultNormalized(t *testing.T) {
	tool := &mockTool{
		name: "silent",
		execFunc: func(_ context.Context, _ map[string]any) (*Result, error) {
			return nil, nil
		},
	}
	registry := NewRegistry(tool)

	result := registry.Dispatch(context.Background(), "silent", nil)
	require.NotNil(t, result)
	assert.False(t, result.Failed())
	assert.Empty(t, result.Output)
}

func TestDefinitionsListsEveryToolOnce(t *testing.T) {
	registry := NewRegistry(echoTool(), &mockTool{
		name:     "other",
		execFunc: func(_ context.Context, _ map[string]any) (*Result, error) { return &Result{}, nil },
	})

	defs := registry.Definitions()
	require.Len(t, defs, 2)
	names := []string{defs[0].Name, defs[1].Name}
	assert.ElementsMatch(t, []string{"echo", "other"}, names)
}

func TestDuplicateNamesOverwriteSilently(t *testing.T) {
	first := &mockTool{
		name: "dup",
		execFunc: func(_ context.Context, _ map[string]any) (*Result, error) {
			return &Result{Output: "first"}, nil
		},
	}
	second := &mockTool{
		name: "dup",
		execFunc: func(_ context.Context, _ map[string]any) (*Result, error) {
			return &Result{Output: "second"}, nil
		},
	}
	registry := NewRegistry(first, second)

	require.Len(t, registry.Definitions(), 1)
	result := registry.Dispatch(context.Background(), "dup", nil)
	assert.Equal(t, "second", result.Output)
}
