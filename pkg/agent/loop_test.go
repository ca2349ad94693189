package agent

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashbuilds/computer-use/pkg/logx"
	"github.com/ashbuilds/computer-use/pkg/proto"
	"github.com/ashbuilds/computer-use/pkg/tools"
)

// mockLLMClient returns scripted responses in order and records every
// request it receives.
type mockLLMClient struct {
	responses []CompletionResponse
	errs      []error
	requests  []CompletionRequest
	calls     int
}

func (m *mockLLMClient) Complete(_ context.Context, in CompletionRequest) (CompletionResponse, error) {
	m.requests = append(m.requests, in)
	idx := m.calls
	m.calls++
	if idx < len(m.errs) && m.errs[idx] != nil {
		return CompletionResponse{}, m.errs[idx]
	}
	if idx >= len(m.responses) {
		return CompletionResponse{}, fmt.Errorf("mock exhausted after %d calls", len(m.responses))
	}
	return m.responses[idx], nil
}

func (m *mockLLMClient) GetModelName() string { return "mock-model" }

// echoTool returns its text argument as output.
type echoTool struct{}

func (echoTool) Name() string { return "echo" }

func (echoTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "echo",
		Description: "Echo the given text.",
		InputSchema: tools.InputSchema{
			Type: "object",
			Properties: map[string]tools.Property{
				"text": {Type: "string"},
			},
			Required: []string{"text"},
		},
	}
}

func (echoTool) Exec(_ context.Context, args map[string]any) (*tools.Result, error) {
	text, _ := args["text"].(string)
	return &tools.Result{Output: text}, nil
}

func TestRunTwoTurnConversationShape(t *testing.T) {
	client := &mockLLMClient{
		responses: []CompletionResponse{
			{
				Content: []proto.ContentBlock{
					proto.NewTextBlock("Echoing your greeting."),
					proto.NewToolUseBlock("toolu_001", "echo", map[string]any{"text": "hi"}),
				},
				StopReason: "tool_use",
			},
			{
				Content:    []proto.ContentBlock{proto.NewTextBlock("Done.")},
				StopReason: "end_turn",
			},
		},
	}
	loop := NewLoop(client, tools.NewRegistry(echoTool{}))

	messages := []proto.Message{proto.NewUserMessage(proto.NewTextBlock("say hi"))}
	final, err := loop.Run(context.Background(), messages, &Config{})
	require.NoError(t, err)

	// Initial user, assistant with tool call, user with result, final assistant.
	require.Len(t, final, 4)
	assert.Equal(t, proto.RoleUser, final[0].Role)
	assert.Equal(t, proto.RoleAssistant, final[1].Role)
	assert.Equal(t, proto.RoleUser, final[2].Role)
	assert.Equal(t, proto.RoleAssistant, final[3].Role)

	// The result correlates to the originating tool_use id.
	require.Len(t, final[2].Content, 1)
	resultBlock := final[2].Content[0]
	assert.Equal(t, proto.BlockTypeToolResult, resultBlock.Type)
	assert.Equal(t, "toolu_001", resultBlock.ToolUseID)
	require.Len(t, resultBlock.Content, 1)
	assert.Equal(t, "hi", resultBlock.Content[0].Text)
}

func TestRunTransportErrorPropagates(t *testing.T) {
	client := &mockLLMClient{errs: []error{fmt.Errorf("connection refused")}}
	loop := NewLoop(client, tools.NewRegistry(echoTool{}))

	messages := []proto.Message{proto.NewUserMessage(proto.NewTextBlock("hello"))}
	final, err := loop.Run(context.Background(), messages, &Config{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	// The conversation so far is still returned.
	assert.Len(t, final, 1)
}

func TestRunFailureDoesNotStopSubsequentDispatches(t *testing.T) {
	client := &mockLLMClient{
		responses: []CompletionResponse{
			{
				Content: []proto.ContentBlock{
					proto.NewToolUseBlock("toolu_001", "missing", map[string]any{}),
					proto.NewToolUseBlock("toolu_002", "echo", map[string]any{"text": "still here"}),
				},
				StopReason: "tool_use",
			},
			{
				Content:    []proto.ContentBlock{proto.NewTextBlock("ok")},
				StopReason: "end_turn",
			},
		},
	}
	loop := NewLoop(client, tools.NewRegistry(echoTool{}))

	final, err := loop.Run(context.Background(),
		[]proto.Message{proto.NewUserMessage(proto.NewTextBlock("go"))}, &Config{})
	require.NoError(t, err)

	results := final[2].Content
	require.Len(t, results, 2)
	assert.Equal(t, "toolu_001", results[0].ToolUseID)
	assert.True(t, results[0].IsError)
	assert.Equal(t, "missing is invalid", results[0].Content[0].Text)
	assert.Equal(t, "toolu_002", results[1].ToolUseID)
	assert.False(t, results[1].IsError)
	assert.Equal(t, "still here", results[1].Content[0].Text)
}

func TestRunObserverOrdering(t *testing.T) {
	client := &mockLLMClient{
		responses: []CompletionResponse{
			{
				Content: []proto.ContentBlock{
					proto.NewTextBlock("working"),
					proto.NewToolUseBlock("toolu_001", "echo", map[string]any{"text": "a"}),
				},
				StopReason: "tool_use",
			},
			{
				Content:    []proto.ContentBlock{proto.NewTextBlock("done")},
				StopReason: "end_turn",
			},
		},
	}
	loop := NewLoop(client, tools.NewRegistry(echoTool{}))

	var events []string
	cfg := &Config{
		Hooks: Hooks{
			OnContentBlock: func(block proto.ContentBlock) {
				events = append(events, "block:"+string(block.Type))
			},
			OnToolResult: func(id string, _ *tools.Result) {
				events = append(events, "result:"+id)
			},
			OnResponse: func(CompletionResponse) {
				events = append(events, "response")
			},
		},
	}

	_, err := loop.Run(context.Background(),
		[]proto.Message{proto.NewUserMessage(proto.NewTextBlock("go"))}, cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"block:text", "block:tool_use", "response", "result:toolu_001",
		"block:text", "response",
	}, events)
}

func TestRunTrimsImagesBeforeEachRequest(t *testing.T) {
	client := &mockLLMClient{
		responses: []CompletionResponse{
			{
				Content:    []proto.ContentBlock{proto.NewTextBlock("done")},
				StopReason: "end_turn",
			},
		},
	}
	loop := NewLoop(client, tools.NewRegistry(echoTool{}))

	// Seed a conversation carrying 25 screenshots across prior turns.
	var messages []proto.Message
	messages = append(messages, proto.NewUserMessage(proto.NewTextBlock("start")))
	for i := 0; i < 25; i++ {
		messages = append(messages, proto.NewUserMessage(proto.NewToolResultBlock(
			fmt.Sprintf("toolu_%03d", i),
			[]proto.ContentBlock{proto.NewImageBlock("image/png", fmt.Sprintf("img-%03d", i))},
			false,
		)))
	}

	cfg := &Config{OnlyNMostRecentImages: 10, MinRemovalBatch: 10}
	_, err := loop.Run(context.Background(), messages, cfg)
	require.NoError(t, err)

	require.Len(t, client.requests, 1)
	assert.Equal(t, 15, countToolResultImages(client.requests[0].Messages))
}

// relentlessClient requests another tool call on every turn, honoring
// context cancellation like a real transport.
type relentlessClient struct {
	calls int
}

func (c *relentlessClient) Complete(ctx context.Context, _ CompletionRequest) (CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return CompletionResponse{}, err
	}
	c.calls++
	return CompletionResponse{
		Content: []proto.ContentBlock{
			proto.NewToolUseBlock(fmt.Sprintf("toolu_%03d", c.calls), "echo", map[string]any{"text": "again"}),
		},
		StopReason: "tool_use",
	}, nil
}

func (c *relentlessClient) GetModelName() string { return "mock-model" }

func TestRunEndlessToolUseBoundedByCancellation(t *testing.T) {
	client := &relentlessClient{}
	loop := NewLoop(client, tools.NewRegistry(echoTool{}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Without cancellation the loop would never return; cancel after the
	// third response and let the next model call fail.
	responses := 0
	cfg := &Config{
		Hooks: Hooks{
			OnResponse: func(CompletionResponse) {
				responses++
				if responses == 3 {
					cancel()
				}
			},
		},
	}

	final, err := loop.Run(ctx,
		[]proto.Message{proto.NewUserMessage(proto.NewTextBlock("go"))}, cfg)

	require.ErrorIs(t, err, context.Canceled)
	// Everything appended before cancellation is preserved: the seed plus
	// three assistant/result pairs.
	require.Len(t, final, 7)
	assert.Equal(t, proto.RoleUser, final[6].Role)
	assert.Equal(t, "toolu_003", final[6].Content[0].ToolUseID)
}

// countingRecorder records loop observations for assertions.
type countingRecorder struct {
	requests  int
	toolExecs int
	trimmed   int
}

func (r *countingRecorder) ObserveRequest(string, int, int, bool, time.Duration) { r.requests++ }
func (r *countingRecorder) ObserveToolExec(string, bool, time.Duration)         { r.toolExecs++ }
func (r *countingRecorder) ObserveImagesTrimmed(count int)                      { r.trimmed += count }

func TestRunReportsMetrics(t *testing.T) {
	client := &mockLLMClient{
		responses: []CompletionResponse{
			{
				Content: []proto.ContentBlock{
					proto.NewToolUseBlock("toolu_001", "echo", map[string]any{"text": "a"}),
				},
				StopReason: "tool_use",
			},
			{
				Content:    []proto.ContentBlock{proto.NewTextBlock("done")},
				StopReason: "end_turn",
			},
		},
	}
	loop := NewLoop(client, tools.NewRegistry(echoTool{}))

	recorder := &countingRecorder{}
	_, err := loop.Run(context.Background(),
		[]proto.Message{proto.NewUserMessage(proto.NewTextBlock("go"))},
		&Config{Metrics: recorder})
	require.NoError(t, err)

	assert.Equal(t, 2, recorder.requests)
	assert.Equal(t, 1, recorder.toolExecs)
	assert.Equal(t, 0, recorder.trimmed)
}

func TestRunDoesNotMutateCallerConfig(t *testing.T) {
	client := &mockLLMClient{
		responses: []CompletionResponse{
			{
				Content:    []proto.ContentBlock{proto.NewTextBlock("hi")},
				StopReason: "end_turn",
			},
		},
	}
	loop := NewLoop(client, tools.NewRegistry(echoTool{}))

	cfg := &Config{}
	_, err := loop.Run(context.Background(),
		[]proto.Message{proto.NewUserMessage(proto.NewTextBlock("go"))}, cfg)
	require.NoError(t, err)

	// Defaults apply to the request but never leak back into the caller's
	// struct.
	assert.Equal(t, 0, cfg.MaxTokens)
	assert.Equal(t, 0, cfg.MinRemovalBatch)
	require.Len(t, client.requests, 1)
	assert.Equal(t, 4096, client.requests[0].MaxTokens)
}

func TestNewLoopEstimatesPromptSizeInDebugMode(t *testing.T) {
	client := &mockLLMClient{
		responses: []CompletionResponse{
			{
				Content:    []proto.ContentBlock{proto.NewTextBlock("hi")},
				StopReason: "end_turn",
			},
		},
	}
	loop := NewLoop(client, tools.NewRegistry(echoTool{}))
	require.NotNil(t, loop.estimator)

	logx.SetDebug(true)
	defer logx.SetDebug(false)

	// The debug path estimates the prompt before each call; a conversation
	// with text and image content must run through it cleanly.
	messages := []proto.Message{
		proto.NewUserMessage(proto.NewTextBlock("go")),
		proto.NewAssistantMessage(proto.NewToolUseBlock("toolu_000", "echo", map[string]any{"text": "x"})),
		proto.NewUserMessage(proto.NewToolResultBlock("toolu_000", []proto.ContentBlock{
			proto.NewImageBlock("image/png", "abc"),
		}, false)),
	}
	_, err := loop.Run(context.Background(), messages, &Config{})
	require.NoError(t, err)
}

func TestRunPassesToolDefinitionsAndSystemSuffix(t *testing.T) {
	client := &mockLLMClient{
		responses: []CompletionResponse{
			{
				Content:    []proto.ContentBlock{proto.NewTextBlock("hi")},
				StopReason: "end_turn",
			},
		},
	}
	loop := NewLoop(client, tools.NewRegistry(echoTool{}))

	cfg := &Config{SystemPromptSuffix: "Prefer keyboard shortcuts.", MaxTokens: 2048}
	_, err := loop.Run(context.Background(),
		[]proto.Message{proto.NewUserMessage(proto.NewTextBlock("go"))}, cfg)
	require.NoError(t, err)

	require.Len(t, client.requests, 1)
	req := client.requests[0]
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "echo", req.Tools[0].Name)
	assert.Equal(t, 2048, req.MaxTokens)
	assert.Contains(t, req.System, "Prefer keyboard shortcuts.")
}
