package agent

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/ashbuilds/computer-use/pkg/contextmgr"
	"github.com/ashbuilds/computer-use/pkg/logx"
	"github.com/ashbuilds/computer-use/pkg/metrics"
	"github.com/ashbuilds/computer-use/pkg/proto"
	"github.com/ashbuilds/computer-use/pkg/tools"
)

// Hooks are optional synchronous observer callbacks invoked in-line with the
// turn algorithm; slow observers delay the loop. Events arrive in strict
// conversation order.
type Hooks struct {
	// OnContentBlock fires for every block in every assistant response.
	OnContentBlock func(block proto.ContentBlock)

	// OnToolResult fires after each dispatch with the raw tool result and
	// its correlating tool_use id.
	OnToolResult func(toolUseID string, result *tools.Result)

	// OnResponse fires once per model response, after the per-block
	// callbacks for that response.
	OnResponse func(resp CompletionResponse)
}

// Config defines how the sampling loop behaves.
//
//nolint:govet // fieldalignment: struct fields ordered for clarity
type Config struct {
	// SystemPromptSuffix is appended to the built-in system prompt.
	SystemPromptSuffix string

	// MaxTokens caps the size of each model response.
	MaxTokens int

	// OnlyNMostRecentImages bounds the screenshots retained in the
	// conversation; zero disables trimming.
	OnlyNMostRecentImages int

	// MinRemovalBatch sets the trimming granularity; defaults to
	// contextmgr.DefaultMinRemovalBatch.
	MinRemovalBatch int

	// Hooks receive observer callbacks.
	Hooks Hooks

	// Metrics receives loop observations; nil falls back to a NopRecorder.
	Metrics metrics.Recorder
}

// defaultSystemPrompt describes the environment to the model. The caller's
// suffix is appended after it verbatim.
var defaultSystemPrompt = fmt.Sprintf(`<SYSTEM_CAPABILITY>
* You are utilising an Ubuntu virtual machine using %s architecture with internet access.
* To open firefox, please just click on the firefox icon.
* Using bash tool you can start GUI applications, but you need to set export DISPLAY=:1 and use a subshell. GUI apps run with bash tool will appear within your desktop environment, but they may take some time to appear. Take a screenshot to confirm it did.
* When using your bash tool with commands that are expected to output very large quantities of text, redirect into a tmp file and use str_replace_editor or grep -n -B <lines before> -A <lines after> <query> <filename> to confirm output.
* When viewing a page it can be helpful to zoom out so that you can see everything on the page. Either that, or make sure you scroll down to see everything before deciding something isn't available.
* When using your computer function calls, they take a while to run and send back to you. Where possible/feasible, try to chain multiple of these calls all into one function calls request.
* The current date is %s.
</SYSTEM_CAPABILITY>`, runtime.GOARCH, time.Now().Format("Monday, January 2, 2006"))

// Loop drives the multi-turn exchange between the model and the local
// tools: send the conversation, execute any requested tool calls, feed the
// results back, and repeat until the model stops requesting actions.
type Loop struct {
	client    LLMClient
	registry  *tools.Registry
	estimator *contextmgr.TokenEstimator
	logger    *logx.Logger
}

// NewLoop creates a sampling loop over the given client and tool registry.
func NewLoop(client LLMClient, registry *tools.Registry) *Loop {
	logger := logx.NewLogger("loop")
	estimator, err := contextmgr.NewTokenEstimator()
	if err != nil {
		// A nil estimator falls back to character-based counting.
		logger.Warn("tokenizer unavailable, using character-based estimation: %v", err)
	}
	return &Loop{
		client:    client,
		registry:  registry,
		estimator: estimator,
		logger:    logger,
	}
}

// Run executes the sampling loop until the model produces a response with no
// tool calls, then returns the full conversation. The returned slice always
// reflects everything appended so far, including when a model request fails;
// in that case the error is returned alongside the conversation as-is. There
// is no iteration cap — a caller-level context timeout is the only
// cancellation point.
func (l *Loop) Run(ctx context.Context, messages []proto.Message, cfg *Config) ([]proto.Message, error) {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	minBatch := cfg.MinRemovalBatch
	if minBatch <= 0 {
		minBatch = contextmgr.DefaultMinRemovalBatch
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}

	system := defaultSystemPrompt
	if cfg.SystemPromptSuffix != "" {
		system += " " + cfg.SystemPromptSuffix
	}

	toolDefs := l.registry.Definitions()

	for turn := 1; ; turn++ {
		if cfg.OnlyNMostRecentImages > 0 {
			before := countToolResultImages(messages)
			contextmgr.OnlyNMostRecentImages(messages, cfg.OnlyNMostRecentImages, minBatch)
			if trimmed := before - countToolResultImages(messages); trimmed > 0 {
				l.logger.Debug("trimmed %d stale screenshots from context", trimmed)
				recorder.ObserveImagesTrimmed(trimmed)
			}
		}

		l.logger.Info("🔄 Starting model call to '%s' with %d messages, %d max tokens, %d tools (turn %d)",
			l.client.GetModelName(), len(messages), maxTokens, len(toolDefs), turn)
		if logx.IsDebugEnabled() {
			l.logger.Debug("estimated prompt size: ~%d tokens",
				l.estimator.CountText(system)+l.estimator.EstimateMessages(messages))
		}

		start := time.Now()
		resp, err := l.client.Complete(ctx, CompletionRequest{
			System:    system,
			Messages:  messages,
			Tools:     toolDefs,
			MaxTokens: maxTokens,
		})
		duration := time.Since(start)

		recorder.ObserveRequest(l.client.GetModelName(),
			resp.Usage.InputTokens, resp.Usage.OutputTokens, err == nil, duration)
		if err != nil {
			l.logger.Error("❌ Model call failed after %.3gs: %v", duration.Seconds(), err)
			return messages, fmt.Errorf("model request failed: %w", err)
		}

		l.logger.Info("✅ Model call completed in %.3gs, %d blocks, stop reason: %s",
			duration.Seconds(), len(resp.Content), resp.StopReason)

		assistant := proto.NewAssistantMessage(resp.Content...)
		messages = append(messages, assistant)

		for _, block := range resp.Content {
			if cfg.Hooks.OnContentBlock != nil {
				cfg.Hooks.OnContentBlock(block)
			}
		}
		if cfg.Hooks.OnResponse != nil {
			cfg.Hooks.OnResponse(resp)
		}

		var results []proto.ContentBlock
		for _, block := range assistant.ToolUses() {
			l.logger.Info("Executing tool: %s", block.Name)
			start := time.Now()
			result := l.registry.Dispatch(ctx, block.Name, block.Input)
			duration := time.Since(start)

			if result.Failed() {
				l.logger.Warn("Tool %s failed after %.3fs: %s", block.Name, duration.Seconds(), result.Error)
			} else {
				l.logger.Info("Tool %s completed in %.3fs", block.Name, duration.Seconds())
			}
			recorder.ObserveToolExec(block.Name, !result.Failed(), duration)
			if cfg.Hooks.OnToolResult != nil {
				cfg.Hooks.OnToolResult(block.ID, result)
			}

			results = append(results, assembleToolResult(block.ID, result))
		}

		if len(results) == 0 {
			l.logger.Info("✅ Model requested no further actions, returning conversation")
			return messages, nil
		}

		messages = append(messages, proto.NewUserMessage(results...))
	}
}

// countToolResultImages counts image blocks carried in tool_result content.
func countToolResultImages(messages []proto.Message) int {
	count := 0
	for i := range messages {
		for j := range messages[i].Content {
			block := &messages[i].Content[j]
			if block.Type != proto.BlockTypeToolResult {
				continue
			}
			for k := range block.Content {
				if block.Content[k].Type == proto.BlockTypeImage {
					count++
				}
			}
		}
	}
	return count
}
