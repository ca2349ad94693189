// Command computer-use runs the agent loop against a local X display: the
// model is given pointer/keyboard control, a file editor, and a shell, and
// iterates until the task needs no further action.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/term"

	"github.com/ashbuilds/computer-use/pkg/agent"
	"github.com/ashbuilds/computer-use/pkg/config"
	"github.com/ashbuilds/computer-use/pkg/exec"
	"github.com/ashbuilds/computer-use/pkg/logx"
	"github.com/ashbuilds/computer-use/pkg/metrics"
	"github.com/ashbuilds/computer-use/pkg/proto"
	"github.com/ashbuilds/computer-use/pkg/screenshot"
	"github.com/ashbuilds/computer-use/pkg/tools"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "computer-use: %v\n", err)
		os.Exit(1)
	}
}

//nolint:gocyclo // top-level wiring is linear setup code
func run() error {
	var (
		configPath = flag.String("config", config.DefaultPath(), "Path to config file")
		model      = flag.String("model", "", "Model identifier (overrides config)")
		maxTokens  = flag.Int("max-tokens", 0, "Max tokens per response (overrides config)")
		keepImages = flag.Int("keep-images", -1, "Screenshots to retain in context, 0 disables trimming (overrides config)")
		timeout    = flag.Duration("timeout", 0, "Overall run timeout, 0 for none")
		debug      = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	if flag.NArg() < 1 {
		return fmt.Errorf("usage: computer-use [flags] <task prompt>")
	}
	prompt := strings.Join(flag.Args(), " ")

	if *debug {
		logx.SetDebug(true)
	}
	logger := logx.NewLogger("main")

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *model != "" {
		cfg.Model = *model
	}
	if *maxTokens > 0 {
		cfg.MaxTokens = *maxTokens
	}
	if *keepImages >= 0 {
		cfg.ImageRetention = *keepImages
	}

	if cfg.APIKey == "" {
		key, err := promptAPIKey()
		if err != nil {
			return err
		}
		cfg.APIKey = key
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	executor := exec.NewLocalExec()
	registry := tools.NewRegistry(
		tools.NewComputerTool(executor, cfg.DisplayWidth, cfg.DisplayHeight, cfg.DisplayNumber),
		tools.NewEditorTool(),
		tools.NewBashTool(),
	)

	var store *screenshot.Store
	if cfg.ScreenshotStore != "" {
		sessionID := uuid.NewString()
		store, err = screenshot.Open(cfg.ScreenshotStore, sessionID)
		if err != nil {
			return fmt.Errorf("failed to open screenshot store: %w", err)
		}
		defer func() { _ = store.Close() }()
		logger.Info("session %s, screenshots stored under %s", sessionID, cfg.ScreenshotStore)
	}

	var recorder metrics.Recorder
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(reg)
		go serveMetrics(cfg.MetricsAddr, reg, logger)
	}

	client := agent.NewClaudeClient(cfg.APIKey, cfg.Model)
	loop := agent.NewLoop(client, registry)

	loopCfg := &agent.Config{
		SystemPromptSuffix:    cfg.SystemPromptSuffix,
		MaxTokens:             cfg.MaxTokens,
		OnlyNMostRecentImages: cfg.ImageRetention,
		Metrics:               recorder,
		Hooks: agent.Hooks{
			OnContentBlock: printContentBlock,
			OnToolResult: func(toolUseID string, result *tools.Result) {
				printToolResult(result)
				if store != nil && result.Image != nil {
					if _, err := store.Save(toolUseID, result.Image.MediaType, result.Image.Data); err != nil {
						logger.Warn("failed to persist screenshot: %v", err)
					}
				}
			},
		},
	}

	messages := []proto.Message{proto.NewUserMessage(proto.NewTextBlock(prompt))}
	final, err := loop.Run(ctx, messages, loopCfg)
	if err != nil {
		return err
	}

	logger.Info("conversation finished after %d messages", len(final))
	return nil
}

// promptAPIKey reads the API key interactively when the environment does
// not provide one. Refuses to proceed without a terminal.
func promptAPIKey() (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("ANTHROPIC_API_KEY is not set and stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, "Anthropic API key: ")
	key, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read API key: %w", err)
	}
	if len(key) == 0 {
		return "", fmt.Errorf("API key must not be empty")
	}
	return string(key), nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *logx.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Info("serving metrics on %s/metrics", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server failed: %v", err)
	}
}

// printContentBlock echoes the model's visible activity to stdout.
func printContentBlock(block proto.ContentBlock) {
	switch block.Type {
	case proto.BlockTypeText:
		fmt.Println(block.Text)
	case proto.BlockTypeToolUse:
		fmt.Printf("→ %s %v\n", block.Name, block.Input)
	}
}

func printToolResult(result *tools.Result) {
	if result.Error != "" {
		fmt.Printf("✗ %s\n", result.Error)
		return
	}
	if result.Output != "" {
		fmt.Println(result.Output)
	}
	if result.Image != nil {
		fmt.Println("[screenshot captured]")
	}
}
