package tools

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashbuilds/computer-use/pkg/logx"
	"github.com/ashbuilds/computer-use/pkg/utils"
)

const defaultBashTimeout = 120 * time.Second

// BashTool runs commands in a persistent bash session so state (working
// directory, environment, background jobs) carries across invocations.
type BashTool struct {
	mu      sync.Mutex
	session *bashSession
	timeout time.Duration
	logger  *logx.Logger
}

// NewBashTool creates a bash tool; the session starts lazily on first use.
func NewBashTool() *BashTool {
	return &BashTool{
		timeout: defaultBashTimeout,
		logger:  logx.NewLogger("bash-tool"),
	}
}

// SetTimeout overrides the per-command timeout.
func (t *BashTool) SetTimeout(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = d
}

// Name returns the tool name.
func (t *BashTool) Name() string {
	return ToolBash
}

// Definition returns the tool definition for the model.
func (t *BashTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name: ToolBash,
		Description: "Run commands in a persistent bash session. State such as the working " +
			"directory and environment variables carries over between commands. " +
			"Set restart to true to discard the session and start a fresh one.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"command": {
					Type:        "string",
					Description: "The bash command to run.",
				},
				"restart": {
					Type:        "boolean",
					Description: "Restart the bash session instead of running a command.",
				},
			},
		},
	}
}

// Exec executes the tool with the given arguments.
func (t *BashTool) Exec(ctx context.Context, args map[string]any) (*Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if restart := utils.GetMapFieldOr(args, "restart", false); restart {
		if t.session != nil {
			t.session.stop()
			t.session = nil
		}
		return &Result{System: "tool has been restarted."}, nil
	}

	command, ok := utils.SafeAssert[string](args["command"])
	if !ok || command == "" {
		return nil, NewValidationError("command is required and must be a string")
	}

	if t.session == nil {
		session, err := startBashSession()
		if err != nil {
			return nil, fmt.Errorf("failed to start bash session: %w", err)
		}
		t.session = session
	}

	output, stderr, err := t.session.run(ctx, command, t.timeout)
	if err != nil {
		// The session is wedged; force a restart on the next call.
		t.session.stop()
		t.session = nil
		return &Result{
			Error:  err.Error(),
			System: "bash did not return in time and has been discarded; the next command starts a fresh session.",
		}, nil
	}

	return &Result{Output: truncate(output), Error: stderr}, nil
}

// Close stops the underlying session, if any.
func (t *BashTool) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session != nil {
		t.session.stop()
		t.session = nil
	}
}

// bashSession wraps a long-lived bash process. Commands are delimited with a
// unique sentinel echoed on stdout so output boundaries are unambiguous.
type bashSession struct {
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	lines    chan string
	stderrMu sync.Mutex
	stderr   strings.Builder
}

func startBashSession() (*bashSession, error) {
	cmd := exec.Command("/bin/bash")

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	s := &bashSession{
		cmd:   cmd,
		stdin: stdin,
		lines: make(chan string, 256),
	}

	go func() {
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			s.lines <- scanner.Text()
		}
		close(s.lines)
	}()

	go func() {
		scanner := bufio.NewScanner(stderrPipe)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			s.stderrMu.Lock()
			s.stderr.WriteString(scanner.Text())
			s.stderr.WriteString("\n")
			s.stderrMu.Unlock()
		}
	}()

	return s, nil
}

// run writes the command followed by a sentinel echo and collects stdout
// lines until the sentinel arrives or the timeout fires.
func (s *bashSession) run(ctx context.Context, command string, timeout time.Duration) (string, string, error) {
	sentinel := fmt.Sprintf("__DONE_%s__", uuid.NewString())

	if _, err := fmt.Fprintf(s.stdin, "%s\necho %s\n", command, sentinel); err != nil {
		return "", "", fmt.Errorf("failed to write command to bash: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var output []string
	for {
		select {
		case <-ctx.Done():
			return "", "", ctx.Err()
		case <-timer.C:
			return "", "", fmt.Errorf(
				"timed out: bash has not returned in %.1f seconds and must be restarted",
				timeout.Seconds())
		case line, open := <-s.lines:
			if !open {
				return "", "", fmt.Errorf("bash session terminated unexpectedly")
			}
			if line == sentinel {
				s.stderrMu.Lock()
				stderr := strings.TrimRight(s.stderr.String(), "\n")
				s.stderr.Reset()
				s.stderrMu.Unlock()
				return strings.Join(output, "\n"), stderr, nil
			}
			output = append(output, line)
		}
	}
}

func (s *bashSession) stop() {
	_ = s.stdin.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
}
