// Package exec provides command execution for the local display environment.
// Tools that drive desktop utilities (xdotool, scrot) run one-shot commands
// through the Executor interface so tests can substitute a fake.
package exec

import (
	"context"
	"time"
)

// Executor defines the interface for executing one-shot commands.
type Executor interface {
	// Run executes a command with the given options and returns the result.
	Run(ctx context.Context, cmd []string, opts *Opts) (Result, error)

	// Name returns the executor type name for logging/debugging.
	Name() string

	// Available returns true if this executor can be used in the current environment.
	Available() bool
}

// Opts contains options for command execution.
type Opts struct {
	// Env contains additional environment variables (KEY=VALUE format).
	Env []string

	// Timeout is the maximum duration for command execution.
	Timeout time.Duration

	// WorkDir is the working directory for the command.
	WorkDir string
}

// DefaultOpts returns execution options suitable for short desktop commands.
func DefaultOpts() Opts {
	return Opts{Timeout: 30 * time.Second}
}

// Result contains the result of command execution.
type Result struct {
	// Stdout contains the standard output.
	Stdout string

	// Stderr contains the standard error output.
	Stderr string

	// ExecutorUsed indicates which executor was used (for debugging).
	ExecutorUsed string

	// Duration is how long the command took to execute.
	Duration time.Duration

	// ExitCode is the process exit code; -1 if the command failed to start.
	ExitCode int
}
