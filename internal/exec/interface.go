// Package exec provides the process execution boundary used to run checks.
package exec

import (
	"context"
	"time"
)

// Result is the outcome of one executed command.
type Result struct {
	// ExitCode is the process exit code, or -1 if it did not exit normally.
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	// TimedOut is set when the command was killed at its deadline.
	TimedOut bool
}

// Executor runs a shell command under a wall-clock timeout.
// This abstraction allows mocking command execution in tests.
type Executor interface {
	// Execute runs command in dir. A non-zero exit or a timeout is reported
	// through Result; the error is reserved for commands that could not be
	// started at all.
	Execute(ctx context.Context, dir, command string, timeout time.Duration) (*Result, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, dir, command string, timeout time.Duration) (*Result, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, dir, command string, timeout time.Duration) (*Result, error) {
	return f(ctx, dir, command, timeout)
}
