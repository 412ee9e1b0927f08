package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// DefaultWaitDelay bounds how long Execute waits for output pipes after the
// command was killed. Grandchildren that inherit the pipes would otherwise
// keep Wait blocked past the deadline.
const DefaultWaitDelay = 2 * time.Second

// ShellExecutor implements Executor using "sh -c".
type ShellExecutor struct {
	// Shell is the interpreter; defaults to "sh".
	Shell string
	// WaitDelay overrides DefaultWaitDelay.
	WaitDelay time.Duration
}

// NewShellExecutor creates a new ShellExecutor.
func NewShellExecutor() *ShellExecutor {
	return &ShellExecutor{Shell: "sh", WaitDelay: DefaultWaitDelay}
}

// Execute runs command through the shell with the given timeout.
// A zero timeout means no deadline beyond ctx.
func (e *ShellExecutor) Execute(ctx context.Context, dir, command string, timeout time.Duration) (*Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shell := e.Shell
	if shell == "" {
		shell = "sh"
	}
	cmd := exec.CommandContext(ctx, shell, "-c", command)
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.WaitDelay = e.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}
	killProcessGroup(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result := &Result{
		ExitCode: 0,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		result.ExitCode = -1
		return result, nil
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		if errors.Is(err, exec.ErrWaitDelay) {
			// The command exited but left its output pipes open.
			result.ExitCode = cmd.ProcessState.ExitCode()
			return result, nil
		}
		result.ExitCode = -1
		return result, fmt.Errorf("run %q: %w", command, err)
	}
	return result, nil
}

// Verify ShellExecutor implements Executor at compile time.
var _ Executor = (*ShellExecutor)(nil)
