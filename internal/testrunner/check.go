package testrunner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ShayCichocki/featuregate/pkg/models"
)

// maxCapturedOutput bounds the stdout and stderr kept on a failed result.
const maxCapturedOutput = 8 * 1024

// checkSpec describes one command to run as a check.
type checkSpec struct {
	id           string
	name         string
	testType     models.TestType
	command      string
	expectedExit int
	timeout      time.Duration
	features     []string
}

// check tracks one execution through its lifecycle.
type check struct {
	spec   checkSpec
	state  models.CheckState
	result models.TestResult
}

func newCheck(spec checkSpec) *check {
	return &check{spec: spec, state: models.CheckPending}
}

// advance moves the check to next, refusing transitions the lifecycle forbids.
func (c *check) advance(next models.CheckState) error {
	if !c.state.CanTransition(next) {
		return fmt.Errorf("check %s: invalid transition %s -> %s", c.spec.id, c.state, next)
	}
	c.state = next
	return nil
}

// finish records the terminal outcome.
func (c *check) finish(state models.CheckState, duration time.Duration, message string) {
	if err := c.advance(state); err != nil {
		// Only reachable after a recovered panic mid-transition.
		c.state = state
	}
	c.result.State = state
	c.result.Passed = state == models.CheckPassed
	c.result.DurationMS = duration.Milliseconds()
	if c.result.DurationMS < 0 {
		c.result.DurationMS = 0
	}
	if !c.result.Passed {
		if message == "" {
			message = string(state)
		}
		c.result.ErrorMessage = message
	}
}

// runCheck executes one check and returns exactly one result. It never
// returns an error; every failure mode becomes a failed result.
func (r *Runner) runCheck(ctx context.Context, spec checkSpec) (result models.TestResult) {
	c := newCheck(spec)
	c.result = models.TestResult{
		TestID:         spec.id,
		TestName:       spec.name,
		TestType:       spec.testType,
		FeaturesTested: spec.features,
		Timestamp:      r.now(),
		ExitCode:       -1,
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("check panicked", zap.String("check", spec.id), zap.Any("panic", p))
			c.finish(models.CheckErrored, time.Since(start), fmt.Sprintf("check panicked: %v", p))
			result = c.result
		}
	}()

	_ = c.advance(models.CheckRunning)
	r.logger.Debug("running check",
		zap.String("check", spec.id),
		zap.String("command", spec.command),
		zap.Duration("timeout", spec.timeout))

	res, err := r.executor.Execute(ctx, r.projectDir, spec.command, spec.timeout)

	switch {
	case res != nil && res.TimedOut:
		c.finish(models.CheckTimedOut, spec.timeout, fmt.Sprintf("Test timed out after %d seconds", int(spec.timeout/time.Second)))
		c.capture(res.Stdout, res.Stderr)
	case err != nil:
		c.finish(models.CheckErrored, time.Since(start), err.Error())
	case res == nil:
		c.finish(models.CheckErrored, time.Since(start), "executor returned no result")
	case ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded):
		c.finish(models.CheckErrored, res.Duration, fmt.Sprintf("check cancelled: %v", ctx.Err()))
	default:
		c.result.ExitCode = res.ExitCode
		if res.ExitCode == spec.expectedExit {
			c.finish(models.CheckPassed, res.Duration, "")
			break
		}
		c.finish(models.CheckFailed, res.Duration, failureMessage(res.Stdout, res.Stderr, res.ExitCode, spec.expectedExit))
		c.capture(res.Stdout, res.Stderr)
	}

	r.logger.Info("check finished",
		zap.String("check", spec.id),
		zap.String("state", string(c.state)),
		zap.Int64("duration_ms", c.result.DurationMS))
	return c.result
}

// capture keeps bounded output on a failed result.
func (c *check) capture(stdout, stderr string) {
	c.result.Stdout = truncate(stdout)
	c.result.Stderr = truncate(stderr)
}

// failureMessage prefers stderr, then stdout, then a synthesized exit message.
func failureMessage(stdout, stderr string, exitCode, expected int) string {
	if s := strings.TrimSpace(stderr); s != "" {
		return truncate(s)
	}
	if s := strings.TrimSpace(stdout); s != "" {
		return truncate(s)
	}
	return fmt.Sprintf("exit code %d, expected %d", exitCode, expected)
}

func truncate(s string) string {
	if len(s) <= maxCapturedOutput {
		return s
	}
	cut := maxCapturedOutput
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n... (truncated)"
}
