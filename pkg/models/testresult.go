package models

import "time"

// TestType is the kind of check that produced a result.
type TestType string

const (
	// TestTypeUnit tests a single feature in isolation.
	TestTypeUnit TestType = "unit"
	// TestTypeIntegration tests several features together.
	TestTypeIntegration TestType = "integration"
	// TestTypeRegression re-runs integration checks after a change.
	TestTypeRegression TestType = "regression"
	// TestTypeSmoke is a fast pre-flight health check.
	TestTypeSmoke TestType = "smoke"
	// TestTypeContract verifies an interface contract.
	TestTypeContract TestType = "contract"
)

// Valid returns true if the test type is a known value.
func (t TestType) Valid() bool {
	switch t {
	case TestTypeUnit, TestTypeIntegration, TestTypeRegression, TestTypeSmoke, TestTypeContract:
		return true
	default:
		return false
	}
}

// TestTier names a tier of the test runner. Result batches are keyed by tier.
type TestTier string

const (
	TierSmoke       TestTier = "smoke"
	TierIntegration TestTier = "integration"
	TierRegression  TestTier = "regression"
)

// Tiers lists all tiers in protocol order.
func Tiers() []TestTier {
	return []TestTier{TierSmoke, TierIntegration, TierRegression}
}

// CheckState is the lifecycle state of a single executed check.
type CheckState string

const (
	CheckPending  CheckState = "PENDING"
	CheckRunning  CheckState = "RUNNING"
	CheckPassed   CheckState = "PASSED"
	CheckFailed   CheckState = "FAILED"
	CheckTimedOut CheckState = "TIMED_OUT"
	CheckErrored  CheckState = "ERRORED"
)

// Terminal reports whether no further transition is possible.
func (s CheckState) Terminal() bool {
	switch s {
	case CheckPassed, CheckFailed, CheckTimedOut, CheckErrored:
		return true
	default:
		return false
	}
}

// CanTransition reports whether the state machine allows s -> next.
func (s CheckState) CanTransition(next CheckState) bool {
	switch s {
	case CheckPending:
		return next == CheckRunning
	case CheckRunning:
		return next.Terminal()
	default:
		return false
	}
}

// TestResult is the immutable outcome of one executed check.
type TestResult struct {
	TestID   string   `json:"test_id"`
	TestName string   `json:"test_name"`
	TestType TestType `json:"test_type"`
	Passed   bool     `json:"passed"`
	// DurationMS is the wall-clock duration. For timeouts it is the timeout ceiling.
	DurationMS int64 `json:"duration_ms"`
	// ErrorMessage is set iff Passed is false.
	ErrorMessage   string     `json:"error_message,omitempty"`
	FeaturesTested []string   `json:"features_tested,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
	State          CheckState `json:"state,omitempty"`
	ExitCode       int        `json:"exit_code"`
	// Stdout and Stderr are only captured for failed checks.
	Stdout string `json:"stdout,omitempty"`
	Stderr string `json:"stderr,omitempty"`
}

// TestBatch is the persisted set of results for one tier run.
type TestBatch struct {
	ID         string       `json:"id"`
	Tier       TestTier     `json:"tier"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Results    []TestResult `json:"results"`
	// Features is the feature scope of an integration or regression run.
	Features []string `json:"features,omitempty"`
	// Skipped explains why the tier produced no results, if it did not run.
	Skipped string `json:"skipped,omitempty"`
	// File is where the batch was persisted. It is not serialized.
	File string `json:"-"`
}

// AllPassed reports whether every result in the batch passed.
// An empty batch passes.
func (b *TestBatch) AllPassed() bool {
	if b == nil {
		return true
	}
	for _, r := range b.Results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// Failed returns the results that did not pass.
func (b *TestBatch) Failed() []TestResult {
	if b == nil {
		return nil
	}
	var failed []TestResult
	for _, r := range b.Results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
