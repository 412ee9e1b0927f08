package state

import (
	"io"
	"time"

	"github.com/ShayCichocki/featuregate/pkg/models"
)

// DecisionStore handles gate decision persistence.
type DecisionStore interface {
	RecordDecision(d *Decision) error
	GetDecision(id string) (*Decision, error)
	ListDecisions(featureID string, limit int) ([]Decision, error)
	LatestDecision(featureID string, kind DecisionKind) (*Decision, error)
}

// TestRunStore handles test run persistence.
type TestRunStore interface {
	RecordTestRun(r *TestRun) error
	ListTestRuns(tier models.TestTier, limit int) ([]TestRun, error)
}

// EventStore handles feature status event persistence.
type EventStore interface {
	RecordFeatureEvent(e *FeatureEvent) error
	ListFeatureEvents(featureID string) ([]FeatureEvent, error)
}

// Purger removes old journal rows.
type Purger interface {
	Purge(olderThan time.Duration) (int64, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Journal composes the stores the engine writes to. The engine depends on
// this interface, not on the SQLite implementation.
type Journal interface {
	io.Closer
	Migrator
	DecisionStore
	TestRunStore
	EventStore
	Purger
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Journal       = (*DB)(nil)
	_ Migrator      = (*DB)(nil)
	_ DecisionStore = (*DB)(nil)
	_ TestRunStore  = (*DB)(nil)
	_ EventStore    = (*DB)(nil)
	_ Purger        = (*DB)(nil)
)
