package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/featuregate/pkg/models"
)

// DecisionKind identifies which gate produced a decision.
type DecisionKind string

const (
	DecisionPre  DecisionKind = "pre"
	DecisionPost DecisionKind = "post"
)

// FeatureEvent kinds.
const (
	EventMarkedPassing       = "marked_passing"
	EventMarkRefused         = "mark_refused"
	EventContractImplemented = "contract_implemented"
	EventContractUsed        = "contract_used"
)

// Decision is a journaled gate verdict.
type Decision struct {
	ID        string       `json:"id"`
	FeatureID string       `json:"feature_id"`
	Kind      DecisionKind `json:"kind"`
	// Passed is can_proceed for a pre decision and all_passed for a post one.
	Passed    bool      `json:"passed"`
	Blockers  []string  `json:"blockers,omitempty"`
	Warnings  []string  `json:"warnings,omitempty"`
	Failures  []string  `json:"failures,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TestRun is the journaled summary of one test batch.
type TestRun struct {
	ID         string          `json:"id"`
	BatchID    string          `json:"batch_id"`
	Tier       models.TestTier `json:"tier"`
	Features   []string        `json:"features,omitempty"`
	Total      int             `json:"total"`
	Passed     int             `json:"passed"`
	Failed     int             `json:"failed"`
	Skipped    string          `json:"skipped,omitempty"`
	File       string          `json:"file,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// TestRunFromBatch summarizes a batch for the journal.
func TestRunFromBatch(b *models.TestBatch) *TestRun {
	run := &TestRun{
		BatchID:   b.ID,
		Tier:      b.Tier,
		Features:  b.Features,
		Total:     len(b.Results),
		Skipped:   b.Skipped,
		File:      b.File,
		StartedAt: b.StartedAt,
	}
	run.Failed = len(b.Failed())
	run.Passed = run.Total - run.Failed
	if !b.FinishedAt.IsZero() {
		finished := b.FinishedAt
		run.FinishedAt = &finished
	}
	return run
}

// FeatureEvent records a change to a feature's status.
type FeatureEvent struct {
	ID         string    `json:"id"`
	FeatureID  string    `json:"feature_id"`
	Event      string    `json:"event"`
	DecisionID string    `json:"decision_id,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Decision operations

// RecordDecision journals a decision, assigning an id and timestamp if unset.
func (db *DB) RecordDecision(d *Decision) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}

	blockers, err := marshalList(d.Blockers)
	if err != nil {
		return fmt.Errorf("marshal blockers: %w", err)
	}
	warnings, err := marshalList(d.Warnings)
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}
	failures, err := marshalList(d.Failures)
	if err != nil {
		return fmt.Errorf("marshal failures: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO gate_decisions (id, feature_id, kind, passed, blockers, warnings, failures, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.FeatureID, string(d.Kind), d.Passed, blockers, warnings, failures, formatTime(d.CreatedAt))
	if err != nil {
		return fmt.Errorf("record decision: %w", err)
	}
	return nil
}

// GetDecision retrieves a decision by ID. It returns nil if none exists.
func (db *DB) GetDecision(id string) (*Decision, error) {
	rows, err := db.Query(`
		SELECT id, feature_id, kind, passed, blockers, warnings, failures, created_at
		FROM gate_decisions WHERE id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get decision: %w", err)
	}
	decisions, err := scanDecisions(rows)
	if err != nil {
		return nil, err
	}
	if len(decisions) == 0 {
		return nil, nil
	}
	return &decisions[0], nil
}

// ListDecisions lists decisions newest first. An empty featureID lists all
// features; limit <= 0 means no limit.
func (db *DB) ListDecisions(featureID string, limit int) ([]Decision, error) {
	query := `
		SELECT id, feature_id, kind, passed, blockers, warnings, failures, created_at
		FROM gate_decisions`
	var args []any
	if featureID != "" {
		query += " WHERE feature_id = ?"
		args = append(args, featureID)
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	return scanDecisions(rows)
}

// LatestDecision returns the newest decision of kind for a feature, or nil.
func (db *DB) LatestDecision(featureID string, kind DecisionKind) (*Decision, error) {
	rows, err := db.Query(`
		SELECT id, feature_id, kind, passed, blockers, warnings, failures, created_at
		FROM gate_decisions WHERE feature_id = ? AND kind = ?
		ORDER BY created_at DESC, rowid DESC LIMIT 1
	`, featureID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("latest decision: %w", err)
	}
	decisions, err := scanDecisions(rows)
	if err != nil {
		return nil, err
	}
	if len(decisions) == 0 {
		return nil, nil
	}
	return &decisions[0], nil
}

func scanDecisions(rows *sql.Rows) ([]Decision, error) {
	defer rows.Close()

	var decisions []Decision
	for rows.Next() {
		var d Decision
		var blockers, warnings, failures sql.NullString
		var createdAt string
		if err := rows.Scan(&d.ID, &d.FeatureID, &d.Kind, &d.Passed, &blockers, &warnings, &failures, &createdAt); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d.Blockers = unmarshalList(blockers)
		d.Warnings = unmarshalList(warnings)
		d.Failures = unmarshalList(failures)
		d.CreatedAt, _ = parseTime(createdAt)
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// Test run operations

// RecordTestRun journals a test run, assigning an id if unset.
func (db *DB) RecordTestRun(r *TestRun) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	features, err := marshalList(r.Features)
	if err != nil {
		return fmt.Errorf("marshal features: %w", err)
	}
	var finishedAt *string
	if r.FinishedAt != nil {
		s := formatTime(*r.FinishedAt)
		finishedAt = &s
	}

	_, err = db.Exec(`
		INSERT INTO test_runs (id, batch_id, tier, features, total, passed, failed, skipped, file, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.BatchID, string(r.Tier), features, r.Total, r.Passed, r.Failed, r.Skipped, r.File, formatTime(r.StartedAt), finishedAt)
	if err != nil {
		return fmt.Errorf("record test run: %w", err)
	}
	return nil
}

// ListTestRuns lists runs newest first. An empty tier lists every tier;
// limit <= 0 means no limit.
func (db *DB) ListTestRuns(tier models.TestTier, limit int) ([]TestRun, error) {
	query := `
		SELECT id, batch_id, tier, features, total, passed, failed, skipped, file, started_at, finished_at
		FROM test_runs`
	var args []any
	if tier != "" {
		query += " WHERE tier = ?"
		args = append(args, string(tier))
	}
	query += " ORDER BY started_at DESC, rowid DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list test runs: %w", err)
	}
	defer rows.Close()

	var runs []TestRun
	for rows.Next() {
		var r TestRun
		var features, skipped, file, finishedAt sql.NullString
		var startedAt string
		if err := rows.Scan(&r.ID, &r.BatchID, &r.Tier, &features, &r.Total, &r.Passed, &r.Failed,
			&skipped, &file, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan test run: %w", err)
		}
		r.Features = unmarshalList(features)
		r.Skipped = skipped.String
		r.File = file.String
		r.StartedAt, _ = parseTime(startedAt)
		r.FinishedAt = parseNullableTime(finishedAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Feature event operations

// RecordFeatureEvent journals a feature status event.
func (db *DB) RecordFeatureEvent(e *FeatureEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := db.Exec(`
		INSERT INTO feature_events (id, feature_id, event, decision_id, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.FeatureID, e.Event, e.DecisionID, e.Detail, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("record feature event: %w", err)
	}
	return nil
}

// ListFeatureEvents lists a feature's events oldest first. An empty
// featureID lists every feature.
func (db *DB) ListFeatureEvents(featureID string) ([]FeatureEvent, error) {
	query := `
		SELECT id, feature_id, event, decision_id, detail, created_at
		FROM feature_events`
	var args []any
	if featureID != "" {
		query += " WHERE feature_id = ?"
		args = append(args, featureID)
	}
	query += " ORDER BY created_at ASC, rowid ASC"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list feature events: %w", err)
	}
	defer rows.Close()

	var events []FeatureEvent
	for rows.Next() {
		var e FeatureEvent
		var decisionID, detail sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &e.FeatureID, &e.Event, &decisionID, &detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan feature event: %w", err)
		}
		e.DecisionID = decisionID.String
		e.Detail = detail.String
		e.CreatedAt, _ = parseTime(createdAt)
		events = append(events, e)
	}
	return events, rows.Err()
}

// marshalList stores a string list as JSON, or NULL when empty.
func marshalList(list []string) (*string, error) {
	if len(list) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}

func unmarshalList(s sql.NullString) []string {
	if !s.Valid || s.String == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(s.String), &list); err != nil {
		return nil
	}
	return list
}
