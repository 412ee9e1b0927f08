package state

import (
	"reflect"
	"testing"
	"time"

	"github.com/ShayCichocki/featuregate/pkg/models"
)

func TestDecision_RoundTrip(t *testing.T) {
	db := setupTestDB(t)

	d := &Decision{
		FeatureID: "F002",
		Kind:      DecisionPre,
		Passed:    false,
		Blockers:  []string{"Missing dependency: F001"},
		Warnings:  []string{"Unknown dependency: EXT"},
	}
	if err := db.RecordDecision(d); err != nil {
		t.Fatalf("RecordDecision failed: %v", err)
	}
	if d.ID == "" || d.CreatedAt.IsZero() {
		t.Fatal("expected id and timestamp to be assigned")
	}

	got, err := db.GetDecision(d.ID)
	if err != nil {
		t.Fatalf("GetDecision failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected decision, got nil")
	}
	if got.FeatureID != "F002" || got.Kind != DecisionPre || got.Passed {
		t.Errorf("unexpected decision %+v", got)
	}
	if !reflect.DeepEqual(got.Blockers, d.Blockers) || !reflect.DeepEqual(got.Warnings, d.Warnings) {
		t.Errorf("lists not preserved: %+v", got)
	}
	if got.Failures != nil {
		t.Errorf("expected no failures, got %v", got.Failures)
	}
	if !got.CreatedAt.Equal(d.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, d.CreatedAt)
	}
}

func TestGetDecision_NotFound(t *testing.T) {
	db := setupTestDB(t)

	got, err := db.GetDecision("missing")
	if err != nil {
		t.Fatalf("GetDecision failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestListDecisions(t *testing.T) {
	db := setupTestDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []Decision{
		{FeatureID: "F001", Kind: DecisionPre, Passed: true, CreatedAt: base},
		{FeatureID: "F001", Kind: DecisionPost, Passed: true, CreatedAt: base.Add(time.Minute)},
		{FeatureID: "F002", Kind: DecisionPre, Passed: false, CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range records {
		if err := db.RecordDecision(&records[i]); err != nil {
			t.Fatalf("RecordDecision failed: %v", err)
		}
	}

	tests := []struct {
		name      string
		featureID string
		limit     int
		wantKinds []DecisionKind
	}{
		{"all features", "", 0, []DecisionKind{DecisionPre, DecisionPost, DecisionPre}},
		{"one feature", "F001", 0, []DecisionKind{DecisionPost, DecisionPre}},
		{"limited", "", 1, []DecisionKind{DecisionPre}},
		{"unknown feature", "F404", 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.ListDecisions(tt.featureID, tt.limit)
			if err != nil {
				t.Fatalf("ListDecisions failed: %v", err)
			}
			var kinds []DecisionKind
			for _, d := range got {
				kinds = append(kinds, d.Kind)
			}
			if !reflect.DeepEqual(kinds, tt.wantKinds) {
				t.Errorf("kinds = %v, want %v", kinds, tt.wantKinds)
			}
		})
	}
}

func TestLatestDecision(t *testing.T) {
	db := setupTestDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := &Decision{FeatureID: "F001", Kind: DecisionPost, Passed: false, CreatedAt: base}
	second := &Decision{FeatureID: "F001", Kind: DecisionPost, Passed: true, CreatedAt: base.Add(time.Second)}
	pre := &Decision{FeatureID: "F001", Kind: DecisionPre, Passed: true, CreatedAt: base.Add(time.Hour)}
	for _, d := range []*Decision{first, second, pre} {
		if err := db.RecordDecision(d); err != nil {
			t.Fatalf("RecordDecision failed: %v", err)
		}
	}

	got, err := db.LatestDecision("F001", DecisionPost)
	if err != nil {
		t.Fatalf("LatestDecision failed: %v", err)
	}
	if got == nil || got.ID != second.ID {
		t.Errorf("expected newest post decision %s, got %+v", second.ID, got)
	}

	none, err := db.LatestDecision("F002", DecisionPost)
	if err != nil || none != nil {
		t.Errorf("expected nil, nil for unknown feature, got %+v, %v", none, err)
	}
}

func TestTestRuns(t *testing.T) {
	db := setupTestDB(t)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	batch := &models.TestBatch{
		ID:         "batch-1",
		Tier:       models.TierRegression,
		Features:   []string{"F001", "F002"},
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		File:       "test_results/regression_20260301_120000_abcd1234.json",
		Results: []models.TestResult{
			{TestID: "REGRESSION_RUN", Passed: false},
		},
	}
	run := TestRunFromBatch(batch)
	if run.Total != 1 || run.Failed != 1 || run.Passed != 0 {
		t.Errorf("unexpected summary %+v", run)
	}
	if err := db.RecordTestRun(run); err != nil {
		t.Fatalf("RecordTestRun failed: %v", err)
	}

	skipped := TestRunFromBatch(&models.TestBatch{ID: "batch-2", Tier: models.TierSmoke, StartedAt: started, Skipped: "smoke tests disabled"})
	if err := db.RecordTestRun(skipped); err != nil {
		t.Fatalf("RecordTestRun failed: %v", err)
	}

	runs, err := db.ListTestRuns(models.TierRegression, 0)
	if err != nil {
		t.Fatalf("ListTestRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 regression run, got %d", len(runs))
	}
	got := runs[0]
	if got.BatchID != "batch-1" || !reflect.DeepEqual(got.Features, []string{"F001", "F002"}) || got.File != batch.File {
		t.Errorf("unexpected run %+v", got)
	}
	if got.FinishedAt == nil || !got.FinishedAt.Equal(batch.FinishedAt) {
		t.Errorf("FinishedAt = %v, want %v", got.FinishedAt, batch.FinishedAt)
	}

	all, err := db.ListTestRuns("", 0)
	if err != nil {
		t.Fatalf("ListTestRuns failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 runs, got %d", len(all))
	}
	for _, r := range all {
		if r.BatchID == "batch-2" && (r.Skipped != "smoke tests disabled" || r.FinishedAt != nil) {
			t.Errorf("unexpected skipped run %+v", r)
		}
	}
}

func TestFeatureEvents(t *testing.T) {
	db := setupTestDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	events := []*FeatureEvent{
		{FeatureID: "F001", Event: EventMarkRefused, Detail: "post-check failed", CreatedAt: base},
		{FeatureID: "F001", Event: EventMarkedPassing, DecisionID: "d-1", CreatedAt: base.Add(time.Minute)},
		{FeatureID: "F002", Event: EventMarkedPassing, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range events {
		if err := db.RecordFeatureEvent(e); err != nil {
			t.Fatalf("RecordFeatureEvent failed: %v", err)
		}
	}

	got, err := db.ListFeatureEvents("F001")
	if err != nil {
		t.Fatalf("ListFeatureEvents failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Event != EventMarkRefused || got[1].Event != EventMarkedPassing {
		t.Errorf("expected oldest first, got %s, %s", got[0].Event, got[1].Event)
	}
	if got[1].DecisionID != "d-1" || got[0].Detail != "post-check failed" {
		t.Errorf("fields not preserved: %+v", got)
	}

	all, _ := db.ListFeatureEvents("")
	if len(all) != 3 {
		t.Errorf("expected 3 events, got %d", len(all))
	}
}
