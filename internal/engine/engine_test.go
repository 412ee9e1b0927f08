package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/featuregate/internal/compat"
	"github.com/ShayCichocki/featuregate/internal/config"
	iexec "github.com/ShayCichocki/featuregate/internal/exec"
	"github.com/ShayCichocki/featuregate/internal/gate"
	"github.com/ShayCichocki/featuregate/internal/ledger"
	"github.com/ShayCichocki/featuregate/internal/state"
	"github.com/ShayCichocki/featuregate/internal/testrunner"
	"github.com/ShayCichocki/featuregate/pkg/models"
)

// passingExecutor answers every command with exit code 0.
var passingExecutor = iexec.ExecutorFunc(func(context.Context, string, string, time.Duration) (*iexec.Result, error) {
	return &iexec.Result{ExitCode: 0, Duration: time.Millisecond}, nil
})

// failingExecutor fails every command.
var failingExecutor = iexec.ExecutorFunc(func(context.Context, string, string, time.Duration) (*iexec.Result, error) {
	return &iexec.Result{ExitCode: 1, Stderr: "FAIL", Duration: time.Millisecond}, nil
})

func dependsOn(ids ...string) []models.Dependency {
	var out []models.Dependency
	for _, id := range ids {
		out = append(out, models.Dependency{FeatureID: id})
	}
	return out
}

// setupEngine creates an engine over an in-memory ledger with a journal and
// result store in a temp project.
func setupEngine(t *testing.T, executor iexec.Executor, features []models.Feature) (*Engine, *ledger.MemoryStore, *state.DB) {
	t.Helper()
	project := t.TempDir()
	if err := os.MkdirAll(filepath.Join(project, "tests", "integration"), 0755); err != nil {
		t.Fatalf("failed to create test dir: %v", err)
	}

	db, err := state.Open(filepath.Join(project, ".featuregate", "state.db"))
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate journal: %v", err)
	}

	store := ledger.NewMemoryStore(features)
	e := New(EngineConfig{
		ProjectDir: project,
		Store:      store,
		TestConfig: config.DefaultTestConfig(),
		Executor:   executor,
		Results:    testrunner.NewResultStore(filepath.Join(project, "test_results")),
		Journal:    db,
	})
	t.Cleanup(func() { e.Close() })
	return e, store, db
}

func twoFeatures() []models.Feature {
	return []models.Feature{
		{ID: "F001", Description: "base", Priority: 1},
		{ID: "F002", Description: "builds on base", Priority: 2, Dependencies: dependsOn("F001")},
	}
}

func TestEngine_FullCycle(t *testing.T) {
	e, store, db := setupEngine(t, passingExecutor, twoFeatures())
	ctx := context.Background()

	pre, _, err := e.PreCheck(ctx, "F002")
	if err != nil {
		t.Fatalf("PreCheck failed: %v", err)
	}
	if pre.CanProceed {
		t.Error("expected F002 to be blocked before F001 passes")
	}
	if len(pre.Blockers) != 1 || pre.Blockers[0] != "Missing dependency: F001" {
		t.Errorf("unexpected blockers %q", pre.Blockers)
	}

	pre, report, err := e.PreCheck(ctx, "F001")
	if err != nil {
		t.Fatalf("PreCheck failed: %v", err)
	}
	if !pre.CanProceed || report == nil || report.FeatureID != "F001" {
		t.Fatalf("expected F001 to proceed, got %+v", pre)
	}

	post, err := e.PostCheck(ctx, "F001")
	if err != nil {
		t.Fatalf("PostCheck failed: %v", err)
	}
	if !post.AllPassed {
		t.Fatalf("expected post-check to pass, got failures %+v", post.Failures)
	}
	if err := e.MarkPassing("F001", post); err != nil {
		t.Fatalf("MarkPassing failed: %v", err)
	}

	features, _ := store.Features()
	if !features[0].Passes {
		t.Error("expected F001 to be marked passing")
	}

	next, err := e.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if next.Feature == nil || next.Feature.ID != "F002" {
		t.Errorf("expected F002 next, got %+v", next.Feature)
	}
	if next.Progress.Passing != 1 || next.Progress.Total != 2 {
		t.Errorf("unexpected progress %+v", next.Progress)
	}

	decisions, err := db.ListDecisions("F001", 0)
	if err != nil {
		t.Fatalf("ListDecisions failed: %v", err)
	}
	if len(decisions) != 2 || decisions[0].Kind != state.DecisionPost {
		t.Errorf("expected pre and post decisions newest first, got %+v", decisions)
	}
	events, _ := db.ListFeatureEvents("F001")
	if len(events) != 1 || events[0].Event != state.EventMarkedPassing || events[0].DecisionID != decisions[0].ID {
		t.Errorf("unexpected events %+v", events)
	}

	runs, _ := db.ListTestRuns("", 0)
	// Two smoke runs, then integration and regression.
	if len(runs) != 4 {
		t.Errorf("expected 4 journaled runs, got %d", len(runs))
	}
}

func TestEngine_MarkPassingRefusals(t *testing.T) {
	e, store, db := setupEngine(t, failingExecutor, twoFeatures())

	post, err := e.PostCheck(context.Background(), "F001")
	if err != nil {
		t.Fatalf("PostCheck failed: %v", err)
	}
	if post.AllPassed || len(post.Failures) == 0 {
		t.Fatalf("expected failing post-check, got %+v", post)
	}

	tests := []struct {
		name    string
		id      string
		post    *gate.PostDecision
		wantErr error
	}{
		{"failed decision", "F001", post, ErrNotVerified},
		{"other feature's decision", "F002", &gate.PostDecision{FeatureID: "F001", AllPassed: true}, ErrDecisionMismatch},
		{"no decision", "F001", nil, ErrDecisionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.MarkPassing(tt.id, tt.post)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	features, _ := store.Features()
	for _, f := range features {
		if f.Passes {
			t.Errorf("feature %s must not be marked passing", f.ID)
		}
	}
	events, _ := db.ListFeatureEvents("")
	if len(events) != 3 {
		t.Errorf("expected 3 refusal events, got %d", len(events))
	}
}

func TestEngine_MarkPassingUnknownFeature(t *testing.T) {
	e, _, _ := setupEngine(t, passingExecutor, twoFeatures())

	err := e.MarkPassing("F404", &gate.PostDecision{FeatureID: "F404", AllPassed: true})
	if !errors.Is(err, compat.ErrFeatureNotFound) {
		t.Errorf("expected ErrFeatureNotFound, got %v", err)
	}

	_, err = e.PostCheck(context.Background(), "F404")
	if !errors.Is(err, compat.ErrFeatureNotFound) {
		t.Errorf("expected ErrFeatureNotFound from PostCheck, got %v", err)
	}
}

func TestEngine_PreCheckCycle(t *testing.T) {
	e, _, _ := setupEngine(t, passingExecutor, []models.Feature{
		{ID: "A", Dependencies: dependsOn("B")},
		{ID: "B", Dependencies: dependsOn("A")},
	})

	pre, report, err := e.PreCheck(context.Background(), "A")
	if err != nil {
		t.Fatalf("a cycle must become a blocker, got error %v", err)
	}
	if report != nil {
		t.Error("expected no report for a cyclic feature")
	}
	if pre.CanProceed || pre.FeatureID != "A" {
		t.Errorf("unexpected decision %+v", pre)
	}
	found := false
	for _, b := range pre.Blockers {
		if strings.HasPrefix(b, "Cyclic dependency: ") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected cyclic dependency blocker, got %q", pre.Blockers)
	}
}

func TestEngine_PreCheckFailedSmoke(t *testing.T) {
	e, _, _ := setupEngine(t, failingExecutor, twoFeatures())

	pre, _, err := e.PreCheck(context.Background(), "F001")
	if err != nil {
		t.Fatalf("PreCheck failed: %v", err)
	}
	if pre.CanProceed {
		t.Error("failed smoke checks must block")
	}
	if len(pre.Blockers) != 2 {
		t.Errorf("expected one blocker per smoke check, got %q", pre.Blockers)
	}
}

func TestEngine_NextAllBlocked(t *testing.T) {
	e, _, _ := setupEngine(t, passingExecutor, []models.Feature{
		{ID: "A", Dependencies: dependsOn("B")},
		{ID: "B", Dependencies: dependsOn("A")},
	})

	next, err := e.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if next.Feature != nil {
		t.Errorf("expected no feature, got %s", next.Feature.ID)
	}
	if next.Blocked == nil || next.Blocked.Incomplete != 2 {
		t.Errorf("expected blocked summary, got %+v", next.Blocked)
	}
}

func TestEngine_TestReportAndHistory(t *testing.T) {
	e, _, _ := setupEngine(t, passingExecutor, twoFeatures())
	ctx := context.Background()

	if _, err := e.RunSmokeTests(ctx); err != nil {
		t.Fatalf("RunSmokeTests failed: %v", err)
	}
	if _, err := e.RunIntegrationTests(ctx); err != nil {
		t.Fatalf("RunIntegrationTests failed: %v", err)
	}

	report, err := e.TestReport(5)
	if err != nil {
		t.Fatalf("TestReport failed: %v", err)
	}
	if report.TotalTests != 3 || report.PassRate != "100.0%" {
		t.Errorf("unexpected report %+v", report.Summary)
	}

	h, err := e.History("", 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(h.Runs) != 2 || len(h.Decisions) != 0 {
		t.Errorf("unexpected history %+v", h)
	}

	if n, err := e.PurgeHistory(time.Hour); err != nil || n != 0 {
		t.Errorf("expected nothing purged, got %d, %v", n, err)
	}
	// A negative age puts the cutoff in the future.
	if n, err := e.PurgeHistory(-time.Hour); err != nil || n != 2 {
		t.Errorf("expected 2 rows purged, got %d, %v", n, err)
	}
}

func TestOpen(t *testing.T) {
	project := t.TempDir()
	ledgerJSON := `{"features": [{"id": "F001", "description": "base", "passes": false}]}`
	if err := os.WriteFile(filepath.Join(project, "features.json"), []byte(ledgerJSON), 0644); err != nil {
		t.Fatalf("failed to write ledger: %v", err)
	}

	e, err := Open(project, nil, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer e.Close()

	if _, err := os.Stat(filepath.Join(project, "test_config.json")); err != nil {
		t.Errorf("expected default test config to be written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(project, ".featuregate", "state.db")); err != nil {
		t.Errorf("expected journal to be created: %v", err)
	}
	if e.ResultsDir() != filepath.Join(project, "test_results") {
		t.Errorf("unexpected results dir %s", e.ResultsDir())
	}

	v, err := e.CanImplement("F001")
	if err != nil {
		t.Fatalf("CanImplement failed: %v", err)
	}
	if !v.CanImplement {
		t.Error("expected F001 to be implementable")
	}
}
