package testrunner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/featuregate/internal/config"
	iexec "github.com/ShayCichocki/featuregate/internal/exec"
	"github.com/ShayCichocki/featuregate/pkg/models"
)

// fakeExecutor records commands and answers from a table keyed by command.
type fakeExecutor struct {
	mu       sync.Mutex
	commands []string
	answers  map[string]*iexec.Result
	err      error
}

func (f *fakeExecutor) Execute(ctx context.Context, dir, command string, timeout time.Duration) (*iexec.Result, error) {
	f.mu.Lock()
	f.commands = append(f.commands, command)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if res, ok := f.answers[command]; ok {
		return res, nil
	}
	return &iexec.Result{ExitCode: 0, Duration: time.Millisecond}, nil
}

type staticDependents map[string][]string

func (s staticDependents) Dependents(id string) ([]string, error) {
	return s[id], nil
}

func smokeConfig(checks ...config.SmokeCheck) *config.TestConfig {
	cfg := config.DefaultTestConfig()
	cfg.Smoke.Tests = checks
	cfg.Smoke.TimeoutSeconds = 10
	return cfg
}

func TestRunSmoke_EndToEnd(t *testing.T) {
	tests := []struct {
		name    string
		command string
		passed  bool
		state   models.CheckState
	}{
		{"exit 0 passes", "exit 0", true, models.CheckPassed},
		{"exit 1 fails", "exit 1", false, models.CheckFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := smokeConfig(config.SmokeCheck{ID: "S1", Name: "smoke", Command: tt.command, ExpectedExitCode: 0})
			r := New(t.TempDir(), cfg)

			batch, err := r.RunSmoke(context.Background())
			if err != nil {
				t.Fatalf("RunSmoke failed: %v", err)
			}
			if len(batch.Results) != 1 {
				t.Fatalf("expected exactly one result, got %d", len(batch.Results))
			}
			res := batch.Results[0]
			if res.Passed != tt.passed || res.State != tt.state {
				t.Errorf("got passed=%v state=%s, want passed=%v state=%s", res.Passed, res.State, tt.passed, tt.state)
			}
			if tt.passed && res.ErrorMessage != "" {
				t.Errorf("passing result must have no error message, got %q", res.ErrorMessage)
			}
			if !tt.passed && res.ErrorMessage == "" {
				t.Error("failing result must have an error message")
			}
			if res.TestType != models.TestTypeSmoke || res.TestID != "S1" {
				t.Errorf("unexpected result identity %+v", res)
			}
		})
	}
}

func TestRunSmoke_Timeout(t *testing.T) {
	cfg := smokeConfig(config.SmokeCheck{ID: "SLOW", Name: "slow", Command: "sleep 5"})
	cfg.Smoke.TimeoutSeconds = 1

	start := time.Now()
	batch, err := New(t.TempDir(), cfg).RunSmoke(context.Background())
	if err != nil {
		t.Fatalf("RunSmoke failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Errorf("timeout not enforced, took %v", elapsed)
	}

	res := batch.Results[0]
	if res.Passed {
		t.Error("timed out check must fail")
	}
	if res.State != models.CheckTimedOut {
		t.Errorf("expected TIMED_OUT, got %s", res.State)
	}
	if res.DurationMS != 1000 {
		t.Errorf("expected duration equal to the timeout ceiling, got %d", res.DurationMS)
	}
	if res.ErrorMessage != "Test timed out after 1 seconds" {
		t.Errorf("unexpected message %q", res.ErrorMessage)
	}
}

func TestRunSmoke_FailureMessage(t *testing.T) {
	fake := &fakeExecutor{answers: map[string]*iexec.Result{
		"stderr": {ExitCode: 1, Stderr: "boom\n", Stdout: "noise"},
		"stdout": {ExitCode: 2, Stdout: "only stdout"},
		"silent": {ExitCode: 3},
		"wanted": {ExitCode: 4},
	}}
	cfg := smokeConfig(
		config.SmokeCheck{ID: "A", Command: "stderr"},
		config.SmokeCheck{ID: "B", Command: "stdout"},
		config.SmokeCheck{ID: "C", Command: "silent"},
		config.SmokeCheck{ID: "D", Command: "wanted", ExpectedExitCode: 4},
	)

	batch, _ := New(t.TempDir(), cfg, WithExecutor(fake)).RunSmoke(context.Background())

	want := []string{"boom", "only stdout", "exit code 3, expected 0", ""}
	for i, res := range batch.Results {
		if res.ErrorMessage != want[i] {
			t.Errorf("result %s: message %q, want %q", res.TestID, res.ErrorMessage, want[i])
		}
	}
	if batch.Results[0].Stdout != "noise" {
		t.Errorf("expected stdout captured on failure, got %q", batch.Results[0].Stdout)
	}
	if !batch.Results[3].Passed || batch.Results[3].Stdout != "" {
		t.Errorf("expected passing check without captured output, got %+v", batch.Results[3])
	}
}

func TestRunSmoke_ParallelKeepsOrder(t *testing.T) {
	var checks []config.SmokeCheck
	for _, id := range []string{"S1", "S2", "S3", "S4", "S5"} {
		checks = append(checks, config.SmokeCheck{ID: id, Command: "cmd-" + id})
	}
	cfg := smokeConfig(checks...)
	cfg.Smoke.MaxParallel = 3

	batch, err := New(t.TempDir(), cfg, WithExecutor(&fakeExecutor{})).RunSmoke(context.Background())
	if err != nil {
		t.Fatalf("RunSmoke failed: %v", err)
	}
	for i, res := range batch.Results {
		if res.TestID != checks[i].ID {
			t.Errorf("result %d: got %s, want %s", i, res.TestID, checks[i].ID)
		}
	}
}

func TestRunSmoke_Disabled(t *testing.T) {
	cfg := smokeConfig(config.SmokeCheck{ID: "S1", Command: "exit 0"})
	cfg.Smoke.Enabled = false

	fake := &fakeExecutor{}
	batch, err := New(t.TempDir(), cfg, WithExecutor(fake)).RunSmoke(context.Background())
	if err != nil {
		t.Fatalf("RunSmoke failed: %v", err)
	}
	if batch.Skipped == "" || len(batch.Results) != 0 {
		t.Errorf("expected skipped empty batch, got %+v", batch)
	}
	if len(fake.commands) != 0 {
		t.Error("disabled tier must not execute commands")
	}
	if !batch.AllPassed() {
		t.Error("an empty batch passes")
	}
}

func TestRunSmoke_Errored(t *testing.T) {
	cfg := smokeConfig(config.SmokeCheck{ID: "S1", Command: "x"})

	fake := &fakeExecutor{err: errors.New("cannot start shell")}
	batch, _ := New(t.TempDir(), cfg, WithExecutor(fake)).RunSmoke(context.Background())
	res := batch.Results[0]
	if res.State != models.CheckErrored || res.Passed || res.ErrorMessage != "cannot start shell" {
		t.Errorf("unexpected errored result %+v", res)
	}

	panicky := iexec.ExecutorFunc(func(context.Context, string, string, time.Duration) (*iexec.Result, error) {
		panic("executor exploded")
	})
	batch, _ = New(t.TempDir(), cfg, WithExecutor(panicky)).RunSmoke(context.Background())
	res = batch.Results[0]
	if res.State != models.CheckErrored || !strings.Contains(res.ErrorMessage, "executor exploded") {
		t.Errorf("expected recovered panic as errored result, got %+v", res)
	}
}

func projectWithTests(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "tests", "integration"), 0755); err != nil {
		t.Fatalf("failed to create test dir: %v", err)
	}
	return dir
}

func TestRunIntegration_Command(t *testing.T) {
	fake := &fakeExecutor{}
	r := New(projectWithTests(t), config.DefaultTestConfig(), WithExecutor(fake))

	batch, err := r.RunIntegration(context.Background(), "F1", "F2")
	if err != nil {
		t.Fatalf("RunIntegration failed: %v", err)
	}
	want := "go test -v ./tests/integration/... -run 'Feature_F1|Feature_F2'"
	if len(fake.commands) != 1 || fake.commands[0] != want {
		t.Errorf("commands = %q, want %q", fake.commands, want)
	}
	if len(batch.Results) != 1 || batch.Results[0].TestType != models.TestTypeIntegration {
		t.Errorf("unexpected results %+v", batch.Results)
	}
	if !reflect.DeepEqual(batch.Results[0].FeaturesTested, []string{"F1", "F2"}) {
		t.Errorf("unexpected features %v", batch.Results[0].FeaturesTested)
	}

	fake.commands = nil
	if _, err := r.RunIntegration(context.Background()); err != nil {
		t.Fatalf("RunIntegration failed: %v", err)
	}
	if fake.commands[0] != "go test -v ./tests/integration/..." {
		t.Errorf("unscoped command = %q", fake.commands[0])
	}
}

func TestRunIntegration_MissingDirectory(t *testing.T) {
	fake := &fakeExecutor{}
	batch, err := New(t.TempDir(), config.DefaultTestConfig(), WithExecutor(fake)).RunIntegration(context.Background(), "F1")
	if err != nil {
		t.Fatalf("missing directory must not be an error: %v", err)
	}
	if !strings.Contains(batch.Skipped, "tests/integration") {
		t.Errorf("expected skip reason naming the directory, got %q", batch.Skipped)
	}
	if len(fake.commands) != 0 || len(batch.Results) != 0 {
		t.Error("nothing should run without a test directory")
	}
}

func TestRunRegression_Scope(t *testing.T) {
	deps := staticDependents{
		"F1": {"F2", "F3"},
		"F2": {"F4"},
	}
	fake := &fakeExecutor{}
	r := New(projectWithTests(t), config.DefaultTestConfig(), WithExecutor(fake), WithDependents(deps))

	batch, err := r.RunRegression(context.Background(), "F1")
	if err != nil {
		t.Fatalf("RunRegression failed: %v", err)
	}
	wantScope := []string{"F1", "F2", "F3"}
	if !reflect.DeepEqual(batch.Features, wantScope) {
		t.Errorf("scope = %v, want %v (one hop only)", batch.Features, wantScope)
	}
	if batch.Tier != models.TierRegression || batch.Results[0].TestType != models.TestTypeRegression {
		t.Errorf("unexpected tier/type %s/%s", batch.Tier, batch.Results[0].TestType)
	}
	if !strings.HasSuffix(fake.commands[0], "-run 'Feature_F1|Feature_F2|Feature_F3'") {
		t.Errorf("unexpected command %q", fake.commands[0])
	}
}

func TestRunRegression_RunAll(t *testing.T) {
	cfg := config.DefaultTestConfig()
	cfg.Regression.RunAllOnChange = true
	fake := &fakeExecutor{}
	r := New(projectWithTests(t), cfg, WithExecutor(fake), WithDependents(staticDependents{"F1": {"F2"}}))

	batch, err := r.RunRegression(context.Background(), "F1")
	if err != nil {
		t.Fatalf("RunRegression failed: %v", err)
	}
	if strings.Contains(fake.commands[0], "-run") {
		t.Errorf("run_all_on_change must not filter, got %q", fake.commands[0])
	}
	if !reflect.DeepEqual(batch.Features, []string{"F1", "F2"}) {
		t.Errorf("scope still recorded, got %v", batch.Features)
	}
}

func TestRunRegression_NoDependents(t *testing.T) {
	_, err := New(projectWithTests(t), nil).RunRegression(context.Background(), "F1")
	if !errors.Is(err, ErrNoDependents) {
		t.Errorf("expected ErrNoDependents, got %v", err)
	}
}

func TestRunner_PersistsAndReports(t *testing.T) {
	project := t.TempDir()
	store := NewResultStore(filepath.Join(project, "test_results"))
	fake := &fakeExecutor{answers: map[string]*iexec.Result{"bad": {ExitCode: 1, Stderr: "bad"}}}

	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local)
	tick := func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	cfg := smokeConfig(
		config.SmokeCheck{ID: "S1", Command: "ok"},
		config.SmokeCheck{ID: "S2", Command: "ok"},
		config.SmokeCheck{ID: "S3", Command: "ok"},
		config.SmokeCheck{ID: "S4", Command: "bad"},
	)
	r := New(project, cfg, WithExecutor(fake), WithResultStore(store), withClock(tick))

	batch, err := r.RunSmoke(context.Background())
	if err != nil {
		t.Fatalf("RunSmoke failed: %v", err)
	}
	if batch.File == "" {
		t.Fatal("expected batch to be persisted")
	}
	if !strings.HasPrefix(filepath.Base(batch.File), "smoke_20260102_030406_") {
		t.Errorf("unexpected file name %s", filepath.Base(batch.File))
	}

	report, err := r.Report(10)
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if report.TotalTests != 4 || report.Passed != 3 || report.Failed != 1 {
		t.Errorf("unexpected totals %+v", report.Summary)
	}
	if report.PassRate != "75.0%" {
		t.Errorf("pass rate = %q, want 75.0%%", report.PassRate)
	}
	if len(report.RecentFailures) != 1 || report.RecentFailures[0].TestID != "S4" {
		t.Errorf("unexpected failures %+v", report.RecentFailures)
	}
	if report.Tiers[models.TierIntegration].PassRate != "N/A" {
		t.Errorf("expected N/A for empty tier, got %q", report.Tiers[models.TierIntegration].PassRate)
	}
}
