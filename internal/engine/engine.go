// Package engine composes the ledger, compatibility manager, test runner,
// gates and journal into one project session.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/featuregate/internal/compat"
	"github.com/ShayCichocki/featuregate/internal/config"
	iexec "github.com/ShayCichocki/featuregate/internal/exec"
	"github.com/ShayCichocki/featuregate/internal/gate"
	"github.com/ShayCichocki/featuregate/internal/graph"
	"github.com/ShayCichocki/featuregate/internal/ledger"
	"github.com/ShayCichocki/featuregate/internal/state"
	"github.com/ShayCichocki/featuregate/internal/testrunner"
	"github.com/ShayCichocki/featuregate/pkg/models"
)

var (
	// ErrDecisionMismatch is returned by MarkPassing when the post-check
	// decision was made for another feature.
	ErrDecisionMismatch = errors.New("post-check decision belongs to another feature")
	// ErrNotVerified is returned by MarkPassing when the post-check failed.
	ErrNotVerified = errors.New("post-check did not pass")
)

// EngineConfig contains the collaborators of an Engine.
type EngineConfig struct {
	// ProjectDir is the project root; ledgers and test paths resolve against it.
	ProjectDir string
	// Store is the feature ledger. Required.
	Store ledger.Store
	// TestConfig configures the test tiers. If nil, defaults are used.
	TestConfig *config.TestConfig
	// Executor runs checks. If nil, a shell executor is used.
	Executor iexec.Executor
	// Results persists test batches. If nil, batches are not saved.
	Results *testrunner.ResultStore
	// Journal records decisions, runs and status changes. If nil, nothing
	// is journaled.
	Journal state.Journal
	// Logger receives engine logs. If nil, logs are discarded.
	Logger *zap.Logger
}

// Engine is one project session.
type Engine struct {
	projectDir string
	store      ledger.Store
	manager    *compat.Manager
	runner     *testrunner.Runner
	journal    state.Journal
	logger     *zap.Logger
	now        func() time.Time
}

// New creates an engine from cfg.
func New(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	manager := compat.NewManager(cfg.Store, logger.Named("compat"))

	opts := []testrunner.Option{
		testrunner.WithDependents(manager),
		testrunner.WithLogger(logger.Named("testrunner")),
	}
	if cfg.Executor != nil {
		opts = append(opts, testrunner.WithExecutor(cfg.Executor))
	}
	if cfg.Results != nil {
		opts = append(opts, testrunner.WithResultStore(cfg.Results))
	}

	return &Engine{
		projectDir: cfg.ProjectDir,
		store:      cfg.Store,
		manager:    manager,
		runner:     testrunner.New(cfg.ProjectDir, cfg.TestConfig, opts...),
		journal:    cfg.Journal,
		logger:     logger,
		now:        time.Now,
	}
}

// Open creates an engine for projectDir from its settings: a file-backed
// ledger, the test configuration (written with defaults if missing), the
// result log and the SQLite journal.
func Open(projectDir string, settings *config.Config, logger *zap.Logger) (*Engine, error) {
	if settings == nil {
		settings = config.Default()
	}

	store := ledger.NewFileStore(projectDir, ledger.Paths{
		Features:         settings.Ledger.Features,
		Contracts:        settings.Ledger.Contracts,
		IntegrationTests: settings.Ledger.IntegrationTests,
	})

	testCfg, err := config.LoadTestConfig(config.Resolve(projectDir, settings.TestConfig))
	if err != nil {
		return nil, fmt.Errorf("load test config: %w", err)
	}

	dbPath := settings.StateDB
	if dbPath == "" {
		dbPath = state.ProjectDBPath(projectDir)
	}
	db, err := state.Open(config.Resolve(projectDir, dbPath))
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}

	return New(EngineConfig{
		ProjectDir: projectDir,
		Store:      store,
		TestConfig: testCfg,
		Results:    testrunner.NewResultStore(config.Resolve(projectDir, settings.ResultsDir)),
		Journal:    db,
		Logger:     logger,
	}), nil
}

// Close releases the journal.
func (e *Engine) Close() error {
	if e.journal == nil {
		return nil
	}
	return e.journal.Close()
}

// ProjectDir returns the project root.
func (e *Engine) ProjectDir() string {
	return e.projectDir
}

// Store returns the feature ledger.
func (e *Engine) Store() ledger.Store {
	return e.store
}

// Manager returns the compatibility manager.
func (e *Engine) Manager() *compat.Manager {
	return e.manager
}

// Runner returns the test runner.
func (e *Engine) Runner() *testrunner.Runner {
	return e.runner
}

// Journal returns the journal, or nil.
func (e *Engine) Journal() state.Journal {
	return e.journal
}

// GenerateCompatibilityReport returns the compatibility report for id.
func (e *Engine) GenerateCompatibilityReport(id string) (*compat.Report, error) {
	return e.manager.GenerateReport(id)
}

// CanImplement reports whether id's dependencies are satisfied.
func (e *Engine) CanImplement(id string) (compat.DependencyValidation, error) {
	return e.manager.CanImplement(id)
}

// RunSmokeTests runs the smoke tier.
func (e *Engine) RunSmokeTests(ctx context.Context) (*models.TestBatch, error) {
	batch, err := e.runner.RunSmoke(ctx)
	if err != nil {
		return nil, err
	}
	e.recordRun(batch)
	return batch, nil
}

// RunIntegrationTests runs the integration tier, scoped to ids if given.
func (e *Engine) RunIntegrationTests(ctx context.Context, ids ...string) (*models.TestBatch, error) {
	batch, err := e.runner.RunIntegration(ctx, ids...)
	if err != nil {
		return nil, err
	}
	e.recordRun(batch)
	return batch, nil
}

// RunRegressionTests runs the regression tier for a changed feature.
func (e *Engine) RunRegressionTests(ctx context.Context, id string) (*models.TestBatch, error) {
	batch, err := e.runner.RunRegression(ctx, id)
	if err != nil {
		return nil, err
	}
	e.recordRun(batch)
	return batch, nil
}

// PreCheck is the gate before work on id starts: the compatibility report
// plus the smoke tier. A dependency cycle becomes a blocker; ledger I/O
// errors are returned.
func (e *Engine) PreCheck(ctx context.Context, id string) (*gate.PreDecision, *compat.Report, error) {
	report, reportErr := e.manager.GenerateReport(id)
	var cycle *graph.CycleError
	if reportErr != nil && !errors.As(reportErr, &cycle) {
		return nil, nil, reportErr
	}

	smoke, err := e.RunSmokeTests(ctx)
	if err != nil {
		return nil, nil, err
	}

	d := gate.PreImplementation(report, reportErr, smoke)
	d.FeatureID = id
	e.logger.Info("pre-check",
		zap.String("feature", id),
		zap.Bool("can_proceed", d.CanProceed),
		zap.Strings("blockers", d.Blockers))

	e.recordDecision(&state.Decision{
		FeatureID: id,
		Kind:      state.DecisionPre,
		Passed:    d.CanProceed,
		Blockers:  d.Blockers,
		Warnings:  d.Warnings,
	})
	return &d, report, nil
}

// PostCheck is the gate after work on id finished: the integration tier
// for id and the regression tier for id and its dependents.
func (e *Engine) PostCheck(ctx context.Context, id string) (*gate.PostDecision, error) {
	if _, err := e.requireFeature(id); err != nil {
		return nil, err
	}

	integration, err := e.RunIntegrationTests(ctx, id)
	if err != nil {
		return nil, err
	}
	regression, err := e.RunRegressionTests(ctx, id)
	if err != nil {
		return nil, err
	}

	d := gate.PostImplementation(id, integration, regression)
	e.logger.Info("post-check",
		zap.String("feature", id),
		zap.Bool("all_passed", d.AllPassed),
		zap.Int("failures", len(d.Failures)))

	failures := make([]string, 0, len(d.Failures))
	for _, f := range d.Failures {
		failures = append(failures, f.TestID)
	}
	e.recordDecision(&state.Decision{
		FeatureID: id,
		Kind:      state.DecisionPost,
		Passed:    d.AllPassed,
		Failures:  failures,
		Warnings:  d.Skipped,
	})
	return &d, nil
}

// MarkPassing flips id to passing in the ledger. It refuses unless post is
// a passing post-check decision for id.
func (e *Engine) MarkPassing(id string, post *gate.PostDecision) error {
	if post == nil || post.FeatureID != id {
		e.recordEvent(id, state.EventMarkRefused, "", ErrDecisionMismatch.Error())
		return fmt.Errorf("mark %s passing: %w", id, ErrDecisionMismatch)
	}
	if !post.AllPassed {
		e.recordEvent(id, state.EventMarkRefused, "", fmt.Sprintf("%d failing tests", len(post.Failures)))
		return fmt.Errorf("mark %s passing: %w", id, ErrNotVerified)
	}

	if err := e.store.SetPasses(id, true, e.now()); err != nil {
		return fmt.Errorf("mark %s passing: %w", id, err)
	}
	e.logger.Info("feature marked passing", zap.String("feature", id))

	var decisionID string
	if e.journal != nil {
		if d, err := e.journal.LatestDecision(id, state.DecisionPost); err == nil && d != nil {
			decisionID = d.ID
		}
	}
	e.recordEvent(id, state.EventMarkedPassing, decisionID, "")
	return nil
}

// Next describes what to work on.
type Next struct {
	Feature  *models.Feature `json:"feature,omitempty"`
	Progress compat.Progress `json:"progress"`
	Blocked  *compat.Blocked `json:"blocked,omitempty"`
}

// Next returns the most urgent implementable feature with the ledger's
// progress. When nothing is implementable, Blocked explains why; when
// everything passes, both are nil.
func (e *Engine) Next() (*Next, error) {
	progress, err := e.manager.Progress()
	if err != nil {
		return nil, err
	}
	feature, err := e.manager.NextFeature()
	if err != nil {
		return nil, err
	}
	n := &Next{Feature: feature, Progress: progress}
	if feature == nil {
		if n.Blocked, err = e.manager.BlockedSummary(); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// TestReport aggregates the last n batches of every tier.
func (e *Engine) TestReport(n int) (*testrunner.Report, error) {
	return e.runner.Report(n)
}

// Validate checks the ledgers for consistency problems.
func (e *Engine) Validate() ([]compat.Problem, error) {
	return e.manager.Validate()
}

// History is the journal of one feature, or of all features.
type History struct {
	Decisions []state.Decision     `json:"decisions"`
	Events    []state.FeatureEvent `json:"events"`
	Runs      []state.TestRun      `json:"runs,omitempty"`
}

// History returns journaled decisions and events for featureID (every
// feature when empty), newest decisions first. Runs are included only for
// the whole-project view.
func (e *Engine) History(featureID string, limit int) (*History, error) {
	h := &History{Decisions: []state.Decision{}, Events: []state.FeatureEvent{}}
	if e.journal == nil {
		return h, nil
	}

	decisions, err := e.journal.ListDecisions(featureID, limit)
	if err != nil {
		return nil, err
	}
	events, err := e.journal.ListFeatureEvents(featureID)
	if err != nil {
		return nil, err
	}
	if decisions != nil {
		h.Decisions = decisions
	}
	if events != nil {
		h.Events = events
	}
	if featureID == "" {
		if h.Runs, err = e.journal.ListTestRuns("", limit); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// PurgeHistory drops journal rows older than olderThan and returns how
// many were removed.
func (e *Engine) PurgeHistory(olderThan time.Duration) (int64, error) {
	if e.journal == nil {
		return 0, nil
	}
	n, err := e.journal.Purge(olderThan)
	if err != nil {
		return 0, err
	}
	e.logger.Info("journal purged", zap.Duration("older_than", olderThan), zap.Int64("rows", n))
	return n, nil
}

// ResultsDir returns where batches are written, or "".
func (e *Engine) ResultsDir() string {
	if rs := e.runner.Results(); rs != nil {
		return rs.Dir()
	}
	return ""
}

func (e *Engine) requireFeature(id string) (*models.Feature, error) {
	features, err := e.store.Features()
	if err != nil {
		return nil, fmt.Errorf("load features: %w", err)
	}
	for i := range features {
		if features[i].ID == id {
			return &features[i], nil
		}
	}
	return nil, fmt.Errorf("%s: %w", id, compat.ErrFeatureNotFound)
}

// Journal writes are best effort; failures are logged.

func (e *Engine) recordRun(batch *models.TestBatch) {
	if e.journal == nil {
		return
	}
	if err := e.journal.RecordTestRun(state.TestRunFromBatch(batch)); err != nil {
		e.logger.Warn("journal test run failed", zap.String("tier", string(batch.Tier)), zap.Error(err))
	}
}

func (e *Engine) recordDecision(d *state.Decision) {
	if e.journal == nil {
		return
	}
	if err := e.journal.RecordDecision(d); err != nil {
		e.logger.Warn("journal decision failed", zap.String("feature", d.FeatureID), zap.Error(err))
	}
}

func (e *Engine) recordEvent(featureID, event, decisionID, detail string) {
	if e.journal == nil {
		return
	}
	err := e.journal.RecordFeatureEvent(&state.FeatureEvent{
		FeatureID:  featureID,
		Event:      event,
		DecisionID: decisionID,
		Detail:     detail,
	})
	if err != nil {
		e.logger.Warn("journal event failed", zap.String("feature", featureID), zap.Error(err))
	}
}
