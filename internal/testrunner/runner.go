// Package testrunner executes the smoke, integration and regression test
// tiers and keeps a log of their results.
package testrunner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/featuregate/internal/config"
	iexec "github.com/ShayCichocki/featuregate/internal/exec"
	"github.com/ShayCichocki/featuregate/pkg/models"
)

// Default tier timeouts, used when the configuration leaves them unset.
const (
	DefaultSmokeTimeout       = 30 * time.Second
	DefaultIntegrationTimeout = 120 * time.Second
	DefaultRegressionTimeout  = 300 * time.Second
)

// ErrNoDependents is returned by RunRegression when the runner has no way
// to look up a feature's dependents.
var ErrNoDependents = errors.New("regression tier requires a dependents source")

// DependentsSource resolves the direct dependents of a feature.
type DependentsSource interface {
	Dependents(featureID string) ([]string, error)
}

// Runner executes test tiers for one project.
type Runner struct {
	projectDir string
	cfg        *config.TestConfig
	executor   iexec.Executor
	results    *ResultStore
	dependents DependentsSource
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures a Runner. Use With* functions to create Options.
type Option func(*Runner)

// WithExecutor sets the process execution boundary.
func WithExecutor(e iexec.Executor) Option {
	return func(r *Runner) { r.executor = e }
}

// WithResultStore sets where batches are persisted. Without one, batches
// are returned but not saved.
func WithResultStore(s *ResultStore) Option {
	return func(r *Runner) { r.results = s }
}

// WithDependents sets the dependents lookup used by the regression tier.
func WithDependents(d DependentsSource) Option {
	return func(r *Runner) { r.dependents = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// withClock overrides the clock in tests.
func withClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New creates a runner for projectDir. A nil cfg uses DefaultTestConfig.
func New(projectDir string, cfg *config.TestConfig, opts ...Option) *Runner {
	if cfg == nil {
		cfg = config.DefaultTestConfig()
	}
	r := &Runner{
		projectDir: projectDir,
		cfg:        cfg,
		executor:   iexec.NewShellExecutor(),
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the test configuration in use.
func (r *Runner) Config() *config.TestConfig {
	return r.cfg
}

// Results returns the result store, or nil.
func (r *Runner) Results() *ResultStore {
	return r.results
}

// RunSmoke runs every configured smoke check. Checks run concurrently up to
// smoke_tests.max_parallel; results keep configuration order.
func (r *Runner) RunSmoke(ctx context.Context) (*models.TestBatch, error) {
	batch := r.newBatch(models.TierSmoke)
	smoke := r.cfg.Smoke
	if !smoke.Enabled {
		return r.skip(batch, "smoke tests disabled"), nil
	}

	timeout := seconds(smoke.TimeoutSeconds, DefaultSmokeTimeout)
	batch.Results = make([]models.TestResult, len(smoke.Tests))

	g, gctx := errgroup.WithContext(ctx)
	if smoke.MaxParallel > 1 {
		g.SetLimit(smoke.MaxParallel)
	} else {
		g.SetLimit(1)
	}
	for i, t := range smoke.Tests {
		i, t := i, t
		g.Go(func() error {
			batch.Results[i] = r.runCheck(gctx, checkSpec{
				id:           t.ID,
				name:         t.Name,
				testType:     models.TestTypeSmoke,
				command:      t.Command,
				expectedExit: t.ExpectedExitCode,
				timeout:      timeout,
			})
			return nil
		})
	}
	_ = g.Wait()

	return r.finish(batch), nil
}

// RunIntegration runs the integration suite. With feature ids the run is
// filtered to the tests marked for those features.
func (r *Runner) RunIntegration(ctx context.Context, featureIDs ...string) (*models.TestBatch, error) {
	batch := r.newBatch(models.TierIntegration)
	if !r.cfg.Integration.Enabled {
		return r.skip(batch, "integration tests disabled"), nil
	}
	timeout := seconds(r.cfg.Integration.TimeoutSeconds, DefaultIntegrationTimeout)
	return r.runSuite(ctx, batch, models.TestTypeIntegration, featureIDs, featureIDs, timeout), nil
}

// RunRegression re-runs the integration suite for the changed feature and
// its direct dependents. With regression_tests.run_all_on_change the whole
// suite runs instead.
func (r *Runner) RunRegression(ctx context.Context, changedID string) (*models.TestBatch, error) {
	batch := r.newBatch(models.TierRegression)
	reg := r.cfg.Regression
	if !reg.Enabled {
		return r.skip(batch, "regression tests disabled"), nil
	}

	scope, err := r.RegressionScope(changedID)
	if err != nil {
		return nil, err
	}

	filter := scope
	if reg.RunAllOnChange {
		filter = nil
	}
	timeout := seconds(reg.TimeoutSeconds, DefaultRegressionTimeout)
	return r.runSuite(ctx, batch, models.TestTypeRegression, scope, filter, timeout), nil
}

// RegressionScope returns the changed feature followed by its direct dependents.
func (r *Runner) RegressionScope(changedID string) ([]string, error) {
	if r.dependents == nil {
		return nil, ErrNoDependents
	}
	dependents, err := r.dependents.Dependents(changedID)
	if err != nil {
		return nil, fmt.Errorf("dependents of %s: %w", changedID, err)
	}
	scope := []string{changedID}
	for _, id := range dependents {
		if id != changedID {
			scope = append(scope, id)
		}
	}
	return scope, nil
}

// runSuite runs the configured integration command once. scope is recorded
// on the batch and result; filter selects the tests to run.
func (r *Runner) runSuite(ctx context.Context, batch *models.TestBatch, testType models.TestType, scope, filter []string, timeout time.Duration) *models.TestBatch {
	ic := r.cfg.Integration
	batch.Features = scope

	testDir := ic.TestDirectory
	if _, err := os.Stat(filepath.Join(r.projectDir, testDir)); err != nil {
		r.logger.Warn("integration test directory not found", zap.String("dir", testDir))
		return r.skip(batch, fmt.Sprintf("integration test directory %s not found", testDir))
	}

	batch.Results = []models.TestResult{
		r.runCheck(ctx, checkSpec{
			id:       strings.ToUpper(string(batch.Tier)) + "_RUN",
			name:     fmt.Sprintf("%s: %s", titleCase(string(batch.Tier)), testDir),
			testType: testType,
			command:  r.suiteCommand(filter),
			timeout:  timeout,
			features: scope,
		}),
	}
	return r.finish(batch)
}

// suiteCommand expands the integration command and, for a scoped run, the
// feature filter.
func (r *Runner) suiteCommand(featureIDs []string) string {
	ic := r.cfg.Integration
	cmd := strings.NewReplacer("{test_dir}", ic.TestDirectory).Replace(ic.Command)
	if len(featureIDs) == 0 || ic.Filter == "" {
		return cmd
	}

	markers := make([]string, 0, len(featureIDs))
	for _, id := range featureIDs {
		markers = append(markers, strings.ReplaceAll(ic.FeatureMarker, "{id}", id))
	}
	return cmd + " " + strings.ReplaceAll(ic.Filter, "{pattern}", strings.Join(markers, "|"))
}

func (r *Runner) newBatch(tier models.TestTier) *models.TestBatch {
	return &models.TestBatch{
		ID:        uuid.NewString(),
		Tier:      tier,
		StartedAt: r.now(),
		Results:   []models.TestResult{},
	}
}

func (r *Runner) skip(batch *models.TestBatch, reason string) *models.TestBatch {
	batch.Skipped = reason
	batch.FinishedAt = r.now()
	r.logger.Info("tier skipped", zap.String("tier", string(batch.Tier)), zap.String("reason", reason))
	return batch
}

// finish stamps and persists a batch. Persistence failures are logged; the
// batch is still returned.
func (r *Runner) finish(batch *models.TestBatch) *models.TestBatch {
	batch.FinishedAt = r.now()
	if r.results != nil {
		if _, err := r.results.Save(batch); err != nil {
			r.logger.Warn("saving test results failed", zap.String("tier", string(batch.Tier)), zap.Error(err))
		}
	}
	r.logger.Info("tier finished",
		zap.String("tier", string(batch.Tier)),
		zap.Int("results", len(batch.Results)),
		zap.Int("failed", len(batch.Failed())))
	return batch
}

func seconds(n int, fallback time.Duration) time.Duration {
	if n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
