// Package compat decides whether features can be implemented and builds
// compatibility reports from the dependency graph and contract registry.
package compat

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ShayCichocki/featuregate/internal/contracts"
	"github.com/ShayCichocki/featuregate/internal/graph"
	"github.com/ShayCichocki/featuregate/internal/ledger"
	"github.com/ShayCichocki/featuregate/pkg/models"
)

// ErrFeatureNotFound is returned by APIs that need an existing feature. It
// is the ledger's sentinel, so errors.Is matches either.
var ErrFeatureNotFound = ledger.ErrFeatureNotFound

// DependencyValidation is the outcome of checking a feature's dependencies.
type DependencyValidation struct {
	CanImplement        bool     `json:"can_implement"`
	MissingDependencies []string `json:"missing_dependencies"`
	BlockedBy           []string `json:"blocked_by"`
	// UnknownDependencies are declared ids absent from the ledger. They do not block.
	UnknownDependencies []string `json:"unknown_dependencies,omitempty"`
	Error               string   `json:"error,omitempty"`
	NotFound            bool     `json:"not_found,omitempty"`
}

// Manager answers compatibility questions against a ledger. Every call reads
// a fresh snapshot, so results always reflect the current ledger state.
type Manager struct {
	reader ledger.Reader
	logger *zap.Logger
}

// NewManager creates a manager over reader.
func NewManager(reader ledger.Reader, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{reader: reader, logger: logger}
}

// snapshot is one consistent read of the ledgers.
type snapshot struct {
	features []models.Feature
	graph    *graph.DependencyGraph
	registry *contracts.Registry
	tests    []models.IntegrationTest
}

func (m *Manager) loadFeatures() (*snapshot, error) {
	features, err := m.reader.Features()
	if err != nil {
		return nil, fmt.Errorf("load features: %w", err)
	}
	g := graph.New()
	g.SetDebugLog(m.logger.Sugar().Debugf)
	g.Build(features)
	return &snapshot{features: features, graph: g}, nil
}

func (m *Manager) loadAll() (*snapshot, error) {
	s, err := m.loadFeatures()
	if err != nil {
		return nil, err
	}
	contractLedger, err := m.reader.Contracts()
	if err != nil {
		return nil, fmt.Errorf("load contracts: %w", err)
	}
	s.registry = contracts.NewRegistry(contractLedger, s.features)
	if s.tests, err = m.reader.IntegrationTests(); err != nil {
		return nil, fmt.Errorf("load integration tests: %w", err)
	}
	return s, nil
}

// validate checks id's direct dependencies within a snapshot.
func (m *Manager) validate(s *snapshot, id string) DependencyValidation {
	target := s.graph.Feature(id)
	if target == nil {
		return DependencyValidation{
			CanImplement:        false,
			MissingDependencies: []string{},
			BlockedBy:           []string{},
			Error:               fmt.Sprintf("Feature %s not found", id),
			NotFound:            true,
		}
	}

	missing := []string{}
	var unknown []string
	for _, depID := range target.DependencyIDs() {
		dep := s.graph.Feature(depID)
		if dep == nil {
			m.logger.Debug("dependency not in ledger",
				zap.String("feature", id),
				zap.String("dependency", depID))
			unknown = append(unknown, depID)
			continue
		}
		if !dep.Passes {
			missing = append(missing, depID)
		}
	}

	return DependencyValidation{
		CanImplement:        len(missing) == 0,
		MissingDependencies: missing,
		BlockedBy:           append([]string{}, missing...),
		UnknownDependencies: unknown,
	}
}

// CanImplement reports whether every dependency of id is complete.
// An unknown id is reported through NotFound, not as an error.
func (m *Manager) CanImplement(id string) (DependencyValidation, error) {
	s, err := m.loadFeatures()
	if err != nil {
		return DependencyValidation{}, err
	}
	return m.validate(s, id), nil
}

// CheckInterfaceCompatibility checks the contracts id implements and uses.
func (m *Manager) CheckInterfaceCompatibility(id string) (contracts.Compatibility, error) {
	s, err := m.loadAll()
	if err != nil {
		return contracts.Compatibility{}, err
	}
	return m.interfaceCompatibility(s, id), nil
}

func (m *Manager) interfaceCompatibility(s *snapshot, id string) contracts.Compatibility {
	return s.registry.Check(id, func(impl string) bool {
		return m.validate(s, impl).CanImplement
	})
}

// Dependents returns the features that directly depend on id.
func (m *Manager) Dependents(id string) ([]string, error) {
	s, err := m.loadFeatures()
	if err != nil {
		return nil, err
	}
	return s.graph.Dependents(id), nil
}

// TransitiveDependencies returns every feature id reachable from id.
func (m *Manager) TransitiveDependencies(id string) ([]string, error) {
	s, err := m.loadFeatures()
	if err != nil {
		return nil, err
	}
	return s.graph.TransitiveDependencies(id), nil
}

// IntegrationTestsFor returns the integration tests that cover id, either
// through their features_tested list or the feature's integration_tests ids.
func (m *Manager) IntegrationTestsFor(id string) ([]models.IntegrationTest, error) {
	s, err := m.loadAll()
	if err != nil {
		return nil, err
	}
	return integrationTestsFor(s, id), nil
}

func integrationTestsFor(s *snapshot, id string) []models.IntegrationTest {
	var declared []string
	if f := s.graph.Feature(id); f != nil {
		declared = f.IntegrationTests
	}

	var out []models.IntegrationTest
	for _, t := range s.tests {
		if t.Covers(id) || containsString(declared, t.ID) {
			out = append(out, t)
		}
	}
	return out
}

// ImplementableFeatures returns incomplete features whose dependencies are
// all complete, most urgent first.
func (m *Manager) ImplementableFeatures() ([]models.Feature, error) {
	s, err := m.loadFeatures()
	if err != nil {
		return nil, err
	}
	var out []models.Feature
	for _, id := range s.graph.PriorityOrder() {
		f := s.graph.Feature(id)
		if f.Passes {
			continue
		}
		if m.validate(s, id).CanImplement {
			out = append(out, *f)
		}
	}
	return out, nil
}

// NextFeature returns the most urgent implementable feature, or nil.
func (m *Manager) NextFeature() (*models.Feature, error) {
	features, err := m.ImplementableFeatures()
	if err != nil || len(features) == 0 {
		return nil, err
	}
	return &features[0], nil
}

// BuildOrder returns every feature so that hard dependencies come before
// their dependents, most urgent first among independent features. A hard
// dependency cycle yields a *graph.CycleError.
func (m *Manager) BuildOrder() ([]models.Feature, error) {
	s, err := m.loadFeatures()
	if err != nil {
		return nil, err
	}
	ids, err := s.graph.TopologicalSort()
	if err != nil {
		return nil, err
	}
	out := make([]models.Feature, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.graph.Feature(id))
	}
	return out, nil
}

// Progress summarizes completion of the ledger.
type Progress struct {
	Total         int `json:"total"`
	Passing       int `json:"passing"`
	Implementable int `json:"implementable"`
	Blocked       int `json:"blocked"`
}

// Remaining returns the number of incomplete features.
func (p Progress) Remaining() int {
	return p.Total - p.Passing
}

// Progress counts features by state.
func (m *Manager) Progress() (Progress, error) {
	s, err := m.loadFeatures()
	if err != nil {
		return Progress{}, err
	}
	var p Progress
	for _, id := range s.graph.IDs() {
		p.Total++
		switch {
		case s.graph.Feature(id).Passes:
			p.Passing++
		case m.validate(s, id).CanImplement:
			p.Implementable++
		default:
			p.Blocked++
		}
	}
	return p, nil
}

// Blocked describes why no feature can be worked on.
type Blocked struct {
	Incomplete int      `json:"incomplete"`
	BlockedBy  []string `json:"blocked_by"`
	Message    string   `json:"message"`
}

// BlockedSummary reports the incomplete dependencies holding back the
// remaining features. It returns nil when something is implementable or
// everything is complete.
func (m *Manager) BlockedSummary() (*Blocked, error) {
	s, err := m.loadFeatures()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	incomplete := 0
	for _, id := range s.graph.IDs() {
		if s.graph.Feature(id).Passes {
			continue
		}
		incomplete++
		v := m.validate(s, id)
		if v.CanImplement {
			return nil, nil
		}
		for _, dep := range v.MissingDependencies {
			seen[dep] = true
		}
	}
	if incomplete == 0 {
		return nil, nil
	}

	blockedBy := make([]string, 0, len(seen))
	for id := range seen {
		blockedBy = append(blockedBy, id)
	}
	sort.Strings(blockedBy)
	return &Blocked{
		Incomplete: incomplete,
		BlockedBy:  blockedBy,
		Message:    fmt.Sprintf("All remaining features are blocked by dependencies: %s", joinIDs(blockedBy)),
	}, nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
