package compat

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/featuregate/internal/contracts"
	"github.com/ShayCichocki/featuregate/internal/ledger"
)

// TestRef is an integration test as it appears in a report.
type TestRef struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Features []string `json:"features"`
}

// Report is the compatibility landscape of one feature. It is computed on
// demand and never stored.
type Report struct {
	FeatureID              string                  `json:"feature_id"`
	DependencyValidation   DependencyValidation    `json:"dependency_validation"`
	InterfaceCompatibility contracts.Compatibility `json:"interface_compatibility"`
	Dependencies           []string                `json:"dependencies"`
	Dependents             []string                `json:"dependents"`
	IntegrationTests       []TestRef               `json:"integration_tests"`
	Recommendations        []string                `json:"recommendations"`
	GeneratedAt            time.Time               `json:"generated_at"`
}

// GenerateReport builds the compatibility report for id from one ledger
// snapshot. An unknown id is not an error; it is reported through
// DependencyValidation.NotFound. A hard dependency cycle reachable from id
// fails with a *graph.CycleError.
func (m *Manager) GenerateReport(id string) (*Report, error) {
	s, err := m.loadAll()
	if err != nil {
		return nil, err
	}

	if cycle := s.graph.FindCycleFrom(id); cycle != nil {
		m.logger.Warn("cyclic dependency", zap.String("feature", id), zap.Strings("path", cycle.Path))
		return nil, fmt.Errorf("report for %s: %w", id, cycle)
	}

	tests := integrationTestsFor(s, id)
	refs := make([]TestRef, 0, len(tests))
	for _, t := range tests {
		refs = append(refs, TestRef{ID: t.ID, Name: t.Name, Features: t.FeaturesTested})
	}

	r := &Report{
		FeatureID:              id,
		DependencyValidation:   m.validate(s, id),
		InterfaceCompatibility: m.interfaceCompatibility(s, id),
		Dependencies:           s.graph.TransitiveDependencies(id),
		Dependents:             s.graph.Dependents(id),
		IntegrationTests:       refs,
		GeneratedAt:            time.Now().UTC(),
	}
	r.Recommendations = recommendations(r)

	m.logger.Debug("compatibility report",
		zap.String("feature", id),
		zap.Bool("can_implement", r.DependencyValidation.CanImplement),
		zap.Int("dependents", len(r.Dependents)))
	return r, nil
}

// recommendations derives the advisory lines of a report, in fixed order.
func recommendations(r *Report) []string {
	var out []string

	v := r.DependencyValidation
	switch {
	case v.NotFound:
		out = append(out, fmt.Sprintf("BLOCKED: Feature %s is not in the feature ledger.", r.FeatureID))
	case !v.CanImplement:
		out = append(out, "BLOCKED: Complete these features first: "+joinIDs(v.MissingDependencies))
	}

	if len(r.Dependents) > 0 {
		out = append(out, fmt.Sprintf(
			"CAUTION: These features depend on this one: %s. Changes may require updates to dependent features.",
			joinIDs(r.Dependents)))
	}

	if len(r.IntegrationTests) > 0 {
		names := make([]string, 0, len(r.IntegrationTests))
		for _, t := range r.IntegrationTests {
			name := t.Name
			if name == "" {
				name = t.ID
			}
			names = append(names, name)
		}
		out = append(out, "Run these integration tests after implementation: "+strings.Join(names, ", "))
	} else {
		out = append(out, "Consider adding integration tests for this feature.")
	}

	for _, o := range r.InterfaceCompatibility.Obligations {
		line := fmt.Sprintf("This feature must implement interface '%s'. Ensure all required methods are provided", o.Contract)
		if len(o.RequiredMethods) > 0 {
			line += ": " + strings.Join(o.RequiredMethods, ", ")
		}
		out = append(out, line+".")
	}
	return out
}

// Problem is a ledger consistency problem found by Validate.
type Problem struct {
	Kind    string `json:"kind"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
}

// Problem kinds.
const (
	ProblemLedger   = "ledger"
	ProblemCycle    = "cycle"
	ProblemContract = "contract"
)

// Validate checks the ledgers for structural problems: ledger issues, hard
// dependency cycles and consumed contracts with no implementer.
func (m *Manager) Validate() ([]Problem, error) {
	s, err := m.loadAll()
	if err != nil {
		return nil, err
	}

	var problems []Problem
	for _, issue := range ledger.Validate(s.features) {
		problems = append(problems, Problem{Kind: ProblemLedger, Subject: issue.FeatureID, Message: issue.Message})
	}
	if cycle := s.graph.FindCycle(); cycle != nil {
		problems = append(problems, Problem{
			Kind:    ProblemCycle,
			Subject: cycle.Path[0],
			Message: strings.Join(cycle.Path, " -> "),
		})
	}
	for _, issue := range s.registry.Validate() {
		problems = append(problems, Problem{Kind: ProblemContract, Subject: issue.Contract, Message: issue.Message})
	}
	return problems, nil
}

func joinIDs(ids []string) string {
	return strings.Join(ids, ", ")
}
