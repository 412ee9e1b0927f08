// Package gate turns compatibility reports and test batches into
// proceed/stop verdicts for a unit of work.
package gate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ShayCichocki/featuregate/internal/compat"
	"github.com/ShayCichocki/featuregate/internal/graph"
	"github.com/ShayCichocki/featuregate/pkg/models"
)

// PreDecision is the verdict given before work on a feature starts.
type PreDecision struct {
	FeatureID  string   `json:"feature_id"`
	CanProceed bool     `json:"can_proceed"`
	Blockers   []string `json:"blockers"`
	Warnings   []string `json:"warnings"`
}

// PostDecision is the verdict given after work on a feature finished.
type PostDecision struct {
	FeatureID string              `json:"feature_id"`
	AllPassed bool                `json:"all_passed"`
	Failures  []models.TestResult `json:"failures"`
	// Skipped lists tiers that did not run, with their reasons.
	Skipped []string `json:"skipped,omitempty"`
}

// PreImplementation decides whether work on a feature may start. report
// and reportErr are the outcome of generating the feature's compatibility
// report; smoke is the smoke batch, or nil when smoke checks were not run.
//
// Blockers are de-duplicated and never empty when CanProceed is false.
// Warnings never block.
func PreImplementation(report *compat.Report, reportErr error, smoke *models.TestBatch) PreDecision {
	d := PreDecision{Blockers: []string{}, Warnings: []string{}}
	b := newCollector()

	if report != nil {
		d.FeatureID = report.FeatureID
	}

	if reportErr != nil {
		var cycle *graph.CycleError
		if errors.As(reportErr, &cycle) {
			b.add("Cyclic dependency: " + strings.Join(cycle.Path, " -> "))
		} else {
			b.add("Compatibility report failed: " + reportErr.Error())
		}
	}

	if report != nil {
		v := report.DependencyValidation
		if v.NotFound {
			b.add(fmt.Sprintf("Feature %s not found", report.FeatureID))
		}
		for _, id := range v.MissingDependencies {
			b.add("Missing dependency: " + id)
		}
		if !v.CanImplement && !v.NotFound && len(v.MissingDependencies) == 0 {
			b.add("Dependencies not satisfied")
		}
		d.Warnings = warnings(report)
	} else if reportErr == nil {
		b.add("No compatibility report")
	}

	if smoke != nil {
		for _, res := range smoke.Failed() {
			b.add("Smoke check failed: " + checkName(res))
		}
	}

	d.Blockers = b.items
	d.CanProceed = len(d.Blockers) == 0
	return d
}

// warnings collects the advisory parts of a report.
func warnings(r *compat.Report) []string {
	w := newCollector()
	for _, line := range r.Recommendations {
		if strings.HasPrefix(line, "CAUTION:") {
			w.add(line)
		}
	}
	for _, o := range r.InterfaceCompatibility.Obligations {
		msg := fmt.Sprintf("Must implement interface '%s'", o.Contract)
		if len(o.RequiredMethods) > 0 {
			msg += ": " + strings.Join(o.RequiredMethods, ", ")
		}
		w.add(msg)
	}
	for _, issue := range r.InterfaceCompatibility.Issues {
		w.add(issue.Message)
	}
	for _, msg := range r.InterfaceCompatibility.Warnings {
		w.add(msg)
	}
	for _, id := range r.DependencyValidation.UnknownDependencies {
		w.add("Unknown dependency: " + id)
	}
	return w.items
}

// PostImplementation decides whether a feature's work verified. A nil or
// skipped batch contributes no failures.
func PostImplementation(featureID string, integration, regression *models.TestBatch) PostDecision {
	d := PostDecision{FeatureID: featureID, Failures: []models.TestResult{}}
	for _, batch := range []*models.TestBatch{integration, regression} {
		if batch == nil {
			continue
		}
		if batch.Skipped != "" {
			d.Skipped = append(d.Skipped, fmt.Sprintf("%s: %s", batch.Tier, batch.Skipped))
			continue
		}
		d.Failures = append(d.Failures, batch.Failed()...)
	}
	d.AllPassed = len(d.Failures) == 0
	return d
}

func checkName(res models.TestResult) string {
	if res.TestName != "" {
		return res.TestName
	}
	return res.TestID
}

// collector keeps insertion order and drops duplicates.
type collector struct {
	seen  map[string]bool
	items []string
}

func newCollector() *collector {
	return &collector{seen: make(map[string]bool), items: []string{}}
}

func (c *collector) add(s string) {
	if c.seen[s] {
		return
	}
	c.seen[s] = true
	c.items = append(c.items, s)
}
