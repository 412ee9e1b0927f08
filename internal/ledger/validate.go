package ledger

import (
	"fmt"

	"github.com/ShayCichocki/featuregate/pkg/models"
)

// Issue is a structural problem found in a feature ledger.
type Issue struct {
	FeatureID string `json:"feature_id"`
	Message   string `json:"message"`
}

func (i Issue) String() string {
	if i.FeatureID == "" {
		return i.Message
	}
	return fmt.Sprintf("%s: %s", i.FeatureID, i.Message)
}

// Validate checks the ledger invariants that do not need the graph:
// non-empty unique ids, no self-dependencies and known dependency types.
// Cycle detection lives in the graph package.
func Validate(features []models.Feature) []Issue {
	var issues []Issue
	seen := make(map[string]int, len(features))

	for i, f := range features {
		if f.ID == "" {
			issues = append(issues, Issue{Message: fmt.Sprintf("record %d has no id", i)})
			continue
		}
		if prev, ok := seen[f.ID]; ok {
			issues = append(issues, Issue{
				FeatureID: f.ID,
				Message:   fmt.Sprintf("duplicate id (records %d and %d)", prev, i),
			})
		} else {
			seen[f.ID] = i
		}

		for _, d := range f.Dependencies {
			if d.FeatureID == f.ID {
				issues = append(issues, Issue{FeatureID: f.ID, Message: "declares itself as a dependency"})
			}
			if d.FeatureID == "" {
				issues = append(issues, Issue{FeatureID: f.ID, Message: "has a dependency without feature_id"})
			}
			if d.Type != "" && !d.Type.Valid() {
				issues = append(issues, Issue{
					FeatureID: f.ID,
					Message:   fmt.Sprintf("dependency on %s has unknown type %q", d.FeatureID, d.Type),
				})
			}
		}
	}
	return issues
}
