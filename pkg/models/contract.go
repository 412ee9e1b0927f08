package models

import (
	"fmt"
	"sort"
)

// DefaultContractVersion is used when a contract does not declare a version.
const DefaultContractVersion = "1.0.0"

// Descriptor is a free-form method or data structure description from the
// contract ledger, e.g. {"name": "login", "signature": "login(user, pass) -> Token"}.
type Descriptor map[string]any

// Label returns a short display name for the descriptor.
func (d Descriptor) Label() string {
	for _, key := range []string{"name", "signature", "method"} {
		if v, ok := d[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	if len(d) == 0 {
		return ""
	}
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("%v", d[keys[0]])
}

// InterfaceContract is a named, shared API surface that features implement
// or consume.
type InterfaceContract struct {
	// Name is the unique key of the contract.
	Name string `json:"name" yaml:"name"`
	// Description says what the interface is for.
	Description string `json:"description" yaml:"description"`
	// Version is informational only; it is never bumped automatically.
	Version string `json:"version" yaml:"version"`
	// Methods are the required method signatures, in declaration order.
	Methods []Descriptor `json:"methods" yaml:"methods"`
	// DataStructures are the shared structure definitions.
	DataStructures []Descriptor `json:"data_structures" yaml:"data_structures"`
	// ImplementedBy lists ids of features providing the interface.
	ImplementedBy []string `json:"implemented_by" yaml:"implemented_by"`
	// UsedBy lists ids of features consuming the interface.
	UsedBy []string `json:"used_by" yaml:"used_by"`
}

// MethodLabels returns the display names of the required methods.
func (c *InterfaceContract) MethodLabels() []string {
	labels := make([]string, 0, len(c.Methods))
	for _, m := range c.Methods {
		if l := m.Label(); l != "" {
			labels = append(labels, l)
		}
	}
	return labels
}

// IntegrationTest is a declared test that exercises several features together.
type IntegrationTest struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	FeaturesTested []string `json:"features_tested"`
	TestFile       string   `json:"test_file,omitempty"`
	TestFunction   string   `json:"test_function,omitempty"`
	LastRun        string   `json:"last_run,omitempty"`
	LastResult     string   `json:"last_result,omitempty"`
}

// Covers reports whether the test exercises the given feature.
func (t *IntegrationTest) Covers(featureID string) bool {
	for _, id := range t.FeaturesTested {
		if id == featureID {
			return true
		}
	}
	return false
}
