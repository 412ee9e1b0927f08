package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DefaultPriority is assigned to features whose ledger record omits a priority.
const DefaultPriority = 5

// DependencyType classifies a dependency edge between two features.
type DependencyType string

const (
	// DependencyHard blocks the dependent feature until the target passes.
	DependencyHard DependencyType = "hard"
	// DependencySoft records an ordering preference.
	DependencySoft DependencyType = "soft"
	// DependencyInterface is a dependency mediated by an interface contract.
	DependencyInterface DependencyType = "interface"
)

// Valid returns true if the dependency type is a known value.
func (t DependencyType) Valid() bool {
	switch t {
	case DependencyHard, DependencySoft, DependencyInterface:
		return true
	default:
		return false
	}
}

// Risk is the declared risk that changing a feature breaks its dependents.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Dependency is one declared edge from a feature to a feature it depends on.
// In the ledger it is either a bare feature id or an object.
type Dependency struct {
	// FeatureID is the feature being depended on.
	FeatureID string `json:"feature_id" yaml:"feature_id"`
	// Type is the edge type. Empty means hard.
	Type DependencyType `json:"dependency_type,omitempty" yaml:"dependency_type,omitempty"`
	// InterfaceContract names the contract that mediates an interface dependency.
	InterfaceContract string `json:"interface_contract,omitempty" yaml:"interface_contract,omitempty"`
}

// Kind returns the effective dependency type.
func (d Dependency) Kind() DependencyType {
	if d.Type == "" {
		return DependencyHard
	}
	return d.Type
}

// UnmarshalJSON accepts either "F001" or {"feature_id": "F001", ...}.
func (d *Dependency) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*d = Dependency{FeatureID: id}
		return nil
	}

	type plain Dependency
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode dependency: %w", err)
	}
	*d = Dependency(p)
	return nil
}

// MarshalJSON writes untyped edges back as bare ids.
func (d Dependency) MarshalJSON() ([]byte, error) {
	if d.Type == "" && d.InterfaceContract == "" {
		return json.Marshal(d.FeatureID)
	}
	type plain Dependency
	return json.Marshal(plain(d))
}

// Feature is a discrete, independently trackable unit of work.
type Feature struct {
	// ID is the unique, stable identifier (e.g. F001).
	ID string `json:"id"`
	// Category groups related features (setup, core, api, ...).
	Category string `json:"category,omitempty"`
	// Description says what the feature does.
	Description string `json:"description,omitempty"`
	// Steps are the human verification steps for the feature.
	Steps []string `json:"steps,omitempty"`
	// Priority orders work; lower is more urgent.
	Priority int `json:"priority"`
	// Passes is the completion flag.
	Passes bool `json:"passes"`
	// Dependencies are the declared edges, in ledger order.
	Dependencies []Dependency `json:"dependencies,omitempty"`
	// ImplementsInterfaces lists contracts this feature provides.
	ImplementsInterfaces []string `json:"implements_interfaces,omitempty"`
	// UsesInterfaces lists contracts this feature consumes.
	UsesInterfaces []string `json:"uses_interfaces,omitempty"`
	// IntegrationTests lists ids of integration tests that cover this feature.
	IntegrationTests []string `json:"integration_tests,omitempty"`
	// BreakingChangeRisk is the declared risk for dependents.
	BreakingChangeRisk Risk `json:"breaking_change_risk,omitempty"`
	// LastVerifiedCompatible is when the feature last passed post-verification.
	LastVerifiedCompatible string `json:"last_verified_compatible,omitempty"`
}

// UnmarshalJSON applies DefaultPriority when the record has no priority.
func (f *Feature) UnmarshalJSON(data []byte) error {
	type plain Feature
	aux := struct {
		*plain
		Priority *int `json:"priority"`
	}{plain: (*plain)(f)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Priority != nil {
		f.Priority = *aux.Priority
	} else {
		f.Priority = DefaultPriority
	}
	return nil
}

// DependencyIDs returns the ids of all declared dependencies in order.
func (f *Feature) DependencyIDs() []string {
	ids := make([]string, 0, len(f.Dependencies))
	for _, d := range f.Dependencies {
		ids = append(ids, d.FeatureID)
	}
	return ids
}

// DependsOn reports whether the feature declares a dependency on id.
func (f *Feature) DependsOn(id string) bool {
	for _, d := range f.Dependencies {
		if d.FeatureID == id {
			return true
		}
	}
	return false
}
