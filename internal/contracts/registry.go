// Package contracts tracks shared interface contracts and which features
// implement or consume them.
package contracts

import (
	"fmt"
	"sort"

	"github.com/ShayCichocki/featuregate/pkg/models"
)

// Issue types reported by Check.
const (
	IssueDependency    = "dependency"
	IssueUnimplemented = "unimplemented"
)

// Obligation is what a feature must provide for a contract it implements.
type Obligation struct {
	Contract           string   `json:"contract"`
	Type               string   `json:"type"`
	RequiredMethods    []string `json:"required_methods"`
	RequiredStructures []string `json:"required_structures,omitempty"`
}

// Issue is one reason a feature's interface usage is not yet satisfied.
type Issue struct {
	Contract    string `json:"contract"`
	Type        string `json:"type"`
	Implementer string `json:"implementer,omitempty"`
	Message     string `json:"message"`
}

// Compatibility is the interface compatibility outcome for one feature.
type Compatibility struct {
	Compatible  bool         `json:"compatible"`
	Issues      []Issue      `json:"issues"`
	Obligations []Obligation `json:"obligations"`
	// Warnings are advisory, e.g. references to undeclared contracts.
	Warnings []string `json:"warnings,omitempty"`
}

// Registry holds contracts keyed by name. Implementer and consumer lists
// are the union of the contract ledger and the features' own declarations.
type Registry struct {
	contracts map[string]*models.InterfaceContract
	// undeclared maps feature id to contract names it references that
	// the ledger does not define.
	undeclared map[string][]string
}

// NewRegistry creates a registry from the contract ledger and a feature
// snapshot. The input contracts are not modified.
func NewRegistry(contracts map[string]*models.InterfaceContract, features []models.Feature) *Registry {
	r := &Registry{
		contracts:  make(map[string]*models.InterfaceContract, len(contracts)),
		undeclared: make(map[string][]string),
	}
	for name, c := range contracts {
		cp := models.InterfaceContract{Name: name, Version: models.DefaultContractVersion}
		if c != nil {
			cp = *c
			cp.ImplementedBy = append([]string(nil), c.ImplementedBy...)
			cp.UsedBy = append([]string(nil), c.UsedBy...)
			if cp.Name == "" {
				cp.Name = name
			}
		}
		r.contracts[name] = &cp
	}

	for _, f := range features {
		for _, name := range f.ImplementsInterfaces {
			if c, ok := r.contracts[name]; ok {
				c.ImplementedBy = appendUnique(c.ImplementedBy, f.ID)
			} else {
				r.undeclared[f.ID] = appendUnique(r.undeclared[f.ID], name)
			}
		}
		for _, name := range f.UsesInterfaces {
			if c, ok := r.contracts[name]; ok {
				c.UsedBy = appendUnique(c.UsedBy, f.ID)
			} else {
				r.undeclared[f.ID] = appendUnique(r.undeclared[f.ID], name)
			}
		}
	}
	return r
}

// Get returns a contract by name.
func (r *Registry) Get(name string) (*models.InterfaceContract, bool) {
	c, ok := r.contracts[name]
	return c, ok
}

// Names returns the contract names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.contracts))
	for name := range r.contracts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Contracts returns the merged contracts. The map is owned by the registry.
func (r *Registry) Contracts() map[string]*models.InterfaceContract {
	return r.contracts
}

// Declare adds or replaces a contract definition. Existing implementer and
// consumer lists are kept when the new definition leaves them empty.
func (r *Registry) Declare(c models.InterfaceContract) error {
	if c.Name == "" {
		return fmt.Errorf("declare contract: name is required")
	}
	if c.Version == "" {
		c.Version = models.DefaultContractVersion
	}
	if prev, ok := r.contracts[c.Name]; ok {
		if len(c.ImplementedBy) == 0 {
			c.ImplementedBy = prev.ImplementedBy
		}
		if len(c.UsedBy) == 0 {
			c.UsedBy = prev.UsedBy
		}
	}
	r.contracts[c.Name] = &c
	return nil
}

// AddImplementer records that featureID provides the named contract.
func (r *Registry) AddImplementer(name, featureID string) error {
	c, ok := r.contracts[name]
	if !ok {
		return fmt.Errorf("contract %s: %w", name, ErrContractNotFound)
	}
	c.ImplementedBy = appendUnique(c.ImplementedBy, featureID)
	return nil
}

// AddConsumer records that featureID uses the named contract.
func (r *Registry) AddConsumer(name, featureID string) error {
	c, ok := r.contracts[name]
	if !ok {
		return fmt.Errorf("contract %s: %w", name, ErrContractNotFound)
	}
	c.UsedBy = appendUnique(c.UsedBy, featureID)
	return nil
}

// Implements returns the contracts a feature implements, sorted by name.
func (r *Registry) Implements(featureID string) []*models.InterfaceContract {
	return r.filter(func(c *models.InterfaceContract) bool { return contains(c.ImplementedBy, featureID) })
}

// Uses returns the contracts a feature consumes, sorted by name.
func (r *Registry) Uses(featureID string) []*models.InterfaceContract {
	return r.filter(func(c *models.InterfaceContract) bool { return contains(c.UsedBy, featureID) })
}

func (r *Registry) filter(keep func(*models.InterfaceContract) bool) []*models.InterfaceContract {
	var out []*models.InterfaceContract
	for _, name := range r.Names() {
		if c := r.contracts[name]; keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// Obligations lists what featureID must provide for each contract it implements.
func (r *Registry) Obligations(featureID string) []Obligation {
	obligations := []Obligation{}
	for _, c := range r.Implements(featureID) {
		var structures []string
		for _, d := range c.DataStructures {
			if l := d.Label(); l != "" {
				structures = append(structures, l)
			}
		}
		obligations = append(obligations, Obligation{
			Contract:           c.Name,
			Type:               "implements",
			RequiredMethods:    c.MethodLabels(),
			RequiredStructures: structures,
		})
	}
	return obligations
}

// Check verifies that every contract featureID consumes is provided by
// implementable features. canImplement is asked about each implementer.
func (r *Registry) Check(featureID string, canImplement func(id string) bool) Compatibility {
	result := Compatibility{
		Compatible:  true,
		Issues:      []Issue{},
		Obligations: r.Obligations(featureID),
	}

	for _, c := range r.Uses(featureID) {
		if len(c.ImplementedBy) == 0 {
			result.Issues = append(result.Issues, Issue{
				Contract: c.Name,
				Type:     IssueUnimplemented,
				Message:  fmt.Sprintf("Interface %s has no implementing feature", c.Name),
			})
			continue
		}
		for _, impl := range c.ImplementedBy {
			if impl == featureID || canImplement(impl) {
				continue
			}
			result.Issues = append(result.Issues, Issue{
				Contract:    c.Name,
				Type:        IssueDependency,
				Implementer: impl,
				Message:     fmt.Sprintf("Interface %s is not yet implemented by %s", c.Name, impl),
			})
		}
	}

	for _, name := range r.undeclared[featureID] {
		result.Warnings = append(result.Warnings, fmt.Sprintf("Interface %s is referenced but not declared", name))
	}

	result.Compatible = len(result.Issues) == 0
	return result
}

// Validate returns consumed contracts that nobody implements.
func (r *Registry) Validate() []Issue {
	var issues []Issue
	for _, name := range r.Names() {
		c := r.contracts[name]
		if len(c.UsedBy) > 0 && len(c.ImplementedBy) == 0 {
			issues = append(issues, Issue{
				Contract: name,
				Type:     IssueUnimplemented,
				Message:  fmt.Sprintf("Interface %s is used by %v but has no implementing feature", name, c.UsedBy),
			})
		}
	}
	return issues
}

func appendUnique(list []string, id string) []string {
	if contains(list, id) {
		return list
	}
	return append(list, id)
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
