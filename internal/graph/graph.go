// Package graph provides the feature dependency graph.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ShayCichocki/featuregate/pkg/models"
)

// ErrCycleDetected indicates a circular hard dependency between features.
var ErrCycleDetected = errors.New("circular dependency detected")

// CycleError carries the features that form a hard dependency cycle.
// Path starts and ends with the same feature id.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCycleDetected, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error {
	return ErrCycleDetected
}

// DependencyGraph is the directed graph formed by features' declared
// dependencies. Edges point from a feature to the features it depends on.
// Dependencies on ids that are not in the ledger are kept as edges but have
// no node; queries treat them permissively.
type DependencyGraph struct {
	mu sync.RWMutex
	// nodes maps feature ID to the feature record.
	nodes map[string]*models.Feature
	// order is the ledger order of node ids.
	order []string
	// edges maps feature ID to its declared dependencies, in ledger order.
	edges map[string][]models.Dependency
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates a new empty dependency graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes:    make(map[string]*models.Feature),
		edges:    make(map[string][]models.Dependency),
		debugLog: func(format string, args ...interface{}) {}, // no-op by default
	}
}

// FromFeatures builds a graph from a ledger snapshot.
func FromFeatures(features []models.Feature) *DependencyGraph {
	g := New()
	g.Build(features)
	return g
}

// SetDebugLog sets the debug logging function.
func (g *DependencyGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Build replaces the graph contents with the given features. The first
// record wins when an id is duplicated. Building never fails; unknown
// dependency ids are logged and kept.
func (g *DependencyGraph) Build(features []models.Feature) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes = make(map[string]*models.Feature, len(features))
	g.edges = make(map[string][]models.Dependency, len(features))
	g.order = g.order[:0]

	for i := range features {
		f := &features[i]
		if _, dup := g.nodes[f.ID]; dup {
			g.debugLog("[graph.Build] duplicate feature id %s ignored", f.ID)
			continue
		}
		g.nodes[f.ID] = f
		g.order = append(g.order, f.ID)
		g.edges[f.ID] = f.Dependencies
	}

	for _, id := range g.order {
		for _, dep := range g.edges[id] {
			if _, ok := g.nodes[dep.FeatureID]; !ok {
				g.debugLog("[graph.Build] feature %s depends on unknown feature %s", id, dep.FeatureID)
			}
		}
	}

	g.debugLog("[graph.Build] graph built with %d features", len(g.order))
}

// Feature returns the feature for a given ID, or nil if not found.
func (g *DependencyGraph) Feature(id string) *models.Feature {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// Has reports whether id is a known feature.
func (g *DependencyGraph) Has(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// Size returns the number of features in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.order)
}

// IDs returns feature ids in ledger order.
func (g *DependencyGraph) IDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.order...)
}

// Dependencies returns the declared dependencies of a feature.
func (g *DependencyGraph) Dependencies(id string) []models.Dependency {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]models.Dependency(nil), g.edges[id]...)
}

// TransitiveDependencies returns every feature id reachable from id along
// dependency edges of any type, sorted. Unknown ids are included but not
// expanded. The start id is never part of the result, even on a cycle.
// An unknown or dependency-free feature yields an empty slice.
func (g *DependencyGraph) TransitiveDependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := map[string]bool{id: true}
	work := []string{id}
	var result []string

	for len(work) > 0 {
		current := work[len(work)-1]
		work = work[:len(work)-1]

		for _, dep := range g.edges[current] {
			if visited[dep.FeatureID] {
				continue
			}
			visited[dep.FeatureID] = true
			result = append(result, dep.FeatureID)
			work = append(work, dep.FeatureID)
		}
	}

	sort.Strings(result)
	if result == nil {
		result = []string{}
	}
	return result
}

// Dependents returns the features that declare a direct dependency on id,
// in ledger order. It does not follow edges beyond one hop.
func (g *DependencyGraph) Dependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	dependents := []string{}
	for _, candidate := range g.order {
		if candidate == id {
			continue
		}
		if g.nodes[candidate].DependsOn(id) {
			dependents = append(dependents, candidate)
		}
	}
	return dependents
}

// FindCycle looks for a cycle among hard dependencies anywhere in the graph.
// It returns nil when the hard subgraph is acyclic.
func (g *DependencyGraph) FindCycle() *CycleError {
	g.mu.RLock()
	defer g.mu.RUnlock()

	colors := make(map[string]int)
	for _, id := range g.order {
		if colors[id] == 0 {
			if path := g.findCycleLocked(id, colors); path != nil {
				return &CycleError{Path: path}
			}
		}
	}
	return nil
}

// FindCycleFrom looks for a hard dependency cycle reachable from id.
func (g *DependencyGraph) FindCycleFrom(id string) *CycleError {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[id]; !ok {
		return nil
	}
	if path := g.findCycleLocked(id, make(map[string]int)); path != nil {
		return &CycleError{Path: path}
	}
	return nil
}

// findCycleLocked is a depth-first search with coloring that returns the
// first back edge found as a closed path. It assumes the lock is held.
func (g *DependencyGraph) findCycleLocked(start string, colors map[string]int) []string {
	// Color states: 0 = white (unvisited), 1 = gray (on stack), 2 = black (done).
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		colors[id] = 1
		stack = append(stack, id)

		for _, dep := range g.edges[id] {
			if dep.Kind() != models.DependencyHard {
				continue
			}
			if _, known := g.nodes[dep.FeatureID]; !known {
				continue
			}
			switch colors[dep.FeatureID] {
			case 1:
				for i, onStack := range stack {
					if onStack == dep.FeatureID {
						path := append([]string(nil), stack[i:]...)
						return append(path, dep.FeatureID)
					}
				}
			case 0:
				if path := visit(dep.FeatureID); path != nil {
					return path
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[id] = 2
		return nil
	}

	return visit(start)
}

// PriorityOrder returns feature ids sorted by ascending priority. Equal
// priorities keep ledger order.
func (g *DependencyGraph) PriorityOrder() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := append([]string(nil), g.order...)
	sort.SliceStable(ids, func(i, j int) bool {
		return g.nodes[ids[i]].Priority < g.nodes[ids[j]].Priority
	})
	return ids
}

// TopologicalSort returns feature ids so that every hard dependency comes
// before the features that depend on it. Ties follow PriorityOrder.
// Returns a *CycleError if the hard subgraph contains a cycle.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	if cycle := g.FindCycle(); cycle != nil {
		return nil, cycle
	}
	order := g.PriorityOrder()

	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := make(map[string]bool)
	result := make([]string, 0, len(order))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, dep := range g.edges[id] {
			if _, known := g.nodes[dep.FeatureID]; known && dep.Kind() == models.DependencyHard {
				visit(dep.FeatureID)
			}
		}
		result = append(result, id)
	}

	for _, id := range order {
		visit(id)
	}
	return result, nil
}
