package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/ShayCichocki/featuregate/pkg/models"
)

// MemoryStore is an in-process ledger. Readers receive copies, so callers
// cannot mutate the store behind its back.
type MemoryStore struct {
	mu        sync.RWMutex
	features  []models.Feature
	contracts map[string]*models.InterfaceContract
	tests     []models.IntegrationTest
}

// NewMemoryStore creates a store holding the given features.
func NewMemoryStore(features []models.Feature) *MemoryStore {
	s := &MemoryStore{contracts: make(map[string]*models.InterfaceContract)}
	s.features = append(s.features, features...)
	return s
}

// WithContracts replaces the contract ledger and returns the store.
func (s *MemoryStore) WithContracts(contracts map[string]*models.InterfaceContract) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contracts = normalizeContracts(cloneContracts(contracts))
	return s
}

// WithIntegrationTests replaces the integration test ledger and returns the store.
func (s *MemoryStore) WithIntegrationTests(tests []models.IntegrationTest) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tests = append([]models.IntegrationTest(nil), tests...)
	return s
}

// Features returns a copy of the features.
func (s *MemoryStore) Features() ([]models.Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Feature, len(s.features))
	copy(out, s.features)
	return out, nil
}

// Contracts returns a copy of the contracts.
func (s *MemoryStore) Contracts() (map[string]*models.InterfaceContract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneContracts(s.contracts), nil
}

// IntegrationTests returns a copy of the integration tests.
func (s *MemoryStore) IntegrationTests() ([]models.IntegrationTest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.IntegrationTest(nil), s.tests...), nil
}

// SaveContracts replaces the contracts with a copy of contracts.
func (s *MemoryStore) SaveContracts(contracts map[string]*models.InterfaceContract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contracts = normalizeContracts(cloneContracts(contracts))
	return nil
}

// SetPasses updates one feature.
func (s *MemoryStore) SetPasses(featureID string, passes bool, verifiedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.features {
		if s.features[i].ID != featureID {
			continue
		}
		s.features[i].Passes = passes
		if passes && !verifiedAt.IsZero() {
			s.features[i].LastVerifiedCompatible = verifiedAt.UTC().Format(time.RFC3339)
		}
		return nil
	}
	return fmt.Errorf("%s: %w", featureID, ErrFeatureNotFound)
}

func cloneContracts(in map[string]*models.InterfaceContract) map[string]*models.InterfaceContract {
	out := make(map[string]*models.InterfaceContract, len(in))
	for name, c := range in {
		if c == nil {
			out[name] = nil
			continue
		}
		cp := *c
		cp.ImplementedBy = append([]string(nil), c.ImplementedBy...)
		cp.UsedBy = append([]string(nil), c.UsedBy...)
		out[name] = &cp
	}
	return out
}
