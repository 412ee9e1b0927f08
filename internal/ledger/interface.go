// Package ledger loads and persists the project's feature, contract and
// integration-test ledgers.
package ledger

import (
	"time"

	"github.com/ShayCichocki/featuregate/pkg/models"
)

// Reader provides read access to a project's ledgers.
// Every call returns a fresh snapshot of the backing store.
type Reader interface {
	// Features returns feature records in ledger order.
	Features() ([]models.Feature, error)
	// Contracts returns interface contracts keyed by name.
	Contracts() (map[string]*models.InterfaceContract, error)
	// IntegrationTests returns declared integration tests.
	IntegrationTests() ([]models.IntegrationTest, error)
}

// Writer mutates the feature ledger.
type Writer interface {
	// SetPasses updates the completion flag of one feature.
	SetPasses(featureID string, passes bool, verifiedAt time.Time) error
}

// ContractWriter persists the contract ledger.
type ContractWriter interface {
	// SaveContracts replaces the contract ledger.
	SaveContracts(contracts map[string]*models.InterfaceContract) error
}

// Store is a readable and writable ledger.
type Store interface {
	Reader
	Writer
}

// Compile-time verification that both stores implement Store and ContractWriter.
var (
	_ Store          = (*FileStore)(nil)
	_ Store          = (*MemoryStore)(nil)
	_ ContractWriter = (*FileStore)(nil)
	_ ContractWriter = (*MemoryStore)(nil)
)
