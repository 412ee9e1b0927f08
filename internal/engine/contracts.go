package engine

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ShayCichocki/featuregate/internal/contracts"
	"github.com/ShayCichocki/featuregate/internal/ledger"
	"github.com/ShayCichocki/featuregate/internal/state"
	"github.com/ShayCichocki/featuregate/pkg/models"
)

// ErrContractsReadOnly is returned when the store cannot save contracts.
var ErrContractsReadOnly = errors.New("contract ledger is read-only")

// Contracts returns every contract, sorted by name. Implementer and
// consumer lists include the features' own declarations.
func (e *Engine) Contracts() ([]*models.InterfaceContract, error) {
	ledgerContracts, err := e.store.Contracts()
	if err != nil {
		return nil, fmt.Errorf("load contracts: %w", err)
	}
	features, err := e.store.Features()
	if err != nil {
		return nil, fmt.Errorf("load features: %w", err)
	}
	reg := contracts.NewRegistry(ledgerContracts, features)
	all := reg.Contracts()
	out := make([]*models.InterfaceContract, 0, len(all))
	for _, name := range reg.Names() {
		out = append(out, all[name])
	}
	return out, nil
}

// AmendContracts loads the contract ledger, applies fn to it and saves the
// result. Only the ledger is saved; features' own declarations are not
// folded into it. Nothing is saved when fn fails.
func (e *Engine) AmendContracts(fn func(*contracts.Registry) error) error {
	w, ok := e.store.(ledger.ContractWriter)
	if !ok {
		return ErrContractsReadOnly
	}
	current, err := e.store.Contracts()
	if err != nil {
		return fmt.Errorf("load contracts: %w", err)
	}
	reg := contracts.NewRegistry(current, nil)
	if err := fn(reg); err != nil {
		return err
	}
	if err := w.SaveContracts(reg.Contracts()); err != nil {
		return fmt.Errorf("save contracts: %w", err)
	}
	return nil
}

// DeclareContract adds or replaces a contract definition. Every feature it
// names must exist.
func (e *Engine) DeclareContract(c models.InterfaceContract) error {
	for _, ids := range [][]string{c.ImplementedBy, c.UsedBy} {
		for _, id := range ids {
			if _, err := e.requireFeature(id); err != nil {
				return err
			}
		}
	}
	if err := e.AmendContracts(func(r *contracts.Registry) error { return r.Declare(c) }); err != nil {
		return err
	}
	e.logger.Info("contract declared", zap.String("contract", c.Name))
	return nil
}

// AddContractImplementer records that featureID implements the named contract.
func (e *Engine) AddContractImplementer(name, featureID string) error {
	return e.linkContract(name, featureID, state.EventContractImplemented, (*contracts.Registry).AddImplementer)
}

// AddContractConsumer records that featureID uses the named contract.
func (e *Engine) AddContractConsumer(name, featureID string) error {
	return e.linkContract(name, featureID, state.EventContractUsed, (*contracts.Registry).AddConsumer)
}

func (e *Engine) linkContract(name, featureID, event string, link func(*contracts.Registry, string, string) error) error {
	if _, err := e.requireFeature(featureID); err != nil {
		return err
	}
	err := e.AmendContracts(func(r *contracts.Registry) error {
		return link(r, name, featureID)
	})
	if err != nil {
		return err
	}
	e.logger.Info("contract linked",
		zap.String("contract", name),
		zap.String("feature", featureID),
		zap.String("event", event))
	e.recordEvent(featureID, event, "", name)
	return nil
}

// CheckInterfaceCompatibility checks the contracts id implements and uses.
func (e *Engine) CheckInterfaceCompatibility(id string) (contracts.Compatibility, error) {
	if _, err := e.requireFeature(id); err != nil {
		return contracts.Compatibility{}, err
	}
	return e.manager.CheckInterfaceCompatibility(id)
}

// IntegrationTestsFor returns the declared integration tests covering id.
func (e *Engine) IntegrationTestsFor(id string) ([]models.IntegrationTest, error) {
	if _, err := e.requireFeature(id); err != nil {
		return nil, err
	}
	return e.manager.IntegrationTestsFor(id)
}
