package contracts

import "errors"

// ErrContractNotFound is returned when a contract name is not registered.
var ErrContractNotFound = errors.New("contract not found")
