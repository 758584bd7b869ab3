// Package docdb defines the durable store interfaces for leases,
// sessions and message logs. Implementations live under
// internal/infrastructure/docdb; all status mutation goes through the
// compare-and-set operations defined here so first-writer-wins
// semantics hold regardless of backend.
package docdb

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by all store implementations.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("docdb: not found")
	// ErrDuplicateKey indicates an insert violated a uniqueness constraint.
	ErrDuplicateKey = errors.New("docdb: duplicate key")
	// ErrNoTransition indicates a compare-and-set matched no document,
	// i.e. another writer already moved the entity out of the expected
	// state.
	ErrNoTransition = errors.New("docdb: no matching transition")
)

// ActiveLeaseError reports that a product already carries an ACTIVE
// lease. It carries the winning lease's id so callers can distinguish
// "already held" from a transient failure.
type ActiveLeaseError struct {
	ExistingID string
}

func (e *ActiveLeaseError) Error() string {
	return fmt.Sprintf("docdb: product already has active lease %s", e.ExistingID)
}
