// Package docdb defines the document database client interface.
package docdb

import (
	"context"
)

// Client defines the interface for the durable store backend.
type Client interface {
	// Leases returns the lease store.
	Leases() LeaseStore

	// Sessions returns the session store, which owns the message logs.
	Sessions() SessionStore

	// EnsureIndexes creates the indexes the invariants depend on.
	EnsureIndexes(ctx context.Context) error

	// Ping verifies the database connection.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close(ctx context.Context) error
}
