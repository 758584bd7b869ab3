package docdb

import (
	"context"
	"time"

	"github.com/tradepost/deal-service/internal/domain/models"
)

// LeaseStore persists reservation leases. The one-ACTIVE-lease-per-
// product invariant is enforced at this layer (unique index or
// equivalent), not by callers checking first.
type LeaseStore interface {
	// Insert stores a new ACTIVE lease. Returns *ActiveLeaseError if
	// the product already carries an ACTIVE lease.
	Insert(ctx context.Context, lease *models.Lease) error

	// Get retrieves a lease by id. Returns ErrNotFound if unknown.
	Get(ctx context.Context, id string) (*models.Lease, error)

	// ActiveForProduct returns the ACTIVE lease for a product, or nil
	// if none exists.
	ActiveForProduct(ctx context.Context, productID string) (*models.Lease, error)

	// ListByHolder returns all leases held by a principal, newest first.
	ListByHolder(ctx context.Context, holderID string) ([]*models.Lease, error)

	// TransitionStatus atomically moves a lease from one status to
	// another. Returns the updated lease, or ErrNoTransition if the
	// lease was not in the expected status (another writer won).
	TransitionStatus(ctx context.Context, id string, from, to models.LeaseStatus, at time.Time) (*models.Lease, error)

	// ListDue returns ACTIVE leases whose expiry timestamp has passed.
	ListDue(ctx context.Context, now time.Time) ([]*models.Lease, error)
}
