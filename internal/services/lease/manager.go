// Package lease implements the reservation lease manager. A lease is a
// time-bounded exclusive hold on a product; the manager enforces the
// at-most-one-active-lease-per-product invariant and owns every status
// transition, so the sweep and the live event stream derive from the
// same state change.
package lease

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tradepost/deal-service/internal/core/docdb"
	domainerrors "github.com/tradepost/deal-service/internal/domain/errors"
	"github.com/tradepost/deal-service/internal/domain/models"
	"github.com/tradepost/deal-service/internal/pkg/clock"
	"github.com/tradepost/deal-service/internal/services/marketplace"
)

// DefaultStoreTimeout bounds a single store operation. Callers get a
// retryable TIMEOUT error instead of blocking indefinitely.
const DefaultStoreTimeout = 5 * time.Second

// EventSink receives the event emitted by each committed transition.
type EventSink interface {
	Emit(event *models.Event)
}

// Manager defines the reservation lease operations.
type Manager interface {
	// Create grants a new ACTIVE lease on a product.
	Create(ctx context.Context, productID, holderID string, durationMinutes int) (*models.Lease, error)

	// GetForProduct returns the current ACTIVE lease for a product, or
	// nil if the product is unheld. Terminal leases are never returned.
	GetForProduct(ctx context.Context, productID string) (*models.Lease, error)

	// Cancel transitions an ACTIVE lease to CANCELLED. Holder only.
	Cancel(ctx context.Context, leaseID, requesterID string) (*models.Lease, error)

	// ListForHolder returns all leases held by a principal.
	ListForHolder(ctx context.Context, holderID string) ([]*models.Lease, error)

	// ExpireDue transitions every overdue ACTIVE lease to EXPIRED and
	// returns how many transitions committed.
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

// manager implements the Manager interface.
type manager struct {
	store        docdb.LeaseStore
	catalog      marketplace.Client
	clk          clock.Clock
	events       EventSink
	storeTimeout time.Duration
	logger       zerolog.Logger
}

// Config holds the configuration for the lease manager.
type Config struct {
	Store        docdb.LeaseStore
	Catalog      marketplace.Client
	Clock        clock.Clock
	Events       EventSink
	StoreTimeout time.Duration
}

// NewManager creates a new lease manager.
func NewManager(cfg *Config) (Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("lease store is required")
	}
	if cfg.Clock == nil {
		return nil, errors.New("clock is required")
	}
	if cfg.Events == nil {
		return nil, errors.New("event sink is required")
	}

	timeout := cfg.StoreTimeout
	if timeout == 0 {
		timeout = DefaultStoreTimeout
	}

	return &manager{
		store:        cfg.Store,
		catalog:      cfg.Catalog,
		clk:          cfg.Clock,
		events:       cfg.Events,
		storeTimeout: timeout,
		logger:       log.With().Str("component", "lease-manager").Logger(),
	}, nil
}

// Create grants a new ACTIVE lease on a product. Rejects durations
// outside the accepted set, unknown or sold products, and products
// already carrying an ACTIVE lease (Conflict with the winner's id).
// A hold that ran out since the last sweep is expired in place rather
// than reported as a conflict.
func (m *manager) Create(ctx context.Context, productID, holderID string, durationMinutes int) (*models.Lease, error) {
	if !models.ValidLeaseDuration(durationMinutes) {
		return nil, domainerrors.NewValidationError("invalid lease duration",
			"durationMinutes must be one of 30, 60, 120, 1440")
	}

	if m.catalog != nil {
		product, err := m.catalog.GetProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		if product.Sold {
			return nil, domainerrors.NewConflictError("product already sold", productID)
		}
	}

	lease := models.NewLease(productID, holderID, durationMinutes, m.clk.Now())

	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	err := m.store.Insert(opCtx, lease)
	if err != nil {
		var activeErr *docdb.ActiveLeaseError
		if errors.As(err, &activeErr) {
			// An overdue winner the sweep has not reached yet does not
			// block a new grant: expire it in place and retry once.
			if existing, getErr := m.store.Get(opCtx, activeErr.ExistingID); getErr == nil && existing.IsDue(m.clk.Now()) {
				m.expire(ctx, existing)
				err = m.store.Insert(opCtx, lease)
			}
		}
	}
	if err != nil {
		var activeErr *docdb.ActiveLeaseError
		if errors.As(err, &activeErr) {
			return nil, domainerrors.NewConflictErrorWithID("product already has an active lease", activeErr.ExistingID)
		}
		return nil, m.storeError("create lease", err)
	}

	m.logger.Info().
		Str("lease_id", lease.ID).
		Str("product_id", productID).
		Str("holder_id", holderID).
		Int("duration_minutes", durationMinutes).
		Msg("lease created")

	m.events.Emit(&models.Event{
		Type:      models.EventLeaseCreated,
		ProductID: productID,
		UserID:    holderID,
		Lease:     lease,
		At:        lease.CreatedAt,
	})

	return lease, nil
}

// GetForProduct returns the current ACTIVE lease. An overdue lease is
// lazily expired first, so readers never observe a stale ACTIVE status
// between sweep runs.
func (m *manager) GetForProduct(ctx context.Context, productID string) (*models.Lease, error) {
	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	lease, err := m.store.ActiveForProduct(opCtx, productID)
	if err != nil {
		return nil, m.storeError("get lease", err)
	}
	if lease == nil {
		return nil, nil
	}

	if lease.IsDue(m.clk.Now()) {
		m.expire(ctx, lease)
		return nil, nil
	}

	return lease, nil
}

// Cancel transitions an ACTIVE lease to CANCELLED. Not idempotent
// across terminal states: cancelling an already expired or cancelled
// lease is a Conflict so callers can tell the transition race apart
// from success.
func (m *manager) Cancel(ctx context.Context, leaseID, requesterID string) (*models.Lease, error) {
	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	lease, err := m.store.Get(opCtx, leaseID)
	if err != nil {
		if errors.Is(err, docdb.ErrNotFound) {
			return nil, domainerrors.NewNotFoundError("lease", leaseID)
		}
		return nil, m.storeError("get lease", err)
	}

	if lease.HolderID != requesterID {
		return nil, domainerrors.NewForbiddenError("only the lease holder may cancel")
	}

	if lease.Status.IsTerminal() {
		return nil, domainerrors.NewConflictError("lease is no longer active", string(lease.Status))
	}

	now := m.clk.Now()
	updated, err := m.store.TransitionStatus(opCtx, leaseID, models.LeaseStatusActive, models.LeaseStatusCancelled, now)
	if err != nil {
		if errors.Is(err, docdb.ErrNoTransition) {
			// The sweep or a concurrent cancel committed first.
			return nil, domainerrors.NewConflictError("lease is no longer active", leaseID)
		}
		return nil, m.storeError("cancel lease", err)
	}

	m.logger.Info().
		Str("lease_id", leaseID).
		Str("holder_id", requesterID).
		Msg("lease cancelled")

	m.events.Emit(&models.Event{
		Type:      models.EventLeaseCancelled,
		ProductID: updated.ProductID,
		UserID:    requesterID,
		Lease:     updated,
		At:        now,
	})

	return updated, nil
}

// ListForHolder returns all leases held by a principal, lazily expiring
// any that ran out since the last sweep.
func (m *manager) ListForHolder(ctx context.Context, holderID string) ([]*models.Lease, error) {
	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	leases, err := m.store.ListByHolder(opCtx, holderID)
	if err != nil {
		return nil, m.storeError("list leases", err)
	}

	now := m.clk.Now()
	for i, lease := range leases {
		if lease.IsDue(now) {
			if expired := m.expire(ctx, lease); expired != nil {
				leases[i] = expired
			}
		}
	}

	return leases, nil
}

// ExpireDue is the sweep body. It competes with Cancel on the same
// compare-and-set; whichever commits first wins and the loser's
// transition is skipped without corrupting state.
func (m *manager) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	due, err := m.store.ListDue(opCtx, now)
	if err != nil {
		return 0, m.storeError("list due leases", err)
	}

	expired := 0
	for _, lease := range due {
		if m.expire(ctx, lease) != nil {
			expired++
		}
	}
	return expired, nil
}

// expire commits a single ACTIVE to EXPIRED transition and emits the
// event. Returns nil if another writer got there first.
func (m *manager) expire(ctx context.Context, lease *models.Lease) *models.Lease {
	opCtx, cancel := m.opContext(ctx)
	defer cancel()

	now := m.clk.Now()
	updated, err := m.store.TransitionStatus(opCtx, lease.ID, models.LeaseStatusActive, models.LeaseStatusExpired, now)
	if err != nil {
		if !errors.Is(err, docdb.ErrNoTransition) {
			m.logger.Error().Err(err).Str("lease_id", lease.ID).Msg("failed to expire lease")
		}
		return nil
	}

	m.logger.Info().
		Str("lease_id", lease.ID).
		Str("product_id", lease.ProductID).
		Msg("lease expired")

	m.events.Emit(&models.Event{
		Type:      models.EventLeaseExpired,
		ProductID: updated.ProductID,
		UserID:    updated.HolderID,
		Lease:     updated,
		At:        now,
	})

	return updated
}

// opContext bounds a store operation with the configured timeout.
func (m *manager) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.storeTimeout)
}

// storeError maps a failed store call to the taxonomy.
func (m *manager) storeError(operation string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domainerrors.NewTimeoutError(operation)
	}
	return domainerrors.NewInternalError("lease store failure", err)
}
