// Package mongodb provides the leases collection implementation.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tradepost/deal-service/internal/core/docdb"
	"github.com/tradepost/deal-service/internal/domain/models"
)

// LeasesCollectionName is the name of the leases collection.
const LeasesCollectionName = "leases"

// LeaseCollection implements the docdb.LeaseStore interface for
// MongoDB. The single-ACTIVE-lease-per-product invariant rests on a
// partial unique index over productId filtered to ACTIVE status, so
// concurrent creates race on the index rather than on a read-then-write.
type LeaseCollection struct {
	leases *mongo.Collection
}

// NewLeaseCollection creates a new lease collection wrapper.
func NewLeaseCollection(db *mongo.Database) *LeaseCollection {
	return &LeaseCollection{
		leases: db.Collection(LeasesCollectionName),
	}
}

// Insert stores a new ACTIVE lease.
func (c *LeaseCollection) Insert(ctx context.Context, lease *models.Lease) error {
	_, err := c.leases.InsertOne(ctx, lease)
	if err == nil {
		return nil
	}

	if mongo.IsDuplicateKeyError(err) {
		// Another ACTIVE lease won the index race; surface its id.
		existing, lookupErr := c.ActiveForProduct(ctx, lease.ProductID)
		if lookupErr == nil && existing != nil {
			return &docdb.ActiveLeaseError{ExistingID: existing.ID}
		}
		return &docdb.ActiveLeaseError{}
	}

	return fmt.Errorf("failed to insert lease: %w", err)
}

// Get retrieves a lease by id.
func (c *LeaseCollection) Get(ctx context.Context, id string) (*models.Lease, error) {
	var lease models.Lease
	err := c.leases.FindOne(ctx, bson.M{"_id": id}).Decode(&lease)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, docdb.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get lease: %w", err)
	}
	return &lease, nil
}

// ActiveForProduct returns the ACTIVE lease for a product, or nil.
func (c *LeaseCollection) ActiveForProduct(ctx context.Context, productID string) (*models.Lease, error) {
	var lease models.Lease
	err := c.leases.FindOne(ctx, bson.M{
		"productId": productID,
		"status":    models.LeaseStatusActive,
	}).Decode(&lease)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active lease: %w", err)
	}
	return &lease, nil
}

// ListByHolder returns all leases held by a principal, newest first.
func (c *LeaseCollection) ListByHolder(ctx context.Context, holderID string) ([]*models.Lease, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := c.leases.Find(ctx, bson.M{"holderId": holderID}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to list leases: %w", err)
	}
	defer cursor.Close(ctx)

	var leases []*models.Lease
	if err := cursor.All(ctx, &leases); err != nil {
		return nil, fmt.Errorf("failed to decode leases: %w", err)
	}

	return leases, nil
}

// TransitionStatus atomically moves a lease between statuses. The
// filter carries the expected current status, so whichever writer
// commits first wins and the loser sees ErrNoTransition.
func (c *LeaseCollection) TransitionStatus(ctx context.Context, id string, from, to models.LeaseStatus, at time.Time) (*models.Lease, error) {
	updateOpts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var lease models.Lease
	err := c.leases.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to, "updatedAt": at.UTC()}},
		updateOpts,
	).Decode(&lease)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, docdb.ErrNoTransition
		}
		return nil, fmt.Errorf("failed to transition lease status: %w", err)
	}

	return &lease, nil
}

// ListDue returns ACTIVE leases whose expiry timestamp has passed.
func (c *LeaseCollection) ListDue(ctx context.Context, now time.Time) ([]*models.Lease, error) {
	cursor, err := c.leases.Find(ctx, bson.M{
		"status":    models.LeaseStatusActive,
		"expiresAt": bson.M{"$lte": now.UTC()},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list due leases: %w", err)
	}
	defer cursor.Close(ctx)

	var leases []*models.Lease
	if err := cursor.All(ctx, &leases); err != nil {
		return nil, fmt.Errorf("failed to decode due leases: %w", err)
	}

	return leases, nil
}

// EnsureIndexes creates necessary indexes for the leases collection.
func (c *LeaseCollection) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "productId", Value: 1}},
			Options: options.Index().
				SetName("idx_active_product").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": models.LeaseStatusActive}),
		},
		{
			Keys: bson.D{
				{Key: "holderId", Value: 1},
				{Key: "createdAt", Value: -1},
			},
			Options: options.Index().SetName("idx_holder_created"),
		},
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "expiresAt", Value: 1},
			},
			Options: options.Index().SetName("idx_status_expires"),
		},
	}

	_, err := c.leases.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create lease indexes: %w", err)
	}

	return nil
}
