// Package models contains domain models for the TradePost Deal Service.
package models

import (
	"time"

	"github.com/google/uuid"
)

// LeaseStatus represents the lifecycle state of a reservation lease.
type LeaseStatus string

const (
	// LeaseStatusActive indicates the lease currently holds the product.
	LeaseStatusActive LeaseStatus = "ACTIVE"
	// LeaseStatusExpired indicates the lease ran past its expiry timestamp.
	LeaseStatusExpired LeaseStatus = "EXPIRED"
	// LeaseStatusCancelled indicates the holder released the lease early.
	LeaseStatusCancelled LeaseStatus = "CANCELLED"
)

// IsTerminal reports whether the status permits no further transitions.
func (s LeaseStatus) IsTerminal() bool {
	return s == LeaseStatusExpired || s == LeaseStatusCancelled
}

// LeaseDurations is the closed set of accepted lease durations in minutes.
var LeaseDurations = []int{30, 60, 120, 1440}

// ValidLeaseDuration reports whether minutes is one of the accepted values.
func ValidLeaseDuration(minutes int) bool {
	for _, d := range LeaseDurations {
		if d == minutes {
			return true
		}
	}
	return false
}

// Lease is a time-bounded exclusive hold on a product. For a given
// product at most one lease may be ACTIVE at any instant.
type Lease struct {
	ID              string      `json:"id" bson:"_id"`
	ProductID       string      `json:"productId" bson:"productId"`
	HolderID        string      `json:"holderId" bson:"holderId"`
	DurationMinutes int         `json:"durationMinutes" bson:"durationMinutes"`
	Status          LeaseStatus `json:"status" bson:"status"`
	CreatedAt       time.Time   `json:"createdAt" bson:"createdAt"`
	ExpiresAt       time.Time   `json:"expiresAt" bson:"expiresAt"`
	UpdatedAt       time.Time   `json:"updatedAt" bson:"updatedAt"`
}

// NewLease creates an ACTIVE lease starting at now.
func NewLease(productID, holderID string, durationMinutes int, now time.Time) *Lease {
	now = now.UTC()
	return &Lease{
		ID:              uuid.NewString(),
		ProductID:       productID,
		HolderID:        holderID,
		DurationMinutes: durationMinutes,
		Status:          LeaseStatusActive,
		CreatedAt:       now,
		ExpiresAt:       now.Add(time.Duration(durationMinutes) * time.Minute),
		UpdatedAt:       now,
	}
}

// IsDue reports whether an ACTIVE lease has passed its expiry timestamp.
func (l *Lease) IsDue(now time.Time) bool {
	return l.Status == LeaseStatusActive && !now.Before(l.ExpiresAt)
}
