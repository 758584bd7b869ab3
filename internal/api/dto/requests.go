// Package dto defines the request and response shapes of the public API.
package dto

// CreateLeaseRequest is the body for reserving a product.
type CreateLeaseRequest struct {
	ProductID       string `json:"productId" binding:"required"`
	DurationMinutes int    `json:"durationMinutes" binding:"required"`
}

// CreateSessionRequest is the body for opening (or re-opening) a
// conversation with a counterparty, optionally about a product.
type CreateSessionRequest struct {
	CounterpartyID string `json:"counterpartyId" binding:"required"`
	ProductID      string `json:"productId,omitempty"`
}

// PostMessageRequest is the body for the HTTP message fallback.
type PostMessageRequest struct {
	Body string `json:"body" binding:"required"`
}
