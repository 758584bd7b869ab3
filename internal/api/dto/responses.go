package dto

import (
	"github.com/tradepost/deal-service/internal/domain/models"
	"github.com/tradepost/deal-service/internal/services/chat"
)

// LeaseResponse wraps a single lease.
type LeaseResponse struct {
	Lease *models.Lease `json:"lease"`
}

// LeaseListResponse wraps a holder's leases.
type LeaseListResponse struct {
	Leases []*models.Lease `json:"leases"`
	Total  int             `json:"total"`
}

// SessionResponse wraps a session plus whether this request created it.
type SessionResponse struct {
	Session *models.ChatSession `json:"session"`
	Created bool                `json:"created"`
}

// SessionListResponse wraps a caller's annotated sessions.
type SessionListResponse struct {
	Sessions []*chat.SessionSummary `json:"sessions"`
	Total    int                    `json:"total"`
}

// MessageResponse wraps a single accepted message.
type MessageResponse struct {
	Message *models.ChatMessage `json:"message"`
}

// MessageListResponse wraps a session's ordered log.
type MessageListResponse struct {
	Messages []*models.ChatMessage `json:"messages"`
	Total    int                   `json:"total"`
}

// ConfirmationResponse acknowledges a mutation with no payload.
type ConfirmationResponse struct {
	Status string `json:"status"`
}
