// Package models contains domain models for the TradePost Deal Service.
package models

import "time"

// EventType identifies a live-channel event.
type EventType string

const (
	// EventLeaseCreated is emitted when a lease is granted.
	EventLeaseCreated EventType = "lease-created"
	// EventLeaseCancelled is emitted when a holder releases a lease.
	EventLeaseCancelled EventType = "lease-cancelled"
	// EventLeaseExpired is emitted when a lease runs out.
	EventLeaseExpired EventType = "lease-expired"
	// EventMessageReceived carries a newly accepted chat message.
	EventMessageReceived EventType = "message-received"
	// EventTypingStart signals a participant started typing.
	EventTypingStart EventType = "typing-start"
	// EventTypingStop signals a participant stopped typing.
	EventTypingStop EventType = "typing-stop"
	// EventPresenceChanged signals a participant going online or offline.
	EventPresenceChanged EventType = "presence-changed"
	// EventReadReceipt signals a participant read the session.
	EventReadReceipt EventType = "read-receipt"
	// EventSessionExpired signals a session passed its retention window.
	EventSessionExpired EventType = "session-expired"
)

// Event is the envelope fanned out to live subscribers. Every state
// transition that writes the store emits exactly one event through the
// same code path, so polling and live clients converge on one truth.
type Event struct {
	Type      EventType    `json:"type"`
	SessionID string       `json:"sessionId,omitempty"`
	ProductID string       `json:"productId,omitempty"`
	UserID    string       `json:"userId,omitempty"`
	Online    *bool        `json:"online,omitempty"`
	Lease     *Lease       `json:"lease,omitempty"`
	Message   *ChatMessage `json:"message,omitempty"`
	At        time.Time    `json:"at"`
}
