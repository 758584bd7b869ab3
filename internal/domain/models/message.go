// Package models contains domain models for the TradePost Deal Service.
package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is a single message in a session's log. Messages are
// totally ordered by Seq, which the store assigns atomically with the
// insert; the delivered/read flags only ever move false to true.
type ChatMessage struct {
	ID         string    `json:"id" bson:"_id"`
	SessionID  string    `json:"sessionId" bson:"sessionId"`
	Seq        int64     `json:"seq" bson:"seq"`
	SenderID   string    `json:"senderId" bson:"senderId"`
	ReceiverID string    `json:"receiverId" bson:"receiverId"`
	Body       string    `json:"body" bson:"body"`
	Delivered  bool      `json:"delivered" bson:"delivered"`
	Read       bool      `json:"read" bson:"read"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
}

// NewChatMessage creates an undelivered, unread message. Seq is zero
// until the store assigns it during the append transaction.
func NewChatMessage(sessionID, senderID, receiverID, body string, now time.Time) *ChatMessage {
	return &ChatMessage{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       body,
		CreatedAt:  now.UTC(),
	}
}
