// Package models contains domain models for the TradePost Deal Service.
package models

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RetentionWindow is the fixed lifetime of a chat session. Once the
// window elapses the session stops accepting messages; history stays
// retrievable until a separate reaper removes it.
const RetentionWindow = 7 * 24 * time.Hour

// ChatSession is an ephemeral two-party conversation channel,
// optionally anchored to a product under negotiation.
type ChatSession struct {
	ID             string         `json:"id" bson:"_id"`
	ParticipantKey string         `json:"-" bson:"participantKey"`
	Participants   []string       `json:"participants" bson:"participants"`
	ProductID      string         `json:"productId,omitempty" bson:"productId,omitempty"`
	Title          string         `json:"title,omitempty" bson:"title,omitempty"`
	CreatedAt      time.Time      `json:"createdAt" bson:"createdAt"`
	ExpiresAt      time.Time      `json:"expiresAt" bson:"expiresAt"`
	Expired        bool           `json:"expired" bson:"expired"`
	LastMessage    string         `json:"lastMessage,omitempty" bson:"lastMessage,omitempty"`
	LastMessageAt  time.Time      `json:"lastMessageAt,omitempty" bson:"lastMessageAt,omitempty"`
	Unread         map[string]int `json:"unread" bson:"unread"`
	Seq            int64          `json:"-" bson:"seq"`
	UpdatedAt      time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// ParticipantKey canonicalizes the unordered participant pair plus the
// optional product context into the session uniqueness key. Swapping
// the two principals yields the same key.
func ParticipantKey(a, b, productID string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, ":") + ":" + productID
}

// NewChatSession creates a session between two distinct principals.
func NewChatSession(a, b, productID, title string, now time.Time) *ChatSession {
	now = now.UTC()
	return &ChatSession{
		ID:             uuid.NewString(),
		ParticipantKey: ParticipantKey(a, b, productID),
		Participants:   []string{a, b},
		ProductID:      productID,
		Title:          title,
		CreatedAt:      now,
		ExpiresAt:      now.Add(RetentionWindow),
		Unread:         map[string]int{a: 0, b: 0},
		UpdatedAt:      now,
	}
}

// HasParticipant reports whether userID is one of the two participants.
func (s *ChatSession) HasParticipant(userID string) bool {
	for _, p := range s.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Peer returns the other participant, or "" if userID is not a member.
func (s *ChatSession) Peer(userID string) string {
	for _, p := range s.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// IsPastRetention reports whether the retention window has elapsed.
// Read-only state is derived from time, never from sweep scheduling.
func (s *ChatSession) IsPastRetention(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// DaysRemaining returns whole days until retention expiry, never negative.
func (s *ChatSession) DaysRemaining(now time.Time) int {
	if !now.Before(s.ExpiresAt) {
		return 0
	}
	return int(s.ExpiresAt.Sub(now).Hours() / 24)
}

// UnreadFor returns the unread counter for a participant.
func (s *ChatSession) UnreadFor(userID string) int {
	if s.Unread == nil {
		return 0
	}
	return s.Unread[userID]
}
