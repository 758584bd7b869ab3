// Package models_test provides unit tests for the domain models.
package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tradepost/deal-service/internal/domain/models"
)

func TestParticipantKey_OrderIndependent(t *testing.T) {
	assert.Equal(t,
		models.ParticipantKey("alice", "bob", "product-1"),
		models.ParticipantKey("bob", "alice", "product-1"))
}

func TestParticipantKey_ProductScoped(t *testing.T) {
	assert.NotEqual(t,
		models.ParticipantKey("alice", "bob", "product-1"),
		models.ParticipantKey("alice", "bob", "product-2"))

	// No product is its own scope
	assert.NotEqual(t,
		models.ParticipantKey("alice", "bob", ""),
		models.ParticipantKey("alice", "bob", "product-1"))
}

func TestNewChatSession_RetentionWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	session := models.NewChatSession("alice", "bob", "product-1", "Vintage Bike", now)

	assert.Equal(t, now.Add(models.RetentionWindow), session.ExpiresAt)
	assert.False(t, session.Expired)
	assert.Equal(t, []string{"alice", "bob"}, session.Participants)
	assert.Equal(t, 0, session.UnreadFor("alice"))
	assert.Equal(t, 0, session.UnreadFor("bob"))
}

func TestChatSession_HasParticipantAndPeer(t *testing.T) {
	session := models.NewChatSession("alice", "bob", "", "", time.Now())

	assert.True(t, session.HasParticipant("alice"))
	assert.True(t, session.HasParticipant("bob"))
	assert.False(t, session.HasParticipant("mallory"))

	assert.Equal(t, "bob", session.Peer("alice"))
	assert.Equal(t, "alice", session.Peer("bob"))
}

func TestChatSession_IsPastRetention(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	session := models.NewChatSession("alice", "bob", "", "", now)

	// Within the window, including the exact boundary
	assert.False(t, session.IsPastRetention(now))
	assert.False(t, session.IsPastRetention(session.ExpiresAt))

	// Strictly after
	assert.True(t, session.IsPastRetention(session.ExpiresAt.Add(time.Second)))
}

func TestChatSession_DaysRemaining(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	session := models.NewChatSession("alice", "bob", "", "", now)

	assert.Equal(t, 7, session.DaysRemaining(now))
	assert.Equal(t, 6, session.DaysRemaining(now.Add(24*time.Hour)))
	assert.Equal(t, 0, session.DaysRemaining(now.Add(7*24*time.Hour)))
	assert.Equal(t, 0, session.DaysRemaining(now.Add(30*24*time.Hour)))
}

func TestChatSession_UnreadFor_NilMap(t *testing.T) {
	session := &models.ChatSession{}

	assert.Equal(t, 0, session.UnreadFor("alice"))
}
