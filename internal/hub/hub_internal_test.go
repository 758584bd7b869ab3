package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tradepost/deal-service/internal/domain/models"
)

type nullSubscriber struct{}

func (nullSubscriber) Send(*models.Event) bool { return true }

func TestHub_LeavePrunesProductRooms(t *testing.T) {
	h := New(nil)

	h.Join("session-1", "alice", "product-1", nullSubscriber{})
	h.Join("session-1", "bob", "product-1", nullSubscriber{})
	h.Join("session-2", "carol", "product-1", nullSubscriber{})

	h.Leave("session-1", "alice")
	h.Leave("session-1", "bob")

	// The emptied room is gone from the product's set; the other room
	// negotiating the same product stays.
	h.mu.RLock()
	assert.NotContains(t, h.productRooms["product-1"], "session-1")
	assert.Contains(t, h.productRooms["product-1"], "session-2")
	assert.NotContains(t, h.sessionProducts, "session-1")
	h.mu.RUnlock()

	h.Leave("session-2", "carol")

	h.mu.RLock()
	assert.Empty(t, h.productRooms)
	assert.Empty(t, h.sessionProducts)
	h.mu.RUnlock()
}
