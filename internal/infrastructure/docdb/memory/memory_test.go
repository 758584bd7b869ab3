// Package memory_test provides unit tests for the in-memory store.
package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradepost/deal-service/internal/core/docdb"
	"github.com/tradepost/deal-service/internal/domain/models"
	"github.com/tradepost/deal-service/internal/infrastructure/docdb/memory"
)

func TestLeaseStore_SecondActiveInsertFails(t *testing.T) {
	store := memory.NewClient().Leases()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	first := models.NewLease("product-1", "buyer-1", 60, now)
	require.NoError(t, store.Insert(ctx, first))

	err := store.Insert(ctx, models.NewLease("product-1", "buyer-2", 30, now))

	var activeErr *docdb.ActiveLeaseError
	require.True(t, errors.As(err, &activeErr))
	assert.Equal(t, first.ID, activeErr.ExistingID)

	// A different product is unaffected
	assert.NoError(t, store.Insert(ctx, models.NewLease("product-2", "buyer-2", 30, now)))
}

func TestLeaseStore_ConcurrentInsertSingleActive(t *testing.T) {
	store := memory.NewClient().Leases()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	const attempts = 16
	results := make(chan error, attempts)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results <- store.Insert(ctx, models.NewLease("product-1", "buyer-1", 60, now))
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	winner, err := store.ActiveForProduct(ctx, "product-1")
	require.NoError(t, err)
	require.NotNil(t, winner)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		var activeErr *docdb.ActiveLeaseError
		require.True(t, errors.As(err, &activeErr))
		assert.Equal(t, winner.ID, activeErr.ExistingID)
	}
	assert.Equal(t, 1, successes)
}

func TestLeaseStore_InsertAfterTerminalSucceeds(t *testing.T) {
	store := memory.NewClient().Leases()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	first := models.NewLease("product-1", "buyer-1", 60, now)
	require.NoError(t, store.Insert(ctx, first))

	_, err := store.TransitionStatus(ctx, first.ID, models.LeaseStatusActive, models.LeaseStatusCancelled, now)
	require.NoError(t, err)

	assert.NoError(t, store.Insert(ctx, models.NewLease("product-1", "buyer-2", 30, now)))
}

func TestLeaseStore_TransitionStatusIsCompareAndSet(t *testing.T) {
	store := memory.NewClient().Leases()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	lease := models.NewLease("product-1", "buyer-1", 60, now)
	require.NoError(t, store.Insert(ctx, lease))

	updated, err := store.TransitionStatus(ctx, lease.ID, models.LeaseStatusActive, models.LeaseStatusExpired, now)
	require.NoError(t, err)
	assert.Equal(t, models.LeaseStatusExpired, updated.Status)

	// The losing writer observes no transition
	_, err = store.TransitionStatus(ctx, lease.ID, models.LeaseStatusActive, models.LeaseStatusCancelled, now)
	assert.ErrorIs(t, err, docdb.ErrNoTransition)

	_, err = store.TransitionStatus(ctx, "no-such-lease", models.LeaseStatusActive, models.LeaseStatusExpired, now)
	assert.ErrorIs(t, err, docdb.ErrNoTransition)
}

func TestSessionStore_DuplicateKeyOnSecondInsert(t *testing.T) {
	store := memory.NewClient().Sessions()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Insert(ctx, models.NewChatSession("alice", "bob", "product-1", "", now)))

	// The swapped pair canonicalizes to the same key
	err := store.Insert(ctx, models.NewChatSession("bob", "alice", "product-1", "", now))
	assert.ErrorIs(t, err, docdb.ErrDuplicateKey)
}

func TestSessionStore_AppendMessageAssignsSeq(t *testing.T) {
	store := memory.NewClient().Sessions()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	session := models.NewChatSession("alice", "bob", "", "", now)
	require.NoError(t, store.Insert(ctx, session))

	first := models.NewChatMessage(session.ID, "alice", "bob", "one", now)
	updated, err := store.AppendMessage(ctx, session.ID, first)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, 1, updated.UnreadFor("bob"))
	assert.Equal(t, "one", updated.LastMessage)

	second := models.NewChatMessage(session.ID, "bob", "alice", "two", now)
	updated, err = store.AppendMessage(ctx, session.ID, second)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Seq)
	assert.Equal(t, 1, updated.UnreadFor("alice"))

	_, err = store.AppendMessage(ctx, "no-such-session", first)
	assert.ErrorIs(t, err, docdb.ErrNotFound)
}

func TestSessionStore_MarkReadZeroesCounterAndFlagsMessages(t *testing.T) {
	store := memory.NewClient().Sessions()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	session := models.NewChatSession("alice", "bob", "", "", now)
	require.NoError(t, store.Insert(ctx, session))

	_, err := store.AppendMessage(ctx, session.ID, models.NewChatMessage(session.ID, "alice", "bob", "hi", now))
	require.NoError(t, err)

	require.NoError(t, store.MarkRead(ctx, session.ID, "bob", now))

	current, err := store.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, current.UnreadFor("bob"))

	messages, err := store.Messages(ctx, session.ID, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.True(t, messages[0].Read)
}

func TestSessionStore_MarkExpiredIsOneShot(t *testing.T) {
	store := memory.NewClient().Sessions()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	session := models.NewChatSession("alice", "bob", "", "", now)
	require.NoError(t, store.Insert(ctx, session))

	due, err := store.ListDueExpiry(ctx, session.ExpiresAt.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, due, 1)

	committed, err := store.MarkExpired(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, committed)

	// Second attempt and unknown ids commit nothing
	committed, err = store.MarkExpired(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, committed)

	due, err = store.ListDueExpiry(ctx, session.ExpiresAt.Add(time.Second))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestSessionStore_ReturnsCopies(t *testing.T) {
	store := memory.NewClient().Sessions()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	session := models.NewChatSession("alice", "bob", "", "", now)
	require.NoError(t, store.Insert(ctx, session))

	got, err := store.Get(ctx, session.ID)
	require.NoError(t, err)

	// Mutating the returned copy must not leak into the store.
	got.Unread["bob"] = 99
	got.Participants[0] = "mallory"

	fresh, err := store.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, fresh.UnreadFor("bob"))
	assert.Equal(t, "alice", fresh.Participants[0])
}

func TestLeaseStore_ListDueBoundary(t *testing.T) {
	store := memory.NewClient().Leases()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	lease := models.NewLease("product-1", "buyer-1", 30, now)
	require.NoError(t, store.Insert(ctx, lease))

	due, err := store.ListDue(ctx, lease.ExpiresAt.Add(-time.Second))
	require.NoError(t, err)
	assert.Empty(t, due)

	// Due exactly at the expiry instant
	due, err = store.ListDue(ctx, lease.ExpiresAt)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}
