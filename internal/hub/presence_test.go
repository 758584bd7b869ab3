// Package hub_test provides unit tests for the live delivery hub.
package hub_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradepost/deal-service/internal/hub"
	rediscache "github.com/tradepost/deal-service/internal/infrastructure/cache/redis"
)

func setupPresence(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *hub.Presence) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := rediscache.NewCache(rediscache.Config{
		Host: mr.Host(),
		Port: mr.Port(),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return mr, hub.NewPresence(client, ttl)
}

func TestPresence_RecordAndOnline(t *testing.T) {
	_, presence := setupPresence(t, time.Minute)
	ctx := context.Background()

	assert.False(t, presence.Online(ctx, "alice"))

	presence.Record("alice", true)
	assert.True(t, presence.Online(ctx, "alice"))

	presence.Record("alice", false)
	assert.False(t, presence.Online(ctx, "alice"))
}

func TestPresence_FlagLapsesWithoutRefresh(t *testing.T) {
	mr, presence := setupPresence(t, 30*time.Second)
	ctx := context.Background()

	presence.Record("alice", true)
	require.True(t, presence.Online(ctx, "alice"))

	// A crashed client never deletes its flag; the TTL handles it.
	mr.FastForward(31 * time.Second)
	assert.False(t, presence.Online(ctx, "alice"))
}

func TestPresence_LastSeenSurvivesGoingOffline(t *testing.T) {
	_, presence := setupPresence(t, time.Minute)
	ctx := context.Background()

	_, ok := presence.LastSeen(ctx, "alice")
	assert.False(t, ok)

	before := time.Now().UTC()
	presence.Record("alice", true)
	presence.Record("alice", false)

	at, ok := presence.LastSeen(ctx, "alice")
	require.True(t, ok)
	assert.False(t, at.Before(before))
	assert.False(t, presence.Online(ctx, "alice"))
}

func TestPresence_ResetClearsFlagsKeepsLastSeen(t *testing.T) {
	_, presence := setupPresence(t, time.Minute)
	ctx := context.Background()

	presence.Record("alice", true)
	presence.Record("bob", true)
	require.True(t, presence.Online(ctx, "alice"))

	presence.Reset(ctx)

	assert.False(t, presence.Online(ctx, "alice"))
	assert.False(t, presence.Online(ctx, "bob"))

	_, ok := presence.LastSeen(ctx, "alice")
	assert.True(t, ok)
}

func TestPresence_RefreshExtendsTTL(t *testing.T) {
	mr, presence := setupPresence(t, 30*time.Second)
	ctx := context.Background()

	presence.Record("alice", true)

	mr.FastForward(20 * time.Second)
	presence.Refresh("alice")

	mr.FastForward(20 * time.Second)
	assert.True(t, presence.Online(ctx, "alice"))
}
