package hub

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tradepost/deal-service/internal/core/cache"
)

// DefaultPresenceTTL is how long an online flag survives without a
// refresh. A crashed client goes offline when its flag lapses; no
// cleanup pass is needed.
const DefaultPresenceTTL = 60 * time.Second

// lastSeenTTL bounds how long a last-seen timestamp is kept after the
// principal's final activity.
const lastSeenTTL = 30 * 24 * time.Hour

// presenceKeyPrefix namespaces presence flags in the shared cache.
const presenceKeyPrefix = "presence:"

// lastSeenKeyPrefix namespaces last-seen timestamps. Kept outside the
// presence namespace so Reset does not wipe them.
const lastSeenKeyPrefix = "last-seen:"

// Presence is the TTL-backed online registry. The hub records
// transitions; polling clients read it through the session listing.
type Presence struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewPresence creates a presence registry over the given cache.
func NewPresence(c cache.Cache, ttl time.Duration) *Presence {
	if ttl == 0 {
		ttl = DefaultPresenceTTL
	}
	return &Presence{cache: c, ttl: ttl}
}

// Record stores an online/offline transition and refreshes the
// principal's last-seen timestamp. Failures are logged and swallowed;
// presence is advisory, never authoritative.
func (p *Presence) Record(userID string, online bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	now := time.Now().UTC()

	var err error
	if online {
		err = p.cache.Set(ctx, presenceKeyPrefix+userID, []byte("1"), p.ttl)
	} else {
		_, err = p.cache.Delete(ctx, presenceKeyPrefix+userID)
	}
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("failed to record presence")
	}

	if err := p.cache.Set(ctx, lastSeenKeyPrefix+userID, []byte(now.Format(time.RFC3339Nano)), lastSeenTTL); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("failed to record last seen")
	}
}

// Refresh extends an online flag's TTL. Called on socket activity so a
// quiet but connected client stays online.
func (p *Presence) Refresh(userID string) {
	p.Record(userID, true)
}

// Online reports whether a principal currently holds an unexpired
// online flag. Implements the session manager's presence check.
func (p *Presence) Online(ctx context.Context, userID string) bool {
	ok, err := p.cache.Exists(ctx, presenceKeyPrefix+userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("failed to read presence")
		return false
	}
	return ok
}

// LastSeen returns the timestamp of the principal's most recent
// recorded activity. The boolean is false when nothing was ever
// recorded or the entry has lapsed.
func (p *Presence) LastSeen(ctx context.Context, userID string) (time.Time, bool) {
	raw, err := p.cache.Get(ctx, lastSeenKeyPrefix+userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("failed to read last seen")
		return time.Time{}, false
	}
	if raw == nil {
		return time.Time{}, false
	}
	at, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}

// Reset drops every online flag. Run at startup: the hub is
// in-process, so flags written by a previous run describe connections
// that no longer exist. Last-seen timestamps survive a reset.
func (p *Presence) Reset(ctx context.Context) {
	deleted, err := p.cache.DeletePattern(ctx, presenceKeyPrefix+"*")
	if err != nil {
		log.Warn().Err(err).Msg("failed to reset presence flags")
		return
	}
	if deleted > 0 {
		log.Info().Int64("count", deleted).Msg("cleared stale presence flags")
	}
}
