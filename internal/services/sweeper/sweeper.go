// Package sweeper runs the background expiry pass. It drives the same
// transition functions foreground requests use, so the sweep and the
// live event stream can never disagree about an entity's state.
package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tradepost/deal-service/internal/pkg/clock"
)

// DefaultInterval is the pause between sweep passes.
const DefaultInterval = 30 * time.Second

// Expirer is a manager that can transition its overdue entities.
type Expirer interface {
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

// Sweeper periodically expires overdue leases and sessions.
type Sweeper struct {
	leases   Expirer
	sessions Expirer
	clk      clock.Clock
	interval time.Duration
	logger   zerolog.Logger
}

// Config holds the configuration for the sweeper.
type Config struct {
	Leases   Expirer
	Sessions Expirer
	Clock    clock.Clock
	Interval time.Duration
}

// New creates a sweeper.
func New(cfg *Config) *Sweeper {
	interval := cfg.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	return &Sweeper{
		leases:   cfg.Leases,
		sessions: cfg.Sessions,
		clk:      cfg.Clock,
		interval: interval,
		logger:   log.With().Str("component", "sweeper").Logger(),
	}
}

// Run sweeps until the context is cancelled. Each pass applies one
// transition per overdue entity; a pass never holds any lock across
// entities, so foreground latency is bounded by a single transition.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("sweeper started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("sweeper stopped")
			return
		case <-s.clk.After(s.interval):
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one expiry pass over both managers.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.clk.Now()

	if s.leases != nil {
		expired, err := s.leases.ExpireDue(ctx, now)
		if err != nil {
			s.logger.Error().Err(err).Msg("lease sweep failed")
		} else if expired > 0 {
			s.logger.Info().Int("expired", expired).Msg("leases expired")
		}
	}

	if s.sessions != nil {
		expired, err := s.sessions.ExpireDue(ctx, now)
		if err != nil {
			s.logger.Error().Err(err).Msg("session sweep failed")
		} else if expired > 0 {
			s.logger.Info().Int("expired", expired).Msg("sessions passed retention")
		}
	}
}
