// Package sweeper_test provides unit tests for the expiry sweeper.
package sweeper_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tradepost/deal-service/internal/pkg/clock"
	"github.com/tradepost/deal-service/internal/services/sweeper"
)

// countingExpirer records each sweep call.
type countingExpirer struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
}

func (e *countingExpirer) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, now)
	return 1, e.err
}

func (e *countingExpirer) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

func TestSweeper_SweepHitsBothManagers(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	leases := &countingExpirer{}
	sessions := &countingExpirer{}
	s := sweeper.New(&sweeper.Config{Leases: leases, Sessions: sessions, Clock: clk})

	s.Sweep(context.Background())

	assert.Equal(t, 1, leases.count())
	assert.Equal(t, 1, sessions.count())
}

func TestSweeper_OneFailureDoesNotStopTheOther(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	leases := &countingExpirer{err: errors.New("store down")}
	sessions := &countingExpirer{}
	s := sweeper.New(&sweeper.Config{Leases: leases, Sessions: sessions, Clock: clk})

	s.Sweep(context.Background())

	assert.Equal(t, 1, leases.count())
	assert.Equal(t, 1, sessions.count())
}

func TestSweeper_RunFiresOnInterval(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	leases := &countingExpirer{}
	s := sweeper.New(&sweeper.Config{
		Leases:   leases,
		Clock:    clk,
		Interval: time.Minute,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	// Let Run arm its first wait before advancing.
	waitFor(t, func() bool { return clk.Waiters() > 0 })

	clk.Advance(time.Minute)
	waitFor(t, func() bool { return leases.count() == 1 })

	// Wait for the loop to re-arm before advancing again.
	waitFor(t, func() bool { return clk.Waiters() > 0 })
	clk.Advance(time.Minute)
	waitFor(t, func() bool { return leases.count() == 2 })

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on cancel")
	}
}

// waitFor polls a condition with a bounded wait.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
