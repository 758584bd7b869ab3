// Package clock_test provides unit tests for the clock package.
package clock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradepost/deal-service/internal/pkg/clock"
)

func TestRealClock_NowIsUTC(t *testing.T) {
	c := clock.New()

	now := c.Now()

	assert.Equal(t, time.UTC, now.Location())
}

func TestFake_NowIsPinned(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := clock.NewFake(start)

	assert.Equal(t, start, c.Now())
	assert.Equal(t, start, c.Now())
}

func TestFake_AdvanceMovesNow(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := clock.NewFake(start)

	c.Advance(90 * time.Minute)

	assert.Equal(t, start.Add(90*time.Minute), c.Now())
}

func TestFake_AfterFiresOnAdvance(t *testing.T) {
	c := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	ch := c.After(10 * time.Second)

	// Not yet due
	c.Advance(5 * time.Second)
	select {
	case <-ch:
		t.Fatal("fired before the duration elapsed")
	default:
	}

	// Due now
	c.Advance(5 * time.Second)
	select {
	case at := <-ch:
		assert.Equal(t, c.Now(), at)
	default:
		t.Fatal("did not fire after the duration elapsed")
	}
}

func TestFake_AfterZeroFiresImmediately(t *testing.T) {
	c := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	ch := c.After(0)

	select {
	case at := <-ch:
		require.Equal(t, c.Now(), at)
	default:
		t.Fatal("zero-duration wait did not fire immediately")
	}
}
