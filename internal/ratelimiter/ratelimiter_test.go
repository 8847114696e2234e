package ratelimiter

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, rates Rates) *RateLimiter {
	t.Helper()

	rl := New(rates, slog.New(slog.DiscardHandler))
	t.Cleanup(rl.Stop)

	return rl
}

func TestDoReturnsCallError(t *testing.T) {
	rl := newTestLimiter(t, Rates{})
	boom := errors.New("boom")

	err := rl.Do(context.Background(), 1, func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	err = rl.Do(context.Background(), 1, func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestDoSpacesCallsPerChat(t *testing.T) {
	rl := newTestLimiter(t, Rates{Private: 80 * time.Millisecond, Group: 200 * time.Millisecond})

	var (
		mu    sync.Mutex
		times []time.Time
	)
	record := func(context.Context) error {
		mu.Lock()
		times = append(times, time.Now())
		mu.Unlock()
		return nil
	}

	for range 3 {
		require.NoError(t, rl.Do(context.Background(), 42, record))
	}

	require.Len(t, times, 3)
	assert.GreaterOrEqual(t, times[1].Sub(times[0]), 70*time.Millisecond)
	assert.GreaterOrEqual(t, times[2].Sub(times[1]), 70*time.Millisecond)
}

func TestGroupChatsUseGroupRate(t *testing.T) {
	rl := newTestLimiter(t, Rates{Private: time.Millisecond, Group: 150 * time.Millisecond})

	require.NoError(t, rl.Do(context.Background(), -100, func(context.Context) error { return nil }))

	started := time.Now()
	require.NoError(t, rl.Do(context.Background(), -100, func(context.Context) error { return nil }))
	assert.GreaterOrEqual(t, time.Since(started), 120*time.Millisecond)

	started = time.Now()
	require.NoError(t, rl.Do(context.Background(), 7, func(context.Context) error { return nil }))
	assert.Less(t, time.Since(started), 100*time.Millisecond)
}

func TestDoHonorsCallerContext(t *testing.T) {
	rl := newTestLimiter(t, Rates{Private: time.Hour})

	require.NoError(t, rl.Do(context.Background(), 1, func(context.Context) error { return nil }))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	called := false
	err := rl.Do(ctx, 1, func(context.Context) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)
}

func TestDoAfterStop(t *testing.T) {
	rl := New(Rates{}, slog.New(slog.DiscardHandler))
	rl.Stop()

	// Either the queue rejects the call or the worker drains it.
	err := rl.Do(context.Background(), 1, func(context.Context) error { return nil })
	if err != nil {
		assert.ErrorIs(t, err, ErrStopped)
	}
}

func TestDefaultRates(t *testing.T) {
	assert.Equal(t, Rates{Private: time.Second, Group: 3 * time.Second}, DefaultRates())
}
