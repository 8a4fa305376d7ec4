package bybit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlidingLimiter_AllowsUpToBudget(t *testing.T) {
	l := newSlidingLimiter(3, time.Minute)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	assert.Equal(t, 3, l.Used())
}

func TestSlidingLimiter_BlocksWhenExhausted(t *testing.T) {
	l := newSlidingLimiter(2, time.Hour)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }

	require.NoError(t, l.Wait(context.Background()))
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, l.Used())
}

func TestSlidingLimiter_WindowEviction(t *testing.T) {
	l := newSlidingLimiter(2, time.Minute)
	current := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }

	require.NoError(t, l.Wait(context.Background()))
	require.NoError(t, l.Wait(context.Background()))
	assert.Equal(t, 2, l.Used())

	// Once the first requests age out, the budget frees up again.
	current = current.Add(61 * time.Second)
	assert.Equal(t, 0, l.Used())
	require.NoError(t, l.Wait(context.Background()))
}

func TestSlidingLimiter_CanceledContext(t *testing.T) {
	l := newSlidingLimiter(1, time.Hour)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }

	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.Canceled)
}

func TestSlidingLimiter_DefaultsApplied(t *testing.T) {
	l := newSlidingLimiter(0, 0)
	assert.Equal(t, defaultWindowRequests, l.maxRequests)
	assert.Equal(t, defaultWindow, l.window)
}
