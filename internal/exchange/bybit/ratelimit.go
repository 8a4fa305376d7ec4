package bybit

import (
	"context"
	"sync"
	"time"
)

const (
	defaultWindowRequests = 120
	defaultWindow         = time.Minute
)

// slidingLimiter admits at most maxRequests calls per rolling window.
// Wait blocks until a slot frees up or the context ends, so a burst of
// sweeps degrades into latency instead of venue rate-limit errors.
type slidingLimiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	sent        []time.Time
	now         func() time.Time // swapped out in tests
}

func newSlidingLimiter(maxRequests int, window time.Duration) *slidingLimiter {
	if maxRequests <= 0 {
		maxRequests = defaultWindowRequests
	}
	if window <= 0 {
		window = defaultWindow
	}
	return &slidingLimiter{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

// Wait claims a request slot, blocking until one is available.
func (l *slidingLimiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()
		l.evict(now)
		if len(l.sent) < l.maxRequests {
			l.sent = append(l.sent, now)
			l.mu.Unlock()
			return nil
		}
		sleep := l.sent[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		if sleep < time.Millisecond {
			sleep = time.Millisecond
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// evict drops timestamps that have left the window. Caller holds mu.
func (l *slidingLimiter) evict(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.sent) && !l.sent[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.sent = append(l.sent[:0], l.sent[i:]...)
	}
}

// Used returns how many requests count against the current window.
func (l *slidingLimiter) Used() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict(l.now())
	return len(l.sent)
}
