// Package safety wraps the engine's exchange traffic in token-bucket
// rate limiters and circuit breakers so a misbehaving venue degrades
// into skipped sweeps instead of cascading failures.
package safety

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket: capacity tokens, refillRate tokens
// added per second. Safe for concurrent use.
type RateLimiter struct {
	mu         sync.Mutex
	name       string
	capacity   int
	tokens     int
	refillRate int
	lastRefill time.Time
}

// NewRateLimiter returns a full bucket.
func NewRateLimiter(name string, capacity, refillRate int) *RateLimiter {
	return &RateLimiter{
		name:       name,
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow consumes one token if available.
func (rl *RateLimiter) Allow() bool {
	return rl.AllowN(1)
}

// AllowN consumes n tokens if all are available, none otherwise.
func (rl *RateLimiter) AllowN(n int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if rl.tokens >= n {
		rl.tokens -= n
		return true
	}
	return false
}

// Wait blocks until one token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.WaitN(ctx, 1)
}

// WaitN blocks until n tokens are available or ctx is done.
func (rl *RateLimiter) WaitN(ctx context.Context, n int) error {
	for {
		if rl.AllowN(n) {
			return nil
		}

		timer := time.NewTimer(rl.waitTime(n))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// refill credits tokens for whole elapsed seconds. Caller holds mu.
func (rl *RateLimiter) refill() {
	elapsed := time.Since(rl.lastRefill)
	if elapsed < time.Second {
		return
	}

	credit := int(elapsed.Seconds()) * rl.refillRate
	if credit > 0 {
		rl.tokens = min(rl.tokens+credit, rl.capacity)
		rl.lastRefill = time.Now()
	}
}

// waitTime estimates how long until n tokens will be available. A small
// buffer covers timer precision.
func (rl *RateLimiter) waitTime(n int) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if rl.tokens >= n {
		return 0
	}
	missing := n - rl.tokens
	seconds := float64(missing) / float64(rl.refillRate)
	return time.Duration(seconds*1000+100) * time.Millisecond
}

// RateLimiterStats is a point-in-time view of one bucket.
type RateLimiterStats struct {
	Name       string
	Capacity   int
	Tokens     int
	RefillRate int
}

// Stats reports the bucket's current fill.
func (rl *RateLimiter) Stats() RateLimiterStats {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	return RateLimiterStats{
		Name:       rl.name,
		Capacity:   rl.capacity,
		Tokens:     rl.tokens,
		RefillRate: rl.refillRate,
	}
}

// RateLimiterManager keys limiters by call class (market data, trading,
// account) so each class gets its own budget.
type RateLimiterManager struct {
	mu       sync.RWMutex
	limiters map[string]*RateLimiter
}

func NewRateLimiterManager() *RateLimiterManager {
	return &RateLimiterManager{limiters: make(map[string]*RateLimiter)}
}

// GetOrCreate returns the limiter for name, creating it on first use.
func (m *RateLimiterManager) GetOrCreate(name string, capacity, refillRate int) *RateLimiter {
	m.mu.RLock()
	if rl, ok := m.limiters[name]; ok {
		m.mu.RUnlock()
		return rl
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if rl, ok := m.limiters[name]; ok {
		return rl
	}
	rl := NewRateLimiter(name, capacity, refillRate)
	m.limiters[name] = rl
	return rl
}

// Get returns the limiter for name if it exists.
func (m *RateLimiterManager) Get(name string) (*RateLimiter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rl, ok := m.limiters[name]
	return rl, ok
}

// Stats reports every registered bucket.
func (m *RateLimiterManager) Stats() []RateLimiterStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]RateLimiterStats, 0, len(m.limiters))
	for _, rl := range m.limiters {
		out = append(out, rl.Stats())
	}
	return out
}
