package safety

import (
	"fmt"
	"sync"
	"time"

	boterrors "github.com/earthskyorg/bybit-trading-bot/internal/errors"
)

// CircuitBreakerState is Closed, Open or HalfOpen.
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig tunes when a breaker opens and how it probes
// recovery. Zero fields fall back to defaults.
type CircuitBreakerConfig struct {
	FailureThreshold uint32        // consecutive failures before opening
	SuccessThreshold uint32        // half-open successes before closing
	Timeout          time.Duration // open duration before a half-open probe
}

// CircuitBreaker cuts off a call class after repeated failures: Open
// rejects immediately, a half-open probe after Timeout decides whether
// to close again.
type CircuitBreaker struct {
	mu          sync.Mutex
	name        string
	config      CircuitBreakerConfig
	state       CircuitBreakerState
	failures    uint32
	successes   uint32
	lastFailure time.Time
	nextAttempt time.Time

	onStateChange func(from, to CircuitBreakerState)
}

// NewCircuitBreaker returns a closed breaker.
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 2
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	return &CircuitBreaker{name: name, config: config, state: StateClosed}
}

// SetStateChangeCallback registers a hook invoked on every transition.
// The hook runs on its own goroutine so it cannot deadlock the breaker.
func (cb *CircuitBreaker) SetStateChangeCallback(callback func(from, to CircuitBreakerState)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = callback
}

// Call runs fn under breaker protection. An open breaker rejects with a
// retryable connection error without invoking fn.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if !cb.allow() {
		return boterrors.NewConnectionError("safety", "circuit_breaker",
			fmt.Errorf("circuit %s is open", cb.name))
	}

	if err := fn(); err != nil {
		cb.recordFailure()
		return err
	}
	cb.recordSuccess()
	return nil
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if time.Now().After(cb.nextAttempt) {
			cb.transition(StateHalfOpen)
			cb.successes = 0
			return true
		}
		return false
	default:
		return false
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.transition(StateClosed)
			cb.successes = 0
		}
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()

	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.config.FailureThreshold {
			cb.open()
		}
	case StateHalfOpen:
		// A failed probe reopens immediately.
		cb.open()
	case StateOpen:
		cb.nextAttempt = time.Now().Add(cb.config.Timeout)
	}
}

// open transitions to Open and schedules the next probe. Caller holds mu.
func (cb *CircuitBreaker) open() {
	cb.transition(StateOpen)
	cb.nextAttempt = time.Now().Add(cb.config.Timeout)
	cb.successes = 0
}

// transition records a state change. Caller holds mu.
func (cb *CircuitBreaker) transition(to CircuitBreakerState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.onStateChange != nil {
		go cb.onStateChange(from, to)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the breaker closed, e.g. after operator intervention.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
	cb.failures = 0
	cb.successes = 0
}

// CircuitBreakerStats is a point-in-time view of one breaker.
type CircuitBreakerStats struct {
	Name        string
	State       CircuitBreakerState
	Failures    uint32
	LastFailure time.Time
	NextAttempt time.Time
}

// Stats reports the breaker's counters.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerStats{
		Name:        cb.name,
		State:       cb.state,
		Failures:    cb.failures,
		LastFailure: cb.lastFailure,
		NextAttempt: cb.nextAttempt,
	}
}

// CircuitBreakerManager keys breakers by call class.
type CircuitBreakerManager struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

func NewCircuitBreakerManager() *CircuitBreakerManager {
	return &CircuitBreakerManager{breakers: make(map[string]*CircuitBreaker)}
}

// GetOrCreate returns the breaker for name, creating it on first use.
func (m *CircuitBreakerManager) GetOrCreate(name string, config CircuitBreakerConfig) *CircuitBreaker {
	m.mu.RLock()
	if cb, ok := m.breakers[name]; ok {
		m.mu.RUnlock()
		return cb
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if cb, ok := m.breakers[name]; ok {
		return cb
	}
	cb := NewCircuitBreaker(name, config)
	m.breakers[name] = cb
	return cb
}

// Get returns the breaker for name if it exists.
func (m *CircuitBreakerManager) Get(name string) (*CircuitBreaker, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cb, ok := m.breakers[name]
	return cb, ok
}

// OpenCircuits lists the names of breakers currently open.
func (m *CircuitBreakerManager) OpenCircuits() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var open []string
	for name, cb := range m.breakers {
		if cb.State() == StateOpen {
			open = append(open, name)
		}
	}
	return open
}

// Stats reports every registered breaker.
func (m *CircuitBreakerManager) Stats() []CircuitBreakerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]CircuitBreakerStats, 0, len(m.breakers))
	for _, cb := range m.breakers {
		out = append(out, cb.Stats())
	}
	return out
}
