package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// maxTrackedErrors bounds the error ring exposed by the health endpoint.
const maxTrackedErrors = 10

// sweepStaleAfter marks the bot degraded when no loop sweep has completed
// within this window.
const sweepStaleAfter = 10 * time.Minute

var startTime = time.Now()

// HealthChecker aggregates liveness signals from the engine loops and
// serves them as a JSON health endpoint.
type HealthChecker struct {
	mu          sync.RWMutex
	lastSweep   time.Time
	lastPrice   float64
	isConnected bool
	errors      []string
}

type HealthStatus struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	LastSweep   time.Time `json:"last_sweep"`
	LastPrice   float64   `json:"last_price"`
	IsConnected bool      `json:"is_connected"`
	Uptime      string    `json:"uptime"`
	Errors      []string  `json:"errors,omitempty"`
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		errors: make([]string, 0, maxTrackedErrors),
	}
}

// SetConnected flips the exchange connectivity flag.
func (h *HealthChecker) SetConnected(connected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.isConnected = connected
}

// RecordSweep marks a completed loop sweep.
func (h *HealthChecker) RecordSweep() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastSweep = time.Now()
}

// UpdatePrice stores the latest observed price.
func (h *HealthChecker) UpdatePrice(price float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastPrice = price
}

// AddError appends to the bounded error ring, evicting the oldest entry.
func (h *HealthChecker) AddError(message string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.errors = append(h.errors, message)
	if len(h.errors) > maxTrackedErrors {
		h.errors = h.errors[len(h.errors)-maxTrackedErrors:]
	}
}

// ClearErrors empties the error ring, e.g. after recovery.
func (h *HealthChecker) ClearErrors() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = h.errors[:0]
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	code := http.StatusOK
	if !h.isConnected || h.lastSweep.IsZero() || time.Since(h.lastSweep) > sweepStaleAfter {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	if len(h.errors) > 0 {
		status = "unhealthy"
		code = http.StatusInternalServerError
	}

	health := HealthStatus{
		Status:      status,
		Timestamp:   time.Now(),
		LastSweep:   h.lastSweep,
		LastPrice:   h.lastPrice,
		IsConnected: h.isConnected,
		Uptime:      time.Since(startTime).String(),
		Errors:      h.errors,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(health)
}
