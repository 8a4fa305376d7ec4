package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getHealth(t *testing.T, h *HealthChecker) (int, HealthStatus) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var status HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	return rec.Code, status
}

func TestHealthChecker_DegradedUntilConnectedAndSwept(t *testing.T) {
	h := NewHealthChecker()

	code, status := getHealth(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", status.Status)

	h.SetConnected(true)
	h.RecordSweep()
	h.UpdatePrice(50000)

	code, status = getHealth(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", status.Status)
	assert.InDelta(t, 50000.0, status.LastPrice, 1e-9)
}

func TestHealthChecker_UnhealthyOnErrors(t *testing.T) {
	h := NewHealthChecker()
	h.SetConnected(true)
	h.RecordSweep()
	h.AddError("kline fetch failed")

	code, status := getHealth(t, h)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "unhealthy", status.Status)
	require.Len(t, status.Errors, 1)

	h.ClearErrors()
	code, _ = getHealth(t, h)
	assert.Equal(t, http.StatusOK, code)
}

func TestHealthChecker_ErrorRingEviction(t *testing.T) {
	h := NewHealthChecker()
	h.SetConnected(true)
	h.RecordSweep()

	for i := 0; i < maxTrackedErrors+5; i++ {
		h.AddError("error")
	}

	_, status := getHealth(t, h)
	assert.Len(t, status.Errors, maxTrackedErrors)
}
