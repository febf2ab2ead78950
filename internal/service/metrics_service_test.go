package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nexlearn-dashboard/internal/models"
)

func TestMetricsServiceSessionPhases(t *testing.T) {
	m := NewMetricsService()

	m.ObserveSessionPhase(models.OpLogin, models.PhasePending, 0)
	m.ObserveSessionPhase(models.OpLogin, models.PhaseRejected, 20*time.Millisecond)
	m.ObserveSessionPhase(models.OpLogin, models.PhasePending, 0)
	m.ObserveSessionPhase(models.OpLogin, models.PhaseFulfilled, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessionPhases.WithLabelValues("login", "pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionPhases.WithLabelValues("login", "rejected")))
	assert.EqualValues(t, 1, m.Snapshot().SessionFailures)
}

func TestMetricsServiceStorageAndSessions(t *testing.T) {
	m := NewMetricsService()

	m.ObserveStorage("redis", "get", nil, time.Millisecond)
	m.ObserveStorage("redis", "set", errors.New("down"), time.Millisecond)
	m.SetActiveSessions(3)
	m.RecordDroppedEvent()
	m.RecordGuardDecision("/dashboard/admin", "redirect")
	m.ObserveHTTPRequest(http.MethodGet, "/health", http.StatusOK, 2*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.storageErrors.WithLabelValues("redis", "set")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.activeSessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.guardDecisions.WithLabelValues("/dashboard/admin", "redirect")))

	snap := m.Snapshot()
	assert.EqualValues(t, 1, snap.RequestsTotal)
	assert.EqualValues(t, 3, snap.ActiveSessions)
	assert.EqualValues(t, 1, snap.StorageErrors)
	assert.EqualValues(t, 1, snap.DroppedEvents)
	assert.InDelta(t, 2.0, snap.AverageRequestDurationMs, 0.001)
}

func TestMetricsServiceHandlerExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.ObserveSessionPhase(models.OpLogout, models.PhaseFulfilled, 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "session_operation_phases_total")
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveSessionPhase(models.OpLogin, models.PhasePending, 0)
	m.ObserveStorage("memory", "get", nil, 0)
	m.SetActiveSessions(1)
	m.RecordDroppedEvent()
	m.RecordGuardDecision("/", "render")
	m.ObserveHTTPRequest(http.MethodGet, "/", 200, 0)
	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
