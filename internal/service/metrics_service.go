package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/nexlearn-dashboard/internal/models"
)

// MetricsSnapshot is a lightweight summary served by the health endpoint.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	ActiveSessions           int64     `json:"activeSessions"`
	SessionFailures          uint64    `json:"sessionFailures"`
	StorageErrors            uint64    `json:"storageErrors"`
	DroppedEvents            uint64    `json:"droppedEvents"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}

// MetricsService encapsulates Prometheus instrumentation for the dashboard gateway.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	sessionPhases   *prometheus.CounterVec
	sessionDuration *prometheus.HistogramVec
	activeSessions  prometheus.Gauge
	storageDuration *prometheus.HistogramVec
	storageErrors   *prometheus.CounterVec
	droppedEvents   prometheus.Counter
	guardDecisions  *prometheus.CounterVec

	requestCount         uint64
	requestDurationTotal uint64
	sessionFailureCount  uint64
	storageErrorCount    uint64
	droppedEventCount    uint64
	activeSessionCount   int64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	sessionPhases := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_operation_phases_total",
		Help: "Session store operation phases by operation and phase",
	}, []string{"operation", "phase"})

	sessionDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "session_operation_duration_seconds",
		Help:    "Time from pending to settlement of session store operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "phase"})

	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "session_stores_active",
		Help: "Visitor session stores currently held in memory",
	})

	storageDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "session_storage_duration_seconds",
		Help:    "Latency of session storage calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"driver", "op"})

	storageErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_storage_errors_total",
		Help: "Failed session storage calls",
	}, []string{"driver", "op"})

	droppedEvents := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "session_events_dropped_total",
		Help: "Session events dropped because a stream subscriber was too slow",
	})

	guardDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "route_guard_decisions_total",
		Help: "Route guard outcomes by route and decision",
	}, []string{"route", "decision"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, sessionPhases, sessionDuration, activeSessions,
		storageDuration, storageErrors, droppedEvents, guardDecisions, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		sessionPhases:   sessionPhases,
		sessionDuration: sessionDuration,
		activeSessions:  activeSessions,
		storageDuration: storageDuration,
		storageErrors:   storageErrors,
		droppedEvents:   droppedEvents,
		guardDecisions:  guardDecisions,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveSessionPhase counts a store phase. Settled phases also record how
// long the operation was in flight.
func (m *MetricsService) ObserveSessionPhase(op models.Operation, phase models.Phase, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.sessionPhases.WithLabelValues(string(op), string(phase)).Inc()
	if phase == models.PhasePending {
		return
	}
	m.sessionDuration.WithLabelValues(string(op), string(phase)).Observe(elapsed.Seconds())
	if phase == models.PhaseRejected {
		atomic.AddUint64(&m.sessionFailureCount, 1)
	}
}

// SetActiveSessions reports the registry size.
func (m *MetricsService) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
	atomic.StoreInt64(&m.activeSessionCount, int64(n))
}

// ObserveStorage records a session storage call.
func (m *MetricsService) ObserveStorage(driver, op string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.storageDuration.WithLabelValues(driver, op).Observe(duration.Seconds())
	if err != nil {
		m.storageErrors.WithLabelValues(driver, op).Inc()
		atomic.AddUint64(&m.storageErrorCount, 1)
	}
}

// RecordDroppedEvent counts an event a slow stream subscriber missed.
func (m *MetricsService) RecordDroppedEvent() {
	if m == nil {
		return
	}
	m.droppedEvents.Inc()
	atomic.AddUint64(&m.droppedEventCount, 1)
}

// RecordGuardDecision counts a route guard outcome.
func (m *MetricsService) RecordGuardDecision(route, decision string) {
	if m == nil {
		return
	}
	m.guardDecisions.WithLabelValues(route, decision).Inc()
}

// Snapshot returns aggregated metrics.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		ActiveSessions:           atomic.LoadInt64(&m.activeSessionCount),
		SessionFailures:          atomic.LoadUint64(&m.sessionFailureCount),
		StorageErrors:            atomic.LoadUint64(&m.storageErrorCount),
		DroppedEvents:            atomic.LoadUint64(&m.droppedEventCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
