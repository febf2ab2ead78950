package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nexlearn-dashboard/internal/service"
)

func serveMetrics(h *MetricsHandler, path string, fn gin.HandlerFunc) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET(path, fn)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthIncludesSnapshot(t *testing.T) {
	h := NewMetricsHandler(service.NewMetricsService(), nil)
	rec := serveMetrics(h, "/health", h.Health)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.JSONEq(t, `"ok"`, string(body["status"]))
	assert.Contains(t, body, "metrics")
}

func TestReadyReportsFailingCheck(t *testing.T) {
	h := NewMetricsHandler(nil, map[string]ReadinessCheck{
		"redis":    func(context.Context) error { return errors.New("connection refused") },
		"postgres": func(context.Context) error { return nil },
	})
	rec := serveMetrics(h, "/ready", h.Ready)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unavailable", body.Status)
	assert.Equal(t, "connection refused", body.Checks["redis"])
	assert.Equal(t, "ok", body.Checks["postgres"])
}

func TestReadyWithoutChecks(t *testing.T) {
	h := NewMetricsHandler(nil, nil)
	rec := serveMetrics(h, "/ready", h.Ready)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPrometheusWithoutMetrics(t *testing.T) {
	h := NewMetricsHandler(nil, nil)
	rec := serveMetrics(h, "/metrics", h.Prometheus)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
