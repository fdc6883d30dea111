package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersCollectors(t *testing.T) {
	// Given
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	// When
	m.DegradedSectionsTotal.WithLabelValues("countries").Inc()
	m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/overview", "200").Add(2)

	// Then
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DegradedSectionsTotal.WithLabelValues("countries")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/overview", "200")))
	assert.Panics(t, func() { NewMetrics(registry) }, "collectors are registered once per registry")
}

func TestMetrics_Handler_ExposesRegistry(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.RemoteErrorsTotal.WithLabelValues("crux", "timeout").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `analytics_bridge_remote_errors_total{reason="timeout",service="crux"} 1`)
}
