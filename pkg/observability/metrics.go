package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Remote API metrics
	RemoteRequestsTotal   *prometheus.CounterVec
	RemoteRequestDuration *prometheus.HistogramVec
	RemoteErrorsTotal     *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Facade metrics
	DegradedSectionsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		RemoteRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_bridge_remote_requests_total",
				Help: "Total number of requests issued to remote analytics APIs",
			},
			[]string{"service", "method", "status"},
		),
		RemoteRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analytics_bridge_remote_request_duration_seconds",
				Help:    "Remote analytics API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service"},
		),
		RemoteErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_bridge_remote_errors_total",
				Help: "Total number of remote requests that failed before a response was received",
			},
			[]string{"service", "reason"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_bridge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analytics_bridge_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		DegradedSectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_bridge_degraded_sections_total",
				Help: "Total number of overview sections replaced by null after a failure",
			},
			[]string{"section"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.RemoteRequestsTotal,
		m.RemoteRequestDuration,
		m.RemoteErrorsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DegradedSectionsTotal,
	)

	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
