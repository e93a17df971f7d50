package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the console's prometheus collectors on a private registry.
type Metrics struct {
	registry        *prometheus.Registry
	sessionEvents   *prometheus.CounterVec
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorCount      *prometheus.CounterVec
}

// NewMetrics initializes and registers collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pod_console_session_events_total",
			Help: "Session lifecycle events by type and reason.",
		}, []string{"type", "reason"}),
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pod_console_http_requests_total",
			Help: "Console HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pod_console_http_request_duration_seconds",
			Help:    "Console HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errorCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pod_console_http_errors_total",
			Help: "Console HTTP error responses by route and error code.",
		}, []string{"path", "method", "code"}),
	}
	m.registry.MustRegister(m.sessionEvents, m.requestCount, m.requestDuration, m.errorCount)
	return m
}

// RecordSessionEvent increments the session event counter.
func (m *Metrics) RecordSessionEvent(eventType, reason string) {
	if m == nil {
		return
	}
	m.sessionEvents.WithLabelValues(eventType, reason).Inc()
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorCount.WithLabelValues(path, method, code).Inc()
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SessionEvents exposes the counter for tests and dashboards.
func (m *Metrics) SessionEvents() *prometheus.CounterVec {
	return m.sessionEvents
}
