package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, m *Metrics, labels ...string) float64 {
	t.Helper()
	metric := &dto.Metric{}
	require.NoError(t, m.SessionEvents().WithLabelValues(labels...).Write(metric))
	return metric.GetCounter().GetValue()
}

func TestRecordSessionEvent(t *testing.T) {
	m := NewMetrics()
	m.RecordSessionEvent("session_expired", "token_expired")
	m.RecordSessionEvent("session_expired", "token_expired")
	m.RecordSessionEvent("logged_in", "")

	assert.Equal(t, 2.0, counterValue(t, m, "session_expired", "token_expired"))
	assert.Equal(t, 1.0, counterValue(t, m, "logged_in", ""))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordSessionEvent("x", "y")
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("/", "GET", "X")
}

func TestHandlerExposesCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/dashboard", "GET", 302, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `pod_console_http_requests_total{method="GET",path="/dashboard",status="302"} 1`)
}
