package output

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/pagewarden/internal/domain"
	"github.com/xoelrdgz/pagewarden/internal/ports"
)

var (
	_ ports.MetricsCollector   = (*PrometheusMetrics)(nil)
	_ ports.ProcessingObserver = (*PrometheusMetrics)(nil)
)

func TestPrometheusMetrics_Counters(t *testing.T) {
	m := NewPrometheusMetrics("", nil)

	m.IncrementSignals(domain.SignalRequest)
	m.IncrementSignals(domain.SignalRequest)
	m.IncrementSignals(domain.SignalDOM)
	m.IncrementSignalsByResult("detected")
	m.IncrementDetections(domain.CategoryXSS, domain.SeverityCritical)
	m.IncrementAlerts(domain.NoReceiver.String())
	m.SetActiveWorkers(4)
	m.SetStoredEvents(12)
	m.ObserveProcessingTime(0.0002)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.signalsTotal.WithLabelValues("request")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.signalsTotal.WithLabelValues("dom")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.signalsByResult.WithLabelValues("detected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.detectionsTotal.WithLabelValues("XSS", "critical")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.alertsTotal.WithLabelValues("no_receiver")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.activeWorkers))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.storedEvents))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.signalsPerSecond))
}

func TestPrometheusMetrics_SignalsPerSecond(t *testing.T) {
	internal := domain.NewAnalysisMetrics()
	internal.UpdateSPS(42)

	m := NewPrometheusMetrics("test", internal)
	assert.Equal(t, 42.0, testutil.ToFloat64(m.signalsPerSecond))
}

func TestPrometheusMetrics_Handler(t *testing.T) {
	m := NewPrometheusMetrics("pagewarden", nil)
	m.IncrementSignals(domain.SignalGesture)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `pagewarden_signals_total{kind="gesture"} 1`))
	assert.Contains(t, body, "pagewarden_memory_bytes")
}

func TestPrometheusMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewPrometheusMetrics("pagewarden", nil)
		NewPrometheusMetrics("pagewarden", nil)
	})
}
