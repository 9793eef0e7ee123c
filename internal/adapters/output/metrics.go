package output

import (
	"errors"
	"net"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/pagewarden/internal/domain"
)

// PrometheusMetrics implements ports.MetricsCollector and
// ports.ProcessingObserver on its own registry, so several instances can
// coexist in one process.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	signalsTotal     *prometheus.CounterVec
	signalsByResult  *prometheus.CounterVec
	detectionsTotal  *prometheus.CounterVec
	alertsTotal      *prometheus.CounterVec
	processingTime   prometheus.Histogram
	activeWorkers    prometheus.Gauge
	storedEvents     prometheus.Gauge
	signalsPerSecond prometheus.GaugeFunc
	memoryUsage      prometheus.GaugeFunc

	mu     sync.Mutex
	server *http.Server
}

type MetricsConfig struct {
	Port string // Listen address, e.g. ":9090"
	Path string
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{Port: ":9090", Path: "/metrics"}
}

// NewPrometheusMetrics registers the PageWarden collectors.
//
// Parameters:
//   - namespace: Metric name prefix (default: "pagewarden")
//   - internalMetrics: Source for the signals-per-second gauge, may be nil
func NewPrometheusMetrics(namespace string, internalMetrics *domain.AnalysisMetrics) *PrometheusMetrics {
	if namespace == "" {
		namespace = "pagewarden"
	}

	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}
	gauge := func(name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}
	gaugeFunc := func(name, help string, fn func() float64) prometheus.GaugeFunc {
		return f.NewGaugeFunc(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help}, fn)
	}

	return &PrometheusMetrics{
		registry:        reg,
		signalsTotal:    counter("signals_total", "Browser signals processed, by kind", "kind"),
		signalsByResult: counter("signals_by_result_total", "Processed signals by classification result", "result"),
		detectionsTotal: counter("detections_total", "Detection events by category and severity", "category", "severity"),
		alertsTotal:     counter("alerts_total", "Alerts by delivery outcome", "outcome"),
		processingTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processing_duration_seconds",
			Help:      "Time spent classifying one signal",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 12),
		}),
		activeWorkers: gauge("active_workers", "Running worker goroutines"),
		storedEvents:  gauge("stored_events", "Detection events held in the event log"),
		signalsPerSecond: gaugeFunc("signals_per_second", "Signal throughput over the last second", func() float64 {
			if internalMetrics == nil {
				return 0
			}
			return internalMetrics.GetSnapshot().SignalsPerSecond
		}),
		memoryUsage: gaugeFunc("memory_bytes", "Heap bytes allocated", func() float64 {
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			return float64(ms.Alloc)
		}),
	}
}

func (m *PrometheusMetrics) IncrementSignals(kind domain.SignalKind) {
	m.signalsTotal.WithLabelValues(string(kind)).Inc()
}

func (m *PrometheusMetrics) IncrementSignalsByResult(result string) {
	m.signalsByResult.WithLabelValues(result).Inc()
}

func (m *PrometheusMetrics) IncrementDetections(category domain.Category, severity domain.Severity) {
	m.detectionsTotal.WithLabelValues(category.String(), severity.String()).Inc()
}

func (m *PrometheusMetrics) IncrementAlerts(outcome string) {
	m.alertsTotal.WithLabelValues(outcome).Inc()
}

func (m *PrometheusMetrics) ObserveProcessingTime(seconds float64) { m.processingTime.Observe(seconds) }
func (m *PrometheusMetrics) SetActiveWorkers(count int)            { m.activeWorkers.Set(float64(count)) }
func (m *PrometheusMetrics) SetStoredEvents(count int)             { m.storedEvents.Set(float64(count)) }
func (m *PrometheusMetrics) Registry() *prometheus.Registry        { return m.registry }

// Handler serves this collector's registry.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// StartServer binds config.Port and serves the registry on config.Path in
// the background. A bind failure is returned; later serve errors are logged.
func (m *PrometheusMetrics) StartServer(config MetricsConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if config.Path == "" {
		config.Path = "/metrics"
	}
	ln, err := net.Listen("tcp", config.Port)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle(config.Path, m.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	m.server = srv

	log.Info().Str("addr", ln.Addr().String()).Str("path", config.Path).Msg("Serving Prometheus metrics")
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

func (m *PrometheusMetrics) StopServer() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server == nil {
		return nil
	}
	err := m.server.Close()
	m.server = nil
	return err
}
