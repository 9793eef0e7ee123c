package output

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// PoolStatus is the view of the worker pool the health checker needs.
// Implemented by app.WorkerPool.
type PoolStatus interface {
	IsRunning() bool
	QueueLength() int
	QueueCapacity() int
	QueueUtilization() float64
	OverflowSignals() int64
	Probe(ctx context.Context) bool
}

// EventCounter is the view of the event log the health report includes.
// Implemented by sink.EventLog.
type EventCounter interface {
	Len() int
	Cap() int
}

// Health states, worst first. Only HEALTHY and DEGRADED count as healthy.
const (
	StateOffline   = "OFFLINE"
	StateSaturated = "SATURATED"
	StateBlocked   = "BLOCKED"
	StateSlow      = "SLOW"
	StateDegraded  = "DEGRADED"
	StateHealthy   = "HEALTHY"
)

const (
	saturatedPercent = 95.0
	degradedPercent  = 80.0
)

type HealthStatus struct {
	Healthy         bool          `json:"healthy"`
	Status          string        `json:"status"`
	Reason          string        `json:"reason,omitempty"`
	Latency         time.Duration `json:"-"`
	LatencyMs       float64       `json:"latency_ms"`
	QueueLength     int           `json:"queue_length"`
	QueueCapacity   int           `json:"queue_capacity"`
	Utilization     float64       `json:"utilization_percent"`
	OverflowedItems int64         `json:"overflowed_items"`
	StoredEvents    int           `json:"stored_events"`
	EventCapacity   int           `json:"event_capacity"`
	RulesVersion    string        `json:"rules_version,omitempty"`
	Uptime          time.Duration `json:"-"`
	UptimeSeconds   float64       `json:"uptime_seconds"`
}

func (s *HealthStatus) set(state, reason string) {
	s.Status = state
	s.Reason = reason
	s.Healthy = state == StateHealthy || state == StateDegraded
}

type HealthCheckerConfig struct {
	MaxLatency    time.Duration // Probe budget (default: 500ms)
	CheckInterval time.Duration // Result cache lifetime, 0 disables caching
	Events        EventCounter  // Reported, never affects health; may be nil
	RulesVersion  func() string // Active catalog version; may be nil
}

func DefaultHealthCheckerConfig() HealthCheckerConfig {
	return HealthCheckerConfig{
		MaxLatency:    500 * time.Millisecond,
		CheckInterval: 5 * time.Second,
	}
}

// HealthChecker answers readiness probes by pushing a no-op signal through
// the worker pool and timing it.
type HealthChecker struct {
	pool    PoolStatus
	config  HealthCheckerConfig
	started time.Time

	mu       sync.Mutex
	cached   HealthStatus
	cachedAt time.Time
}

func NewHealthChecker(pool PoolStatus, config HealthCheckerConfig) *HealthChecker {
	if config.MaxLatency <= 0 {
		config.MaxLatency = 500 * time.Millisecond
	}
	return &HealthChecker{pool: pool, config: config, started: time.Now()}
}

// Check returns the current status, reusing the last one while it is
// younger than CheckInterval.
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.cachedAt.IsZero() && time.Since(h.cachedAt) < h.config.CheckInterval {
		return h.cached
	}
	h.cached = h.evaluate(ctx)
	h.cachedAt = time.Now()
	return h.cached
}

func (h *HealthChecker) evaluate(ctx context.Context) HealthStatus {
	var s HealthStatus
	s.Uptime = time.Since(h.started)
	s.UptimeSeconds = s.Uptime.Seconds()
	if h.config.Events != nil {
		s.StoredEvents = h.config.Events.Len()
		s.EventCapacity = h.config.Events.Cap()
	}
	if h.config.RulesVersion != nil {
		s.RulesVersion = h.config.RulesVersion()
	}

	if h.pool == nil || !h.pool.IsRunning() {
		s.set(StateOffline, "worker pool not running")
		return s
	}

	s.QueueLength = h.pool.QueueLength()
	s.QueueCapacity = h.pool.QueueCapacity()
	s.Utilization = h.pool.QueueUtilization()
	s.OverflowedItems = h.pool.OverflowSignals()
	if s.Utilization >= saturatedPercent {
		s.set(StateSaturated, fmt.Sprintf("queue utilization at %.1f%%", s.Utilization))
		return s
	}

	probeCtx, cancel := context.WithTimeout(ctx, h.config.MaxLatency)
	defer cancel()
	start := time.Now()
	accepted := h.pool.Probe(probeCtx)
	s.Latency = time.Since(start)
	s.LatencyMs = float64(s.Latency) / float64(time.Millisecond)

	switch {
	case !accepted:
		s.set(StateBlocked, "probe signal not accepted before timeout")
	case s.Latency > h.config.MaxLatency:
		s.set(StateSlow, fmt.Sprintf("probe took %v, budget %v", s.Latency, h.config.MaxLatency))
	case s.Utilization >= degradedPercent:
		s.set(StateDegraded, fmt.Sprintf("queue utilization elevated at %.1f%%", s.Utilization))
	default:
		s.set(StateHealthy, "")
	}
	return s
}

// ServeHTTP writes the status as JSON: 200 when healthy, 503 otherwise.
func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)
	code := http.StatusServiceUnavailable
	if status.Healthy {
		code = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}
