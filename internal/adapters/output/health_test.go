package output

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/pagewarden/internal/sink"
)

type stubPool struct {
	running     bool
	length      int
	capacity    int
	probeOK     bool
	probeDelay  time.Duration
	overflowed  int64
	probeCalled int
}

func (p *stubPool) IsRunning() bool        { return p.running }
func (p *stubPool) QueueLength() int       { return p.length }
func (p *stubPool) QueueCapacity() int     { return p.capacity }
func (p *stubPool) OverflowSignals() int64 { return p.overflowed }

func (p *stubPool) QueueUtilization() float64 {
	if p.capacity == 0 {
		return 0
	}
	return float64(p.length) / float64(p.capacity) * 100
}

func (p *stubPool) Probe(ctx context.Context) bool {
	p.probeCalled++
	if p.probeDelay > 0 {
		time.Sleep(p.probeDelay)
	}
	return p.probeOK
}

func TestHealthChecker_Statuses(t *testing.T) {
	tests := []struct {
		name    string
		pool    *stubPool
		status  string
		healthy bool
	}{
		{"offline", &stubPool{}, "OFFLINE", false},
		{"saturated", &stubPool{running: true, length: 99, capacity: 100, probeOK: true}, "SATURATED", false},
		{"blocked", &stubPool{running: true, capacity: 100}, "BLOCKED", false},
		{"slow", &stubPool{running: true, capacity: 100, probeOK: true, probeDelay: 30 * time.Millisecond}, "SLOW", false},
		{"degraded", &stubPool{running: true, length: 85, capacity: 100, probeOK: true}, "DEGRADED", true},
		{"healthy", &stubPool{running: true, length: 1, capacity: 100, probeOK: true}, "HEALTHY", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthChecker(tt.pool, HealthCheckerConfig{MaxLatency: 10 * time.Millisecond})
			status := h.Check(context.Background())
			assert.Equal(t, tt.status, status.Status)
			assert.Equal(t, tt.healthy, status.Healthy)
		})
	}
}

func TestHealthChecker_NilPool(t *testing.T) {
	h := NewHealthChecker(nil, DefaultHealthCheckerConfig())
	assert.Equal(t, "OFFLINE", h.Check(context.Background()).Status)
}

func TestHealthChecker_CachesResult(t *testing.T) {
	pool := &stubPool{running: true, capacity: 100, probeOK: true}
	h := NewHealthChecker(pool, HealthCheckerConfig{CheckInterval: time.Minute})

	h.Check(context.Background())
	h.Check(context.Background())
	assert.Equal(t, 1, pool.probeCalled)
}

func TestHealthChecker_ServeHTTP(t *testing.T) {
	healthy := NewHealthChecker(&stubPool{running: true, capacity: 10, probeOK: true}, DefaultHealthCheckerConfig())
	rec := httptest.NewRecorder()
	healthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var status HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, "HEALTHY", status.Status)
	assert.Equal(t, 10, status.QueueCapacity)

	offline := NewHealthChecker(&stubPool{}, DefaultHealthCheckerConfig())
	rec = httptest.NewRecorder()
	offline.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthChecker_ReportsEventLogAndRules(t *testing.T) {
	events := sink.New(sink.Config{MaxEvents: 5})
	events.Record(testEvent(1))

	h := NewHealthChecker(&stubPool{}, HealthCheckerConfig{
		Events:       events,
		RulesVersion: func() string { return "1.0.0" },
	})
	status := h.Check(context.Background())

	assert.Equal(t, "OFFLINE", status.Status)
	assert.Equal(t, 1, status.StoredEvents)
	assert.Equal(t, 5, status.EventCapacity)
	assert.Equal(t, "1.0.0", status.RulesVersion)
}
