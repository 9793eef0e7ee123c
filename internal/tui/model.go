package tui

import (
	"sync"
	"time"

	"github.com/xoelrdgz/pagewarden/internal/domain"
	"github.com/xoelrdgz/pagewarden/internal/sink"
)

const (
	viewEvents = iota
	viewOrigins
	viewCount
)

// AlertEntry is an alert shown in the banner until it expires.
type AlertEntry struct {
	Alert    domain.Alert
	Received time.Time
}

// Model holds the view state shared by the TUI components.
type Model struct {
	Width  int
	Height int

	ActiveView int

	Alerts      []AlertEntry
	Metrics     domain.MetricsSnapshot
	MaxAlerts   int
	AlertTTL    time.Duration
	categoryIdx int // -1 for all categories
	severityIdx int // -1 for all severities

	mu         sync.RWMutex
	alertCount int
	lastEvents int64
}

var severities = []domain.Severity{domain.SeverityInfo, domain.SeverityWarning, domain.SeverityCritical}

func NewModel() *Model {
	return &Model{
		Width:       120,
		Height:      40,
		MaxAlerts:   3,
		AlertTTL:    6 * time.Second,
		categoryIdx: -1,
		severityIdx: -1,
	}
}

// AddAlert queues an alert for the banner, dropping the oldest one when
// the banner is full.
func (m *Model) AddAlert(alert domain.Alert, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Alerts) >= m.MaxAlerts {
		copy(m.Alerts, m.Alerts[1:])
		m.Alerts = m.Alerts[:len(m.Alerts)-1]
	}
	m.Alerts = append(m.Alerts, AlertEntry{Alert: alert, Received: now})
	m.alertCount++
}

// ActiveAlerts returns the alerts younger than AlertTTL and forgets the rest.
func (m *Model) ActiveAlerts(now time.Time) []AlertEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.Alerts[:0]
	for _, a := range m.Alerts {
		if now.Sub(a.Received) < m.AlertTTL {
			kept = append(kept, a)
		}
	}
	m.Alerts = kept

	result := make([]AlertEntry, len(kept))
	copy(result, kept)
	return result
}

// UpdateMetrics stores a snapshot and reports whether new events arrived
// since the previous one.
func (m *Model) UpdateMetrics(metrics domain.MetricsSnapshot) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	hit := metrics.TotalEvents > m.lastEvents
	m.lastEvents = metrics.TotalEvents
	m.Metrics = metrics
	return hit
}

func (m *Model) GetMetrics() domain.MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Metrics
}

func (m *Model) TotalAlerts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.alertCount
}

// CycleCategory steps the category filter: all, then each category.
func (m *Model) CycleCategory() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categoryIdx++
	if m.categoryIdx >= len(domain.AllCategories) {
		m.categoryIdx = -1
	}
}

// CycleSeverity steps the minimum severity filter: all, info, warning,
// critical.
func (m *Model) CycleSeverity() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.severityIdx++
	if m.severityIdx >= len(severities) {
		m.severityIdx = -1
	}
}

// Filter returns the event log query for the current filter state.
func (m *Model) Filter() sink.Filter {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var f sink.Filter
	if m.categoryIdx >= 0 {
		f.Category = domain.AllCategories[m.categoryIdx]
	}
	if m.severityIdx >= 0 {
		sev := severities[m.severityIdx]
		f.MinSeverity = &sev
	}
	return f
}

// FilterLabel describes the active filter for the header.
func (m *Model) FilterLabel() string {
	f := m.Filter()
	label := "ALL"
	if f.Category != "" {
		label = f.Category.String()
	}
	if f.MinSeverity != nil {
		label += " ≥" + f.MinSeverity.String()
	}
	return label
}

func (m *Model) SetDimensions(width, height int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Width = width
	m.Height = height
}

func (m *Model) NextView() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ActiveView = (m.ActiveView + 1) % viewCount
}
