package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/xoelrdgz/pagewarden/internal/domain"
)

// Status is the bottom bar: heartbeat, counters and event log fill.
type Status struct {
	Width     int
	Metrics   domain.MetricsSnapshot
	Stored    int
	Capacity  int
	Rules     string
	StartTime time.Time
	updatedAt time.Time
}

func NewStatus(width int) *Status {
	return &Status{Width: width, StartTime: time.Now()}
}

func (s *Status) Update(metrics domain.MetricsSnapshot) {
	s.Metrics = metrics
	s.updatedAt = time.Now()
}

// SetStorage records the event log fill level.
func (s *Status) SetStorage(stored, capacity int) {
	s.Stored = stored
	s.Capacity = capacity
}

func field(label, value string, style lipgloss.Style) string {
	return mutedStyle.Render(label+":") + " " + style.Render(value)
}

func (s *Status) Render() string {
	m := s.Metrics

	events := accentStyle
	switch {
	case m.TotalEvents > 500:
		events = alertStyle.Bold(true)
	case m.TotalEvents > 100:
		events = warnStyle.Bold(true)
	}

	suppressed := accentStyle
	if m.SuppressedAlerts > 0 && m.SuppressedAlerts > m.DeliveredAlerts {
		suppressed = warnStyle
	}

	store := accentStyle
	if s.Capacity > 0 && s.Stored >= s.Capacity {
		store = warnStyle
	}

	fields := []string{
		field("SYS", s.pulse(), s.pulseStyle()),
		field("RATE", fmtLarge(int64(m.SignalsPerSecond))+"/s", accentStyle),
		field("SIG", fmtLarge(m.TotalSignals), accentStyle),
		field("EVT", fmtLarge(m.TotalEvents), events),
		field("ALRT", fmtLarge(m.DeliveredAlerts), accentStyle) +
			mutedStyle.Render("/") + suppressed.Render(fmtLarge(m.SuppressedAlerts)),
		field("LOG", fmt.Sprintf("%d/%d", s.Stored, s.Capacity), store),
		field("WRK", fmt.Sprint(m.ActiveWorkers), accentStyle),
		field("UP", fmtUptime(time.Since(s.StartTime).Round(time.Second)), accentStyle),
	}
	if s.Rules != "" {
		fields = append(fields, field("RULES", s.Rules, accentDim))
	}

	return lipgloss.NewStyle().
		Width(s.Width).
		Padding(0, 1).
		Background(BarBg).
		Render(strings.Join(fields, ghostStyle.Render(" │ ")))
}

// pulse is filled while metrics keep arriving and hollow once they stall.
func (s *Status) pulse() string {
	if time.Since(s.updatedAt) < time.Second {
		return "●"
	}
	return "○"
}

func (s *Status) pulseStyle() lipgloss.Style {
	switch age := time.Since(s.updatedAt); {
	case age < 300*time.Millisecond:
		return accentStyle.Bold(true)
	case age < time.Second:
		return accentDim
	case age < 3*time.Second:
		return warnStyle
	default:
		return alertStyle
	}
}

func fmtLarge(n int64) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1e6)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1e3)
	default:
		return fmt.Sprint(n)
	}
}

func fmtUptime(d time.Duration) string {
	h, m, sec := int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	return fmt.Sprintf("%dm%02ds", m, sec)
}
