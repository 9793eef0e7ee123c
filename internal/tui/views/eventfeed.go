package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xoelrdgz/pagewarden/internal/domain"
	"github.com/xoelrdgz/pagewarden/pkg/sanitize"
)

// EventList renders detection events newest first. Events are held
// oldest first, as returned by the event log.
type EventList struct {
	Events        []*domain.DetectionEvent
	VisibleCount  int
	ScrollPos     int
	Width         int
	SelectedIndex int
}

func NewEventList(visibleCount int) *EventList {
	return &EventList{
		VisibleCount:  visibleCount,
		Width:         100,
		SelectedIndex: -1,
	}
}

// Update swaps the event slice, keeping the selection on the newest event
// when it was there already.
func (a *EventList) Update(events []*domain.DetectionEvent) {
	followNewest := a.SelectedIndex < 0 || a.SelectedIndex >= len(a.Events)-1
	a.Events = events
	if followNewest || a.SelectedIndex >= len(events) {
		a.SelectedIndex = len(events) - 1
		a.ScrollPos = 0
	}
}

func (a *EventList) ScrollUp() {
	if a.SelectedIndex < len(a.Events)-1 {
		a.SelectedIndex++
	}
	a.ensureSelectionVisible()
}

func (a *EventList) ScrollDown() {
	if a.SelectedIndex > 0 {
		a.SelectedIndex--
	}
	a.ensureSelectionVisible()
}

func (a *EventList) window() (int, int) {
	startIdx, endIdx := 0, len(a.Events)
	if len(a.Events) > a.VisibleCount {
		startIdx = len(a.Events) - a.VisibleCount - a.ScrollPos
		if startIdx < 0 {
			startIdx = 0
		}
		endIdx = startIdx + a.VisibleCount
		if endIdx > len(a.Events) {
			endIdx = len(a.Events)
		}
	}
	return startIdx, endIdx
}

func (a *EventList) ensureSelectionVisible() {
	if len(a.Events) <= a.VisibleCount {
		a.ScrollPos = 0
		return
	}

	startIdx, endIdx := a.window()
	if a.SelectedIndex < startIdx {
		a.ScrollPos = len(a.Events) - a.VisibleCount - a.SelectedIndex
	}
	if a.SelectedIndex >= endIdx {
		a.ScrollPos = len(a.Events) - 1 - a.SelectedIndex
	}

	maxScroll := len(a.Events) - a.VisibleCount
	if a.ScrollPos < 0 {
		a.ScrollPos = 0
	}
	if a.ScrollPos > maxScroll {
		a.ScrollPos = maxScroll
	}
}

func (a *EventList) GetSelected() *domain.DetectionEvent {
	if a.SelectedIndex >= 0 && a.SelectedIndex < len(a.Events) {
		return a.Events[a.SelectedIndex]
	}
	return nil
}

func severityLabel(s domain.Severity) (string, lipgloss.Style) {
	switch s {
	case domain.SeverityCritical:
		return "CRT", alertStyle.Bold(true)
	case domain.SeverityWarning:
		return "WRN", warnStyle.Bold(true)
	default:
		return "INF", infoStyle
	}
}

var categoryShort = map[domain.Category]string{
	domain.CategoryInjection:             "INJECT",
	domain.CategoryXSS:                   "XSS",
	domain.CategoryMisconfiguration:      "MISCONF",
	domain.CategorySensitiveDataExposure: "DATA",
	domain.CategoryClientSideAttacks:     "CLIENT",
}

func (a *EventList) Render() string {
	if len(a.Events) == 0 {
		return dimStyle.Italic(true).Render("  No detections")
	}

	var lines []string
	lines = append(lines, mutedStyle.Bold(true).Render(
		fmt.Sprintf("  %-8s  %-3s  %-7s  %-24s  %-22s  %s",
			"TIME", "SEV", "CAT", "TYPE", "ORIGIN", "DETAILS")))
	lines = append(lines, dimStyle.Render("  "+strings.Repeat("─", max(a.Width-4, 10))))

	startIdx, endIdx := a.window()
	for i := endIdx - 1; i >= startIdx; i-- {
		e := a.Events[i]
		isSelected := i == a.SelectedIndex
		prefix := "  "
		if isSelected {
			prefix = "▶ "
		}

		ts := e.Timestamp().Format("15:04:05")
		timeStr := dimStyle.Render(ts)
		if isSelected {
			timeStr = selected.Render(ts)
		}

		sev, sevStyle := severityLabel(e.Severity)

		origin := sanitize.Origin(e.Origin)
		if len(origin) > 22 {
			origin = origin[:19] + "..."
		}
		originStyle := textStyle
		if isSelected {
			originStyle = selected.Bold(true)
		}

		eventType := sanitize.String(e.Type, 24)
		details := sanitize.String(e.DisplayDetails(), max(a.Width-80, 10))

		lines = append(lines, fmt.Sprintf("%s%s  %s  %-7s  %s  %s  %s",
			prefix,
			timeStr,
			sevStyle.Render(sev),
			categoryShort[e.Category],
			accentStyle.Render(fmt.Sprintf("%-24s", eventType)),
			originStyle.Render(fmt.Sprintf("%-22s", origin)),
			mutedStyle.Render(details),
		))
	}

	if len(a.Events) > a.VisibleCount {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("  [%d-%d of %d]",
			a.ScrollPos+1, min(a.ScrollPos+a.VisibleCount, len(a.Events)), len(a.Events))))
	}

	return strings.Join(lines, "\n")
}
