package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/xoelrdgz/pagewarden/internal/domain"
	"github.com/xoelrdgz/pagewarden/internal/sink"
	"github.com/xoelrdgz/pagewarden/pkg/sanitize"
)

// Origins ranks origins by event count with a per-category breakdown.
type Origins struct {
	Entries      []sink.OriginSummary
	Width        int
	VisibleCount int
}

func NewOrigins(width int) *Origins {
	return &Origins{Width: width, VisibleCount: 25}
}

func (v *Origins) Update(entries []sink.OriginSummary) { v.Entries = entries }

func (v *Origins) Render() string {
	if len(v.Entries) == 0 {
		return dimStyle.Italic(true).Render("  No origins flagged")
	}

	var lines []string
	lines = append(lines, mutedStyle.Bold(true).Render(fmt.Sprintf(" %-3s %-30s %-12s %-4s %-10s %s",
		"#", "ORIGIN", "EVENTS", "CRT", "LAST", "CATEGORIES")))
	lines = append(lines, dimStyle.Render(strings.Repeat("─", max(v.Width, 10))))

	maxTotal := 0
	for _, e := range v.Entries {
		if e.Total > maxTotal {
			maxTotal = e.Total
		}
	}

	visible := v.Entries
	if len(visible) > v.VisibleCount {
		visible = visible[:v.VisibleCount]
	}

	for i, e := range visible {
		idx := mutedStyle.Render(fmt.Sprintf("%2d.", i+1))

		origin := sanitize.Origin(e.Origin)
		if len(origin) > 30 {
			origin = origin[:27] + "..."
		}
		style := accentDim
		switch {
		case e.Critical > 0:
			style = alertStyle.Bold(true)
		case maxTotal > 0 && float64(e.Total)/float64(maxTotal) > 0.5:
			style = warnStyle.Bold(true)
		case e.Total > 5:
			style = accentStyle
		}

		barWidth := 6
		fillWidth := 0
		if maxTotal > 0 {
			fillWidth = int(float64(e.Total) / float64(maxTotal) * float64(barWidth))
		}
		bar := strings.Repeat("█", fillWidth) + strings.Repeat("░", barWidth-fillWidth)
		hits := style.Render(fmt.Sprintf("%s %5s", bar, fmtLarge(int64(e.Total))))

		crt := mutedStyle.Render(fmt.Sprintf("%-4d", e.Critical))
		if e.Critical > 0 {
			crt = alertStyle.Render(fmt.Sprintf("%-4d", e.Critical))
		}
		last := mutedStyle.Render(padRight(time.UnixMilli(e.LastSeen).Format("15:04:05"), 10))

		lines = append(lines, fmt.Sprintf(" %s %s %s %s %s %s",
			idx,
			style.Render(padRight(origin, 30)),
			hits,
			crt,
			last,
			textStyle.Render(breakdown(e.Counts, max(v.Width-70, 10))),
		))
	}

	if len(v.Entries) > v.VisibleCount {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("  [showing %d of %d origins]", v.VisibleCount, len(v.Entries))))
	}

	return strings.Join(lines, "\n")
}

// breakdown lists non-zero category counts in display order.
func breakdown(counts map[domain.Category]int, maxLen int) string {
	var parts []string
	for _, c := range domain.AllCategories {
		if n := counts[c]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", categoryShort[c], n))
		}
	}
	s := strings.Join(parts, " ")
	if len(s) > maxLen {
		s = s[:maxLen-3] + "..."
	}
	return s
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s[:length]
	}
	return s + strings.Repeat(" ", length-len(s))
}
