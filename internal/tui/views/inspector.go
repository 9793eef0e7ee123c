package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xoelrdgz/pagewarden/internal/domain"
	"github.com/xoelrdgz/pagewarden/pkg/sanitize"
)

// EventInspector shows one detection event in full.
type EventInspector struct {
	Event   *domain.DetectionEvent
	Width   int
	Height  int
	ScrollY int
	Visible bool
}

func NewEventInspector() *EventInspector {
	return &EventInspector{
		Width:  80,
		Height: 24,
	}
}

func (p *EventInspector) SetEvent(event *domain.DetectionEvent) {
	p.Event = event
	p.ScrollY = 0
	p.Visible = event != nil
}

func (p *EventInspector) SetDimensions(width, height int) {
	p.Width = width
	p.Height = height
}

func (p *EventInspector) ScrollUp() {
	if p.ScrollY > 0 {
		p.ScrollY--
	}
}

func (p *EventInspector) ScrollDown() {
	p.ScrollY++
}

func (p *EventInspector) Close() {
	p.Event = nil
	p.Visible = false
}

// wrap splits s into terminal-safe chunks of at most width runes.
func wrap(s string, width int) []string {
	runes := []rune(sanitize.Terminal(s))
	if width <= 0 {
		width = 40
	}
	var out []string
	for len(runes) > width {
		out = append(out, string(runes[:width]))
		runes = runes[width:]
	}
	return append(out, string(runes))
}

func (p *EventInspector) Render() string {
	if p.Event == nil {
		return ""
	}

	e := p.Event
	contentWidth := p.Width - 4

	header := accentStyle.Bold(true)
	label := warnStyle.Width(12)
	value := textStyle
	codeBlock := accentStyle.Background(AccentBg)
	rule := dimStyle.Render(strings.Repeat("─", max(contentWidth, 10)))

	sev, sevStyle := severityLabel(e.Severity)
	ruleID := string(e.RuleID)
	if ruleID == "" {
		ruleID = "-"
	}

	var lines []string
	lines = append(lines, header.Render("╔═══ EVENT INSPECTOR ═══╗"), rule)
	lines = append(lines, header.Render("▶ DETECTION"))
	lines = append(lines,
		fmt.Sprintf("%s %s", label.Render("Time:"), value.Render(e.Timestamp().Format("2006-01-02 15:04:05.000"))),
		fmt.Sprintf("%s %s", label.Render("Type:"), value.Render(sanitize.String(e.Type, contentWidth))),
		fmt.Sprintf("%s %s", label.Render("Category:"), value.Render(e.Category.String())),
		fmt.Sprintf("%s %s", label.Render("Severity:"), sevStyle.Render(sev+" "+e.Severity.String())),
		fmt.Sprintf("%s %s", label.Render("Rule:"), value.Render(sanitize.String(ruleID, 40))),
		fmt.Sprintf("%s %s", label.Render("Origin:"), value.Render(sanitize.Origin(e.Origin))),
	)

	lines = append(lines, "", rule, header.Render("▶ URL"))
	for _, chunk := range wrap(sanitize.URL(e.URL, 0), contentWidth) {
		lines = append(lines, codeBlock.Render(chunk))
	}

	if e.Details != "" {
		lines = append(lines, "", rule, header.Render("▶ DETAILS"))
		for _, chunk := range wrap(e.Details, contentWidth) {
			lines = append(lines, value.Render(chunk))
		}
	}

	if raw, err := e.ToJSONPretty(); err == nil {
		lines = append(lines, "", rule, header.Render("▶ RECORD"))
		for _, line := range strings.Split(string(raw), "\n") {
			lines = append(lines, codeBlock.Render(sanitize.String(line, contentWidth)))
		}
	}

	lines = append(lines, "", rule, dimStyle.Render("[ESC] Close   [↑/↓] Scroll"))
	if p.ScrollY > 0 && p.ScrollY < len(lines) {
		lines = lines[p.ScrollY:]
	}
	if p.Height > 2 && len(lines) > p.Height-2 {
		lines = lines[:p.Height-2]
	}

	return lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(Accent).
		Padding(0, 1).
		Width(p.Width).
		Height(p.Height).
		Render(strings.Join(lines, "\n"))
}
