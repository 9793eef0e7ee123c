package tui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/pagewarden/internal/domain"
	"github.com/xoelrdgz/pagewarden/internal/sink"
	"github.com/xoelrdgz/pagewarden/internal/tui/views"
	"github.com/xoelrdgz/pagewarden/pkg/sanitize"
)

const (
	maxAlertsPerTick = 50
	uiTickInterval   = 100 * time.Millisecond
)

// App is the terminal dashboard. It reads detection events from the event
// log on every tick and receives alerts as a ports.Notifier.
type App struct {
	model     *Model
	events    *sink.EventLog
	rate      *views.SignalRate
	feed      *views.EventList
	origins   *views.Origins
	status    *views.Status
	inspector *views.EventInspector

	ready    bool
	quitting bool
	width    int
	height   int

	alertChan     chan domain.Alert
	metricsChan   chan domain.MetricsSnapshot
	lastMetrics   domain.MetricsSnapshot
	droppedAlerts atomic.Int64

	source    string
	flash     string
	flashTime time.Time
}

func NewApp(events *sink.EventLog) *App {
	return &App{
		model:       NewModel(),
		events:      events,
		rate:        views.NewSignalRate(80),
		feed:        views.NewEventList(15),
		origins:     views.NewOrigins(100),
		status:      views.NewStatus(100),
		inspector:   views.NewEventInspector(),
		alertChan:   make(chan domain.Alert, 500),
		metricsChan: make(chan domain.MetricsSnapshot, 10),
		source:      "DEMO",
	}
}

func (a *App) SetSource(source string) { a.source = source }
func (a *App) SetRules(version string) { a.status.Rules = version }

type tickMsg time.Time
type metricsMsg domain.MetricsSnapshot

func (a *App) Init() tea.Cmd {
	return tea.Batch(tea.EnterAltScreen, a.tick(), a.listenForMetrics())
}

func (a *App) tick() tea.Cmd {
	return tea.Tick(uiTickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (a *App) listenForMetrics() tea.Cmd {
	return func() tea.Msg { return metricsMsg(<-a.metricsChan) }
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a, a.handleKey(msg.String())
	case tea.WindowSizeMsg:
		a.resize(msg.Width, msg.Height)
	case tickMsg:
		a.drainAlerts(time.Time(msg))
		a.refresh()
		return a, a.tick()
	case metricsMsg:
		a.lastMetrics = domain.MetricsSnapshot(msg)
		a.rate.Update(a.lastMetrics.SignalsPerSecond, a.model.UpdateMetrics(a.lastMetrics))
		a.status.Update(a.lastMetrics)
		return a, a.listenForMetrics()
	}
	return a, nil
}

// handleKey routes a key press to the inspector while it is open and to
// the dashboard otherwise.
func (a *App) handleKey(key string) tea.Cmd {
	if a.inspector.Visible {
		switch key {
		case "esc", "q":
			a.inspector.Close()
		case "up", "k":
			a.inspector.ScrollUp()
		case "down", "j":
			a.inspector.ScrollDown()
		}
		return nil
	}

	switch key {
	case "q", "ctrl+c":
		a.quitting = true
		return tea.Quit
	case "tab":
		a.model.NextView()
	case "up", "k":
		a.feed.ScrollUp()
	case "down", "j":
		a.feed.ScrollDown()
	case "enter":
		if e := a.feed.GetSelected(); e != nil {
			a.inspector.SetEvent(e)
		}
	case "c":
		a.model.CycleCategory()
		a.refresh()
	case "s":
		a.model.CycleSeverity()
		a.refresh()
	case "m":
		a.rate.Toggle()
	case "e":
		a.exportReport()
	}
	return nil
}

func (a *App) resize(width, height int) {
	a.width, a.height = width, height
	a.ready = true
	a.model.SetDimensions(width, height)

	inner := width - 4
	a.feed.Width = inner
	a.origins.Width = inner
	a.rate.SetWidth(inner)
	a.status.Width = width
	a.inspector.SetDimensions(inner, height-2)

	rows := max(height-14, 5)
	a.feed.VisibleCount = rows
	a.origins.VisibleCount = rows
}

func (a *App) drainAlerts(now time.Time) {
	for i := 0; i < maxAlertsPerTick; i++ {
		select {
		case alert := <-a.alertChan:
			a.model.AddAlert(alert, now)
		default:
			return
		}
	}
}

// refresh pulls the filtered event list and origin summary from the log.
func (a *App) refresh() {
	if a.events == nil {
		return
	}
	recent := a.events.Query(a.model.Filter())
	ordered := make([]*domain.DetectionEvent, len(recent))
	for i, e := range recent {
		ordered[len(recent)-1-i] = e
	}
	a.feed.Update(ordered)
	a.origins.Update(a.events.Summary())
	a.status.SetStorage(a.events.Len(), a.events.Cap())
}

func (a *App) exportReport() {
	if a.events == nil {
		return
	}
	a.flashTime = time.Now()
	f, err := os.Create(sink.DefaultExportName)
	if err != nil {
		a.flash = "export failed: " + err.Error()
		return
	}
	defer f.Close()
	if err := a.events.Export(f); err != nil {
		a.flash = "export failed: " + err.Error()
		return
	}
	a.flash = fmt.Sprintf("exported %d events to %s", a.events.Len(), sink.DefaultExportName)
	log.Info().Str("file", sink.DefaultExportName).Msg("Report exported from dashboard")
}

func (a *App) View() string {
	switch {
	case a.quitting:
		return "\n  Session terminated.\n\n"
	case !a.ready:
		return "\n  Initializing...\n\n"
	case a.inspector.Visible:
		return a.inspector.Render()
	}

	title, body := "EVENTS ["+a.model.FilterLabel()+"]", a.feed.Render()
	if a.model.ActiveView == viewOrigins {
		title, body = "ORIGINS", a.origins.Render()
	}

	rule := lipgloss.NewStyle().Foreground(ColorDim).Render(strings.Repeat("─", a.width))
	heading := lipgloss.NewStyle().Foreground(ColorMuted).Render("  " + title)

	return a.renderHeader() + "\n" +
		rule + "\n" +
		a.renderAlerts() +
		a.rate.Render() + "\n\n" +
		heading + "\n" +
		body + "\n\n" +
		a.status.Render() + "\n" +
		a.renderHelp()
}

func (a *App) renderHeader() string {
	accent := lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)

	state := accent.Render("WATCHING")
	if a.lastMetrics.TotalEvents > 0 {
		state = lipgloss.NewStyle().Foreground(ColorCritical).Render("DETECTIONS")
	}

	parts := []string{
		accent.Render("PAGEWARDEN"),
		state,
		lipgloss.NewStyle().Foreground(ColorDim).Render("SRC:") + " " + a.source,
	}
	if a.flash != "" && time.Since(a.flashTime) < 5*time.Second {
		parts = append(parts, lipgloss.NewStyle().Foreground(ColorAmber).Render(a.flash))
	}
	return "  " + strings.Join(parts, "  ")
}

// renderAlerts draws the banner of recent alerts, newest last.
func (a *App) renderAlerts() string {
	active := a.model.ActiveAlerts(time.Now())
	if len(active) == 0 {
		return "\n"
	}

	var b strings.Builder
	for _, entry := range active {
		alert := entry.Alert
		color := colorForSeverity(alert.Severity)
		style := BannerStyle.BorderForeground(color).Width(max(a.width-4, 20))
		title := ForSeverity(alert.Severity).Render(sanitize.String(alert.Title, 60))
		body := sanitize.String(alert.Message, max(a.width-10, 20))
		b.WriteString(style.Render(title + "\n" + body))
		b.WriteString("\n")
	}
	return b.String()
}

func (a *App) renderHelp() string {
	dim := lipgloss.NewStyle().Foreground(ColorDim)
	key := lipgloss.NewStyle().Foreground(ColorPrimaryDim)
	names := []string{"EVENTS", "ORIGINS"}
	return dim.Render(fmt.Sprintf("  %s [%s]  %s scroll  %s inspect  %s category  %s severity  %s export  %s quit",
		key.Render("TAB"), names[a.model.ActiveView], key.Render("↑↓"), key.Render("ENTER"),
		key.Render("c"), key.Render("s"), key.Render("e"), key.Render("q")))
}

// Deliver queues the alert for the banner. It reports DeliveryFailed when
// the dashboard has fallen behind.
func (a *App) Deliver(_ context.Context, alert domain.Alert) domain.DeliveryOutcome {
	select {
	case a.alertChan <- alert:
		return domain.Delivered
	default:
		a.droppedAlerts.Add(1)
		return domain.DeliveryFailed
	}
}

func (a *App) SendMetrics(metrics domain.MetricsSnapshot) {
	select {
	case a.metricsChan <- metrics:
	default:
	}
}

func (a *App) GetModel() *Model     { return a.model }
func (a *App) DroppedAlerts() int64 { return a.droppedAlerts.Load() }

func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
