package views

import "github.com/charmbracelet/lipgloss"

// Palette shared by every panel.
var (
	Accent     = lipgloss.Color("#2dd4bf")
	AccentDim  = lipgloss.Color("#0f9488")
	AccentBg   = lipgloss.Color("#062a27")
	Warn       = lipgloss.Color("#f59e0b")
	Alert      = lipgloss.Color("#ef4444")
	Info       = lipgloss.Color("#38bdf8")
	Text       = lipgloss.Color("#e2e8f0")
	Muted      = lipgloss.Color("#64748b")
	Dim        = lipgloss.Color("#334155")
	Ghost      = lipgloss.Color("#1e293b")
	BarBg      = lipgloss.Color("#0b1220")
	SelectedBg = lipgloss.Color("#0b3b36")
)

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

var (
	accentStyle = fg(Accent)
	accentDim   = fg(AccentDim)
	warnStyle   = fg(Warn)
	alertStyle  = fg(Alert)
	infoStyle   = fg(Info)
	textStyle   = fg(Text)
	mutedStyle  = fg(Muted)
	dimStyle    = fg(Dim)
	ghostStyle  = fg(Ghost)
	selected    = lipgloss.NewStyle().Background(SelectedBg).Foreground(Accent)
)
