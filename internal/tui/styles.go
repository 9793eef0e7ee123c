package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/xoelrdgz/pagewarden/internal/domain"
	"github.com/xoelrdgz/pagewarden/internal/tui/views"
)

var (
	ColorPrimary    = views.Accent
	ColorPrimaryDim = views.AccentDim
	ColorAmber      = views.Warn
	ColorCritical   = views.Alert
	ColorWarning    = views.Warn
	ColorInfo       = views.Info
	ColorMuted      = views.Muted
	ColorDim        = views.Dim
)

// BannerStyle frames an alert; the border takes the severity color.
var BannerStyle = lipgloss.NewStyle().
	Border(lipgloss.NormalBorder()).
	Padding(0, 1)

// severityColors indexes by domain.Severity.
var severityColors = [...]lipgloss.Color{
	domain.SeverityInfo:     ColorInfo,
	domain.SeverityWarning:  ColorWarning,
	domain.SeverityCritical: ColorCritical,
}

func colorForSeverity(s domain.Severity) lipgloss.Color {
	if s < 0 || int(s) >= len(severityColors) {
		return ColorInfo
	}
	return severityColors[s]
}

// ForSeverity styles text at severity s; warning and above are bold.
func ForSeverity(s domain.Severity) lipgloss.Style {
	style := lipgloss.NewStyle().Foreground(colorForSeverity(s))
	if s >= domain.SeverityWarning {
		style = style.Bold(true)
	}
	return style
}
