package views

import (
	"fmt"
	"strings"
)

var signalChars = []rune{'⎽', '⎼', '─', '⎻', '⎺'}

var barChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// SignalRate is a scrolling trace of signals per second. Samples taken
// while new detections arrived are drawn in red.
type SignalRate struct {
	Data        []float64
	Hits        []bool
	Width       int
	OscilloMode bool
}

func NewSignalRate(width int) *SignalRate {
	if width <= 0 {
		width = 60
	}
	return &SignalRate{
		Data:        make([]float64, width),
		Hits:        make([]bool, width),
		Width:       width,
		OscilloMode: true,
	}
}

// Update appends a sample; hit marks that detections arrived since the
// previous one.
func (t *SignalRate) Update(value float64, hit bool) {
	t.Data = append(t.Data[1:], value)
	t.Hits = append(t.Hits[1:], hit)
}

func (t *SignalRate) SetWidth(width int) {
	if width <= 0 || width == t.Width {
		return
	}
	oldData, oldHits := t.Data, t.Hits
	t.Width = width
	t.Data = make([]float64, width)
	t.Hits = make([]bool, width)

	start := 0
	if len(oldData) > width {
		start = len(oldData) - width
	}
	copy(t.Data[width-len(oldData[start:]):], oldData[start:])
	copy(t.Hits[width-len(oldHits[start:]):], oldHits[start:])
}

func (t *SignalRate) Toggle() {
	t.OscilloMode = !t.OscilloMode
}

func (t *SignalRate) Render() string {
	var current, maxVal float64
	for _, v := range t.Data {
		if v > maxVal {
			maxVal = v
		}
	}
	if len(t.Data) > 0 {
		current = t.Data[len(t.Data)-1]
	}
	if maxVal < 10 {
		maxVal = 10
	}

	chars := barChars
	if t.OscilloMode {
		chars = signalChars
	}

	var trace strings.Builder
	trace.WriteString(" ")
	for i, v := range t.Data {
		if t.OscilloMode && i > 0 && i%10 == 0 {
			trace.WriteString(ghostStyle.Render("│"))
			continue
		}
		level := 0
		if v > 0 {
			level = int(v / maxVal * float64(len(chars)-1))
		}
		if level >= len(chars) {
			level = len(chars) - 1
		}

		style := accentStyle
		switch {
		case v == 0:
			style = dimStyle
		case t.Hits[i]:
			style = alertStyle
		case v > maxVal*0.8:
			style = warnStyle
		}
		trace.WriteString(style.Render(string(chars[level])))
	}

	valueStr := fmt.Sprintf(" ▶ %.0f sig/s", current)
	if current >= 1000 {
		valueStr = fmt.Sprintf(" ▶ %.1fK sig/s", current/1000)
	}
	trace.WriteString(accentStyle.Bold(true).Render(valueStr))

	return trace.String()
}
