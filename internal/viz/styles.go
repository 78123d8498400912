package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/san-kum/densesolve/internal/compute"
)

// Package styles. They are rebuilt from the current theme by SetTheme.
var (
	Panel       lipgloss.Style
	Title       lipgloss.Style
	Subtle      lipgloss.Style
	KeyHint     lipgloss.Style
	HeaderStyle lipgloss.Style
	MetricLabel lipgloss.Style
	MetricValue lipgloss.Style

	StatusSuccess lipgloss.Style
	StatusFailure lipgloss.Style
	StatusFatal   lipgloss.Style

	// Spark styles grade bars and sparklines. Fast is good.
	SparkFast lipgloss.Style
	SparkMid  lipgloss.Style
	SparkSlow lipgloss.Style
)

func init() {
	apply(ThemeSlate)
}

func apply(t Theme) {
	CurrentTheme = t
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

	Panel = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Border).Padding(1, 2)
	Title = fg(t.Title).Bold(true)
	Subtle = fg(t.Muted)
	KeyHint = fg(t.Muted).Italic(true)
	HeaderStyle = fg(t.Text).Bold(true).
		BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(t.Border)
	MetricLabel = fg(t.Label).Width(14)
	MetricValue = fg(t.Value).Bold(true)

	StatusSuccess = fg(t.Success).Bold(true)
	StatusFailure = fg(t.Warning).Bold(true)
	StatusFatal = fg(t.Error).Bold(true)

	SparkFast = fg(t.Success)
	SparkMid = fg(t.Warning)
	SparkSlow = fg(t.Error)
}

// StatusStyle colors a termination type: green for success, amber for a
// numerical failure, red for everything else.
func StatusStyle(t compute.LinearSolverTerminationType) lipgloss.Style {
	switch t {
	case compute.LinearSolverSuccess:
		return StatusSuccess
	case compute.LinearSolverFailure:
		return StatusFailure
	default:
		return StatusFatal
	}
}

// RenderStatus renders a status name as stored in run metadata.
func RenderStatus(name string) string {
	for _, t := range []compute.LinearSolverTerminationType{
		compute.LinearSolverSuccess, compute.LinearSolverFailure,
	} {
		if name == t.String() {
			return StatusStyle(t).Render(name)
		}
	}
	return StatusFatal.Render(name)
}

// GradientText blends each rune's color from start to end in Lab space.
// Colors that do not parse as hex fall back to white.
func GradientText(text string, start, end lipgloss.Color) string {
	runes := []rune(text)
	if len(runes) == 0 {
		return ""
	}
	from := hexOrWhite(start)
	to := hexOrWhite(end)

	var b strings.Builder
	for i, r := range runes {
		t := 0.0
		if len(runes) > 1 {
			t = float64(i) / float64(len(runes)-1)
		}
		c := from.BlendLab(to, t).Clamped()
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(c.Hex())).Render(string(r)))
	}
	return b.String()
}

func hexOrWhite(c lipgloss.Color) colorful.Color {
	parsed, err := colorful.Hex(string(c))
	if err != nil {
		return colorful.Color{R: 1, G: 1, B: 1}
	}
	return parsed
}

// ProgressBar draws fraction (0 to 1) of width cells.
func ProgressBar(fraction float64, width int) string {
	filled := max(0, min(int(fraction*float64(width)), width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	switch {
	case fraction >= 1:
		return SparkFast.Render(bar)
	case fraction > 0.4:
		return SparkMid.Render(bar)
	}
	return Subtle.Render(bar)
}

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// SparklineChart renders the last width timings as block characters, the
// slowest in the slow color.
func SparklineChart(values []float64, width int) string {
	if len(values) == 0 {
		return strings.Repeat("─", width)
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo, hi = min(lo, v), max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	var b strings.Builder
	for _, v := range values {
		level := (v - lo) / span
		c := string(sparkRunes[int(level*float64(len(sparkRunes)-1))])
		switch {
		case level > 0.7:
			b.WriteString(SparkSlow.Render(c))
		case level > 0.3:
			b.WriteString(SparkMid.Render(c))
		default:
			b.WriteString(SparkFast.Render(c))
		}
	}
	return b.String()
}
