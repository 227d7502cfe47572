// Package chart draws the sparkline, timeline and threshold scale for the
// reading panels, colored against the alert bands.
package chart

import (
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/luki/dhtwatch/internal/history"
	"github.com/luki/dhtwatch/internal/sensor"
)

var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

var (
	colorOK    = lipgloss.Color("78")  // soft green
	colorNear  = lipgloss.Color("220") // yellow
	colorHigh  = lipgloss.Color("196") // red
	colorLow   = lipgloss.Color("75")  // blue
	colorTick  = lipgloss.Color("239")
	colorEmpty = lipgloss.Color("236")
	colorMark  = lipgloss.Color("240")
)

// Band is the alert range of one quantity. Values strictly outside it
// are in breach, matching sensor.Thresholds.
type Band struct {
	Low     float64
	High    float64
	HasLow  bool
	HasHigh bool
}

// TemperatureBand and HumidityBand derive the bands from the thresholds.
func TemperatureBand(t sensor.Thresholds) Band {
	return Band{Low: t.TempLow, High: t.TempHigh, HasLow: true, HasHigh: true}
}

func HumidityBand(t sensor.Thresholds) Band {
	return Band{High: t.HumidityHigh, HasHigh: true}
}

// Color returns the color for v.
func (b Band) Color(v float64) lipgloss.Color {
	switch {
	case b.HasHigh && v > b.High:
		return colorHigh
	case b.HasLow && v < b.Low:
		return colorLow
	case b.HasHigh && v >= b.High*0.9:
		return colorNear
	default:
		return colorOK
	}
}

// Breached reports whether v lies outside the band.
func (b Band) Breached(v float64) bool {
	return (b.HasHigh && v > b.High) || (b.HasLow && v < b.Low)
}

// Colorize renders text in the color v earns, bold when breached.
func (b Band) Colorize(text string, v float64) string {
	style := lipgloss.NewStyle().Foreground(b.Color(v))
	if b.Breached(v) {
		style = style.Bold(true)
	}
	return style.Render(text)
}

var tickSteps = []time.Duration{
	time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	time.Hour,
	6 * time.Hour,
	24 * time.Hour,
}

// tickStep picks the smallest step that keeps labels at least eight
// columns apart on average.
func tickStep(points []history.Point, width int) time.Duration {
	if len(points) < 2 {
		return time.Minute
	}
	span := points[len(points)-1].Time.Sub(points[0].Time)
	slots := max(width/8, 1)
	for _, s := range tickSteps {
		if span/s <= time.Duration(slots) {
			return s
		}
	}
	return tickSteps[len(tickSteps)-1]
}

// ticks marks the indices where a point crosses a step boundary.
func ticks(points []history.Point, step time.Duration) []bool {
	out := make([]bool, len(points))
	for i := 1; i < len(points); i++ {
		prev, cur := points[i-1].Time, points[i].Time
		if prev.IsZero() || cur.IsZero() {
			continue
		}
		if cur.Truncate(step) != prev.Truncate(step) {
			out[i] = true
		}
	}
	return out
}

func visible(points []history.Point, width int) []history.Point {
	if len(points) > width {
		return points[len(points)-width:]
	}
	return points
}

// Sparkline renders points as colored blocks scaled to [lo, hi], padded on
// the left when there are fewer points than columns. A thin pipe marks each
// tick boundary.
func Sparkline(points []history.Point, width int, lo, hi float64, band Band) string {
	if width <= 0 {
		return ""
	}

	dim := lipgloss.NewStyle().Foreground(colorEmpty)
	if len(points) == 0 {
		return dim.Render(strings.Repeat("╌", width))
	}

	points = visible(points, width)
	marks := ticks(points, tickStep(points, width))

	span := hi - lo
	if span <= 0 {
		span = 1
	}

	var sb strings.Builder
	sb.WriteString(dim.Render(strings.Repeat("╌", width-len(points))))

	tickStyle := lipgloss.NewStyle().Foreground(colorTick)
	for i, p := range points {
		if marks[i] {
			sb.WriteString(tickStyle.Render("│"))
			continue
		}
		norm := math.Max(0, math.Min(1, (p.Value-lo)/span))
		idx := min(int(norm*7), 7)
		sb.WriteString(band.Colorize(string(sparkBlocks[idx]), p.Value))
	}
	return sb.String()
}

// Timeline renders HH:MM labels under the sparkline at its tick marks.
// Labels that would overlap are skipped.
func Timeline(points []history.Point, width int) string {
	if len(points) == 0 || width <= 0 {
		return ""
	}

	points = visible(points, width)
	padLen := width - len(points)
	marks := ticks(points, tickStep(points, width))

	line := []rune(strings.Repeat(" ", width))
	lastEnd := -1
	for i, p := range points {
		if !marks[i] {
			continue
		}
		label := p.Time.Format("15:04")
		start := max(padLen+i-2, 0)
		end := start + len(label)
		if end > width || start <= lastEnd+1 {
			continue
		}
		copy(line[start:], []rune(label))
		lastEnd = end
	}

	return lipgloss.NewStyle().Foreground(colorTick).Render(string(line))
}

// Scale renders a bar over [lo, hi] with the band edges marked and a
// diamond at current.
func Scale(current, lo, hi float64, band Band, width int) string {
	if width <= 0 {
		return ""
	}

	pos := func(v float64) int { return Marker(v, lo, hi, width) }

	lowPos, highPos := -1, -1
	if band.HasLow && band.Low > lo && band.Low < hi {
		lowPos = pos(band.Low)
	}
	if band.HasHigh && band.High > lo && band.High < hi {
		highPos = pos(band.High)
	}
	curPos := pos(current)

	var sb strings.Builder
	for i := 0; i < width; i++ {
		switch i {
		case curPos:
			style := lipgloss.NewStyle().Foreground(band.Color(current)).Bold(true)
			sb.WriteString(style.Render("◆"))
		case highPos:
			sb.WriteString(lipgloss.NewStyle().Foreground(colorHigh).Render("▪"))
		case lowPos:
			sb.WriteString(lipgloss.NewStyle().Foreground(colorLow).Render("▪"))
		default:
			sb.WriteString(lipgloss.NewStyle().Foreground(colorEmpty).Render("·"))
		}
	}
	return sb.String()
}

// Range returns a display range covering the series and the band edges
// with a little headroom.
func Range(s *history.Series, band Band) (lo, hi float64) {
	lo, hi = math.MaxFloat64, -math.MaxFloat64
	if s != nil && s.Len() > 0 {
		lo, hi = s.Min(), s.Peak()
	}
	if band.HasLow {
		lo = math.Min(lo, band.Low)
		hi = math.Max(hi, band.Low)
	}
	if band.HasHigh {
		lo = math.Min(lo, band.High)
		hi = math.Max(hi, band.High)
	}
	if lo > hi {
		return 0, 1
	}
	pad := math.Max((hi-lo)*0.05, 1)
	return lo - pad, hi + pad
}

// Marker returns the column of v on a width-wide scale over [lo, hi].
func Marker(current, lo, hi float64, width int) int {
	if width <= 0 {
		return -1
	}
	span := hi - lo
	if span <= 0 {
		span = 1
	}
	p := int(float64(width-1) * (current - lo) / span)
	return max(0, min(p, width-1))
}
