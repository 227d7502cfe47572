package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/luki/dhtwatch/internal/chart"
	"github.com/luki/dhtwatch/internal/history"
	"github.com/luki/dhtwatch/internal/notify"
	"github.com/luki/dhtwatch/internal/status"
)

// ── Color palette ────────────────────────────────────────────────────

var (
	colorTitleBg  = lipgloss.Color("17")
	colorTitleFg  = lipgloss.Color("51")
	colorBorder   = lipgloss.Color("62")
	colorLabel    = lipgloss.Color("252")
	colorValue    = lipgloss.Color("250")
	colorDim      = lipgloss.Color("240")
	colorFooterBg = lipgloss.Color("235")
	colorOnline   = lipgloss.Color("78")
	colorOffline  = lipgloss.Color("196")
	colorPending  = lipgloss.Color("220")
	colorInfo     = lipgloss.Color("75")
)

const (
	labelW = 13
	valueW = 10
)

// frame is what a model contributes to the shared layout.
type frame struct {
	badges []string // right side of the title bar
	extra  []string // sections between readings and toasts
}

func (b base) render(f frame) string {
	if b.width == 0 {
		return "  Initializing..."
	}

	contentWidth := max(b.width-2, 40)
	snap := b.tracker.Snapshot()

	sections := []string{
		b.renderTitleBar(contentWidth, snap, f.badges),
		b.renderStatusLine(contentWidth, snap),
		b.renderReadings(contentWidth, snap),
	}
	sections = append(sections, f.extra...)
	if toasts := b.renderToasts(contentWidth); toasts != "" {
		sections = append(sections, toasts)
	}
	sections = append(sections, b.renderFooter(contentWidth))

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)
	if b.height > 0 {
		lines := strings.Split(content, "\n")
		if len(lines) > b.height {
			// keep the footer, drop from the middle
			lines = append(lines[:b.height-1], lines[len(lines)-1])
		}
		content = strings.Join(lines, "\n")
	}
	return content
}

func (b base) renderTitleBar(width int, snap status.Snapshot, badges []string) string {
	logo := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorTitleFg).
		Render("DHT MONITOR")

	dim := lipgloss.NewStyle().Foreground(colorDim)
	parts := []string{
		dim.Render(b.mode),
		dim.Render("up " + fmtDuration(b.opts.Now().Sub(b.started))),
	}
	parts = append(parts, badges...)
	parts = append(parts, stateBadge(snap))

	sep := dim.Render(" │ ")
	right := strings.Join(parts, sep)

	gap := max(width-lipgloss.Width(logo)-lipgloss.Width(right)-4, 1)
	return lipgloss.NewStyle().
		Background(colorTitleBg).
		Width(width).
		Padding(0, 1).
		Render(logo + strings.Repeat(" ", gap) + right)
}

func stateBadge(snap status.Snapshot) string {
	switch {
	case snap.State == status.Online:
		return lipgloss.NewStyle().Foreground(colorOnline).Bold(true).Render("● ONLINE")
	case snap.Reason == status.Connecting:
		return lipgloss.NewStyle().Foreground(colorPending).Bold(true).Render("◌ CONNECTING")
	default:
		return lipgloss.NewStyle().Foreground(colorOffline).Bold(true).Render("○ OFFLINE")
	}
}

// statusText is the human sentence for the current state.
func statusText(snap status.Snapshot) string {
	switch snap.Reason {
	case status.Connecting:
		return "Connecting to sensor..."
	case status.Fresh:
		return "Sensor online"
	case status.Stale:
		return fmt.Sprintf("Sensor offline, no update for %s", fmtDuration(snap.Age))
	case status.Lost:
		return fmt.Sprintf("Sensor offline, last seen %s ago", fmtDuration(snap.Age))
	case status.NoData:
		return "No sensor data available"
	case status.Disconnected:
		return "Backend unreachable"
	case status.Failed:
		if snap.Err != nil {
			return "Sensor offline: " + snap.Err.Error()
		}
		return "Sensor offline"
	default:
		return snap.Reason.String()
	}
}

func (b base) renderStatusLine(width int, snap status.Snapshot) string {
	color := colorOffline
	switch {
	case snap.State == status.Online:
		color = colorOnline
	case snap.Reason == status.Connecting:
		color = colorPending
	}
	text := truncate(statusText(snap), width-2)
	return lipgloss.NewStyle().
		Foreground(color).
		Width(width).
		Padding(0, 1).
		Render(text)
}

func (b base) renderReadings(totalWidth int, snap status.Snapshot) string {
	const scaleWidth = 12
	innerWidth := max(totalWidth-4, 30)
	chartWidth := min(max(innerWidth-labelW-valueW-scaleWidth-4, 15), 140)

	label := lipgloss.NewStyle().Foreground(colorLabel).Width(labelW)
	value := lipgloss.NewStyle().Width(valueW).Align(lipgloss.Right)
	frameL := lipgloss.NewStyle().Foreground(colorBorder).Render("▕")
	frameR := lipgloss.NewStyle().Foreground(colorBorder).Render("▏")
	dim := lipgloss.NewStyle().Foreground(colorDim)

	f := b.opts.Formatter
	row := func(name string, s *history.Series, band chart.Band, v float64, text string) string {
		shown := dim.Render("--")
		if snap.HasReading {
			shown = band.Colorize(text, v)
		}
		lo, hi := chart.Range(s, band)
		pts := s.LastNPoints(chartWidth)
		spark := frameL + chart.Sparkline(pts, chartWidth, lo, hi, band) + frameR
		scale := ""
		if snap.HasReading {
			scale = " " + chart.Scale(v, lo, hi, band, scaleWidth)
		}
		return label.Render(name) + value.Render(shown) + " " + spark + scale
	}

	r := snap.Reading
	rows := []string{
		row("Temperature", b.history.Temperature, b.tempBand, r.Temperature, f.Temperature(r.Temperature)),
		row("Humidity", b.history.Humidity, b.humBand, r.Humidity, f.Humidity(r.Humidity)),
	}

	pts := b.history.Temperature.LastNPoints(chartWidth)
	if timeline := chart.Timeline(pts, chartWidth); strings.TrimSpace(timeline) != "" {
		rows = append(rows, strings.Repeat(" ", labelW+valueW+2)+timeline)
	}

	if b.history.Temperature.Len() > 0 {
		summary := func(name string, s *history.Series, unit func(float64) string) string {
			return fmt.Sprintf("%s avg %s lo %s pk %s", name, unit(s.Avg()), unit(s.Min()), unit(s.Peak()))
		}
		line := summary("temp", b.history.Temperature, f.Temperature) + "  ·  " +
			summary("hum", b.history.Humidity, f.Humidity)
		rows = append(rows, dim.Render(truncate(line, innerWidth)))
	}

	updated := "Last updated: --"
	if snap.HasReading {
		updated = "Last updated: " + f.Timestamp(r.Timestamp)
		if snap.Age > 0 {
			updated += " (" + fmtDuration(snap.Age) + " ago)"
		}
	}
	rows = append(rows, dim.Render(updated))

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).
		Width(totalWidth).
		Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func levelStyle(l notify.Level) (string, lipgloss.Color) {
	switch l {
	case notify.Success:
		return "✔", colorOnline
	case notify.Warning:
		return "⚠", colorPending
	case notify.Error:
		return "✖", colorOffline
	default:
		return "ℹ", colorInfo
	}
}

func (b base) renderToasts(width int) string {
	toasts := b.toasts.Visible()
	if len(toasts) == 0 {
		return ""
	}
	var lines []string
	for _, t := range toasts {
		icon, color := levelStyle(t.Level)
		title := lipgloss.NewStyle().Foreground(color).Bold(true).Render(icon + " " + t.Title)
		msg := lipgloss.NewStyle().Foreground(colorValue).Render(truncate(t.Message, max(width-lipgloss.Width(title)-8, 10)))
		lines = append(lines, title+"  "+msg)
	}
	return lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(colorDim).
		Padding(0, 1).
		Width(width).
		Render(strings.Join(lines, "\n"))
}

func (b base) renderFooter(width int) string {
	okS := lipgloss.NewStyle().Foreground(colorOnline).Render("██")
	nearS := lipgloss.NewStyle().Foreground(colorPending).Render("██")
	highS := lipgloss.NewStyle().Foreground(colorOffline).Render("██")
	lowS := lipgloss.NewStyle().Foreground(colorInfo).Render("██")

	dimS := lipgloss.NewStyle().Foreground(colorDim)
	legend := okS + dimS.Render(" ok ") +
		nearS + dimS.Render(" near ") +
		highS + dimS.Render(" high ") +
		lowS + dimS.Render(" low")

	keys := b.help.View(b.keys)

	gap := max(width-lipgloss.Width(legend)-lipgloss.Width(keys)-4, 1)
	return lipgloss.NewStyle().
		Background(colorFooterBg).
		Width(width).
		Padding(0, 1).
		Render(legend + strings.Repeat(" ", gap) + keys)
}

func truncate(s string, w int) string {
	r := []rune(s)
	if len(r) <= w {
		return s
	}
	if w <= 3 {
		return string(r[:max(w, 0)])
	}
	return string(r[:w-1]) + "…"
}

func fmtDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}
