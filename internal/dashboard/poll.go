package dashboard

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/luki/dhtwatch/internal/poller"
	"github.com/luki/dhtwatch/internal/sensor"
	"github.com/luki/dhtwatch/internal/status"
)

// Refresher runs one guarded fetch cycle. *poller.Refresher satisfies it.
type Refresher interface {
	Refresh(ctx context.Context) (poller.Result, error)
	Busy() bool
}

// HistorySource supplies past readings to seed the sparklines.
type HistorySource interface {
	History(ctx context.Context) ([]sensor.Reading, error)
}

// ── Messages ─────────────────────────────────────────────────────────

type pollTickMsg time.Time

type refreshMsg struct {
	res poller.Result
	err error
}

type historyMsg struct {
	readings []sensor.Reading
	err      error
}

// ── Model ────────────────────────────────────────────────────────────

// PollModel renders the polling variant. Cycles start on a timer and on
// the refresh key; the refresher drops triggers while a cycle runs.
type PollModel struct {
	base
	ctx       context.Context
	refresher Refresher
	past      HistorySource

	spinner      spinner.Model
	stats        sensor.Stats
	statsVisible bool
	statsTable   table.Model
	lastCycle    time.Duration
}

// NewPoll builds the poll dashboard. tr should be in SuccessBased mode;
// past may be nil.
func NewPoll(ctx context.Context, r Refresher, past HistorySource, tr *status.Tracker, opts Options) PollModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(colorPending)

	return PollModel{
		base:       newBase(tr, opts, "poll", true),
		ctx:        ctx,
		refresher:  r,
		past:       past,
		spinner:    sp,
		statsTable: newStatsTable(),
	}
}

// StatsVisible reports whether a stats response has been shown.
func (m PollModel) StatsVisible() bool { return m.statsVisible }

// ── Commands ─────────────────────────────────────────────────────────

func (m PollModel) refresh() tea.Msg {
	res, err := m.refresher.Refresh(m.ctx)
	return refreshMsg{res: res, err: err}
}

func (m PollModel) loadHistory() tea.Msg {
	readings, err := m.past.History(m.ctx)
	return historyMsg{readings: readings, err: err}
}

func (m PollModel) pollTick() tea.Cmd {
	return tea.Tick(m.opts.PollEvery, func(t time.Time) tea.Msg {
		return pollTickMsg(t)
	})
}

// ── Init / Update ────────────────────────────────────────────────────

func (m PollModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.refresh, m.pollTick(), pruneTick(), m.spinner.Tick}
	if m.past != nil {
		cmds = append(cmds, m.loadHistory)
	}
	return tea.Batch(cmds...)
}

func (m PollModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if cmd, handled := m.base.update(msg); handled {
		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Refresh) {
			return m, m.refresh
		}

	case pollTickMsg:
		m.opts.Logger.Debug("auto refresh")
		return m, tea.Batch(m.refresh, m.pollTick())

	case refreshMsg:
		m.applyRefresh(msg)

	case historyMsg:
		if msg.err != nil {
			m.opts.Logger.Warn("history seed failed", "error", msg.err)
			return m, nil
		}
		n := m.history.Seed(msg.readings)
		m.opts.Logger.Debug("history seeded", "readings", n)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *PollModel) applyRefresh(msg refreshMsg) {
	if errors.Is(msg.err, poller.ErrBusy) {
		return
	}
	if msg.err != nil {
		m.notify(m.tracker.Fail(msg.err))
		return
	}

	m.lastCycle = msg.res.Elapsed
	m.observe(msg.res.Reading)
	if msg.res.StatsOK {
		m.stats = msg.res.Stats
		m.statsVisible = true
		m.statsTable.SetRows(m.statsRows())
	}
}

// ── View ─────────────────────────────────────────────────────────────

func newStatsTable() table.Model {
	s := table.DefaultStyles()
	s.Header = s.Header.Foreground(colorLabel)
	s.Cell = s.Cell.Foreground(colorValue)
	s.Selected = lipgloss.NewStyle()

	return table.New(
		table.WithColumns([]table.Column{
			{Title: "", Width: 12},
			{Title: "Min", Width: 10},
			{Title: "Max", Width: 10},
			{Title: "Avg", Width: 10},
		}),
		table.WithFocused(false),
		table.WithHeight(4),
		table.WithStyles(s),
	)
}

func (m PollModel) statsRows() []table.Row {
	f := m.opts.Formatter
	t, h := m.stats.Temperature, m.stats.Humidity
	return []table.Row{
		{"Temperature", f.Temperature(t.Min), f.Temperature(t.Max), f.Temperature(t.Avg)},
		{"Humidity", f.Humidity(h.Min), f.Humidity(h.Max), f.Humidity(h.Avg)},
	}
}

func (m PollModel) renderStats(width int) string {
	dim := lipgloss.NewStyle().Foreground(colorDim)
	title := lipgloss.NewStyle().Bold(true).Foreground(colorLabel).Render("Statistics")
	meta := ""
	if m.stats.ReadingsCount > 0 {
		meta = dim.Render("  " + m.opts.Formatter.Count(m.stats.ReadingsCount) + " readings")
	}
	if m.stats.LastUpdated != "" {
		meta += dim.Render("  updated " + m.stats.LastUpdated)
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).
		Width(width).
		Render(title + meta + "\n" + m.statsTable.View())
}

func (m PollModel) View() string {
	dim := lipgloss.NewStyle().Foreground(colorDim)
	badges := []string{dim.Render("every " + m.opts.PollEvery.String())}
	if m.refresher.Busy() {
		badges = append(badges, m.spinner.View()+dim.Render("fetching"))
	} else if m.lastCycle > 0 {
		badges = append(badges, dim.Render("took "+m.lastCycle.Round(time.Millisecond).String()))
	}

	var extra []string
	if m.statsVisible {
		extra = append(extra, m.renderStats(max(m.width-2, 40)))
	}
	return m.render(frame{badges: badges, extra: extra})
}
