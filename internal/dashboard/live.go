package dashboard

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/luki/dhtwatch/internal/feed"
	"github.com/luki/dhtwatch/internal/status"
)

// ── Messages ─────────────────────────────────────────────────────────

type subscribedMsg struct{ events <-chan feed.Event }

type subscribeErrMsg struct{ err error }

type feedEventMsg feed.Event

type feedClosedMsg struct{}

type checkMsg time.Time

// ── Model ────────────────────────────────────────────────────────────

// LiveModel renders the push feed. Every event is applied to the status
// engine; a periodic check ages the last sample.
type LiveModel struct {
	base
	ctx    context.Context
	feed   feed.Feed
	events <-chan feed.Event
	closed bool
}

// NewLive builds the live dashboard. tr should be in AgeBased mode.
func NewLive(ctx context.Context, f feed.Feed, tr *status.Tracker, opts Options) LiveModel {
	return LiveModel{
		base: newBase(tr, opts, "live", false),
		ctx:  ctx,
		feed: f,
	}
}

// ── Commands ─────────────────────────────────────────────────────────

func (m LiveModel) subscribe() tea.Msg {
	ch, err := m.feed.Subscribe(m.ctx)
	if err != nil {
		return subscribeErrMsg{err}
	}
	return subscribedMsg{ch}
}

func waitForEvent(ch <-chan feed.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return feedClosedMsg{}
		}
		return feedEventMsg(ev)
	}
}

func (m LiveModel) checkTick() tea.Cmd {
	return tea.Tick(m.opts.CheckEvery, func(t time.Time) tea.Msg {
		return checkMsg(t)
	})
}

// ── Init / Update ────────────────────────────────────────────────────

func (m LiveModel) Init() tea.Cmd {
	return tea.Batch(m.subscribe, m.checkTick(), pruneTick())
}

func (m LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if cmd, handled := m.base.update(msg); handled {
		return m, cmd
	}

	switch msg := msg.(type) {
	case subscribedMsg:
		m.events = msg.events
		return m, waitForEvent(m.events)

	case subscribeErrMsg:
		m.opts.Logger.Error("feed subscription failed", "error", msg.err)
		m.notify(m.tracker.Fail(msg.err))

	case feedEventMsg:
		m.apply(feed.Event(msg))
		return m, waitForEvent(m.events)

	case feedClosedMsg:
		m.closed = true
		m.opts.Logger.Info("feed closed")

	case checkMsg:
		m.notify(m.tracker.Check())
		return m, m.checkTick()
	}

	return m, nil
}

func (m *LiveModel) apply(ev feed.Event) {
	switch ev.Kind {
	case feed.KindReading:
		m.observe(ev.Reading)
	case feed.KindEmpty:
		m.notify(m.tracker.ObserveEmpty())
	case feed.KindLink:
		m.notify(m.tracker.SetLink(ev.Connected))
	case feed.KindError:
		m.opts.Logger.Error("feed error", "error", ev.Err)
		m.notify(m.tracker.Fail(ev.Err))
	}
}

// ── View ─────────────────────────────────────────────────────────────

func (m LiveModel) View() string {
	snap := m.tracker.Snapshot()
	link := lipgloss.NewStyle().Foreground(colorOffline).Render("link ○")
	switch {
	case m.closed:
		link = lipgloss.NewStyle().Foreground(colorDim).Render("feed closed")
	case snap.LinkUp:
		link = lipgloss.NewStyle().Foreground(colorOnline).Render("link ●")
	}
	return m.render(frame{badges: []string{link}})
}
