// Package dashboard implements the terminal dashboards for both sensor
// variants: LiveModel follows the push feed, PollModel polls the REST
// backend. Both share the status engine, the toast queue and the view.
package dashboard

import (
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/luki/dhtwatch/internal/chart"
	"github.com/luki/dhtwatch/internal/history"
	"github.com/luki/dhtwatch/internal/locale"
	"github.com/luki/dhtwatch/internal/notify"
	"github.com/luki/dhtwatch/internal/sensor"
	"github.com/luki/dhtwatch/internal/status"
)

const (
	defaultHistorySize = 600
	pruneInterval      = time.Second
)

// Options carry the settings both dashboards share.
type Options struct {
	Thresholds  sensor.Thresholds
	Formatter   *locale.Formatter
	ToastTTL    time.Duration
	HistorySize int

	// CheckEvery drives the age re-evaluation of the live dashboard.
	CheckEvery time.Duration
	// PollEvery drives the fetch cycle of the poll dashboard.
	PollEvery time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Formatter == nil {
		o.Formatter = locale.New("", nil)
	}
	if o.ToastTTL <= 0 {
		o.ToastTTL = 5 * time.Second
	}
	if o.HistorySize <= 0 {
		o.HistorySize = defaultHistorySize
	}
	if o.CheckEvery <= 0 {
		o.CheckEvery = 5 * time.Second
	}
	if o.PollEvery <= 0 {
		o.PollEvery = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type pruneMsg time.Time

func pruneTick() tea.Cmd {
	return tea.Tick(pruneInterval, func(t time.Time) tea.Msg {
		return pruneMsg(t)
	})
}

// base holds the state and behavior common to both models. Its pointer
// fields are shared between copies of the enclosing value model.
type base struct {
	opts     Options
	tracker  *status.Tracker
	toasts   *notify.Queue
	history  *history.Recorder
	tempBand chart.Band
	humBand  chart.Band
	keys     keyMap
	help     help.Model
	started  time.Time
	width    int
	height   int
	mode     string
}

func newBase(tr *status.Tracker, opts Options, mode string, refresh bool) base {
	opts = opts.withDefaults()
	return base{
		opts:     opts,
		tracker:  tr,
		toasts:   notify.NewQueue(opts.ToastTTL, opts.Logger),
		history:  history.NewRecorder(opts.HistorySize),
		tempBand: chart.TemperatureBand(opts.Thresholds),
		humBand:  chart.HumidityBand(opts.Thresholds),
		keys:     newKeyMap(refresh),
		help:     help.New(),
		started:  opts.Now(),
		mode:     mode,
	}
}

func (b *base) notify(notices []notify.Notice) {
	if len(notices) == 0 {
		return
	}
	b.toasts.Push(b.opts.Now(), notices...)
}

// observe records a sample in the status engine and the sparklines.
func (b *base) observe(r sensor.Reading) {
	b.notify(b.tracker.Observe(r))
	b.history.Record(r)
}

// update handles the messages both models treat alike. handled is false
// when the caller should process msg itself.
func (b *base) update(msg tea.Msg) (cmd tea.Cmd, handled bool) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.width = msg.Width
		b.height = msg.Height
		b.help.Width = msg.Width
		return nil, true

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, b.keys.Quit):
			return tea.Quit, true
		case key.Matches(msg, b.keys.Dismiss):
			if visible := b.toasts.Visible(); len(visible) > 0 {
				b.toasts.Dismiss(visible[0].ID)
			}
			return nil, true
		case key.Matches(msg, b.keys.Clear):
			b.toasts.Clear()
			return nil, true
		case key.Matches(msg, b.keys.Help):
			b.help.ShowAll = !b.help.ShowAll
			return nil, true
		}

	case pruneMsg:
		b.toasts.Prune(b.opts.Now())
		return pruneTick(), true
	}
	return nil, false
}

// Snapshot exposes the status engine state.
func (b base) Snapshot() status.Snapshot { return b.tracker.Snapshot() }

// Toasts returns the toasts currently on screen.
func (b base) Toasts() []notify.Toast { return b.toasts.Visible() }
