// Package status derives the sensor's online/offline state and decides
// which notices to raise. A Tracker is owned by a single dashboard model and
// is not safe for concurrent use.
package status

import (
	"fmt"
	"time"

	"github.com/luki/dhtwatch/internal/notify"
	"github.com/luki/dhtwatch/internal/sensor"
)

// State is the derived connection state shown to the user.
type State int

const (
	Offline State = iota
	Online
)

func (s State) String() string {
	if s == Online {
		return "online"
	}
	return "offline"
}

// Reason qualifies the current state.
type Reason int

const (
	Connecting   Reason = iota // no link or data yet
	Fresh                      // recent sample
	Stale                      // sample older than StaleAfter
	Lost                       // sample older than LostAfter
	NoData                     // link healthy, feed path empty
	Disconnected               // feed link down
	Failed                     // subscription or fetch error
)

func (r Reason) String() string {
	switch r {
	case Fresh:
		return "receiving data"
	case Stale:
		return "no recent data"
	case Lost:
		return "sensor lost"
	case NoData:
		return "no data published"
	case Disconnected:
		return "backend unreachable"
	case Failed:
		return "error"
	default:
		return "connecting"
	}
}

// Mode selects how the online state is derived.
type Mode int

const (
	// AgeBased derives the state from the age of the last sample (push feed).
	AgeBased Mode = iota
	// SuccessBased derives the state from fetch success or failure (polling).
	SuccessBased
)

// Options configure a Tracker.
type Options struct {
	Mode       Mode
	StaleAfter time.Duration
	LostAfter  time.Duration
	Cooldown   time.Duration
	Thresholds sensor.Thresholds
}

// DefaultOptions returns the stock 30s/300s/30s timings.
func DefaultOptions(mode Mode) Options {
	return Options{
		Mode:       mode,
		StaleAfter: 30 * time.Second,
		LostAfter:  300 * time.Second,
		Cooldown:   30 * time.Second,
		Thresholds: sensor.DefaultThresholds,
	}
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// Snapshot is a read-only copy of the tracker state for rendering.
type Snapshot struct {
	State      State
	Reason     Reason
	LinkUp     bool
	Reading    sensor.Reading
	HasReading bool
	Received   time.Time // local time the last sample arrived
	Age        time.Duration
	Err        error
}

type limiter struct {
	window time.Duration
	last   time.Time
	used   bool
}

func (l *limiter) allow(now time.Time) bool {
	if l.used && now.Sub(l.last) < l.window {
		return false
	}
	l.used = true
	l.last = now
	return true
}

// Tracker holds the display state.
type Tracker struct {
	opts Options
	now  func() time.Time

	state  State
	reason Reason
	linkUp bool
	err    error

	reading    sensor.Reading
	hasReading bool
	empty      bool
	received   time.Time

	lastSeen      int64
	seen          bool
	everOnline    bool
	everLinked    bool
	lostConfirmed bool

	offlineAlerts limiter
	linkAlerts    limiter
	errorAlerts   limiter
}

// New creates a tracker in the Offline/Connecting state. In SuccessBased
// mode the link is assumed up.
func New(opts Options, options ...Option) *Tracker {
	t := &Tracker{
		opts:          opts,
		now:           time.Now,
		state:         Offline,
		reason:        Connecting,
		linkUp:        opts.Mode == SuccessBased,
		offlineAlerts: limiter{window: opts.Cooldown},
		linkAlerts:    limiter{window: opts.Cooldown},
		errorAlerts:   limiter{window: opts.Cooldown},
	}
	for _, o := range options {
		o(t)
	}
	return t
}

// Observe records a sample. Threshold notices are raised only when the
// sample's timestamp is strictly greater than any seen before.
func (t *Tracker) Observe(r sensor.Reading) []notify.Notice {
	now := t.now()
	var out []notify.Notice

	isNew := !t.seen || r.Timestamp > t.lastSeen
	t.reading = r
	t.hasReading = true
	t.empty = false
	t.received = now
	t.err = nil

	if isNew {
		t.lastSeen = r.Timestamp
		t.seen = true
		out = append(out, t.breachNotices(r)...)
	}

	if t.opts.Mode == SuccessBased {
		return append(out, t.goOnline()...)
	}

	age := r.Age(now)
	switch {
	case age < t.opts.StaleAfter:
		out = append(out, t.goOnline()...)
	case age > t.opts.LostAfter:
		t.lostConfirmed = true
		out = append(out, t.goOffline(Lost, now)...)
	case age > t.opts.StaleAfter:
		out = append(out, t.goOffline(Stale, now)...)
	}
	return out
}

// ObserveEmpty records that the feed path holds no data. The state only
// moves to Offline when the link itself is healthy; no notice is raised.
func (t *Tracker) ObserveEmpty() []notify.Notice {
	t.empty = true
	if !t.linkUp {
		return nil
	}
	t.state = Offline
	t.reason = NoData
	return nil
}

// SetLink records the health of the connection to the backend.
func (t *Tracker) SetLink(up bool) []notify.Notice {
	// A down report before the first connection still has to leave the
	// Connecting state.
	pending := !up && !t.linkUp && t.reason == Connecting
	if up == t.linkUp && !pending {
		return nil
	}
	now := t.now()
	t.linkUp = up

	if !up {
		t.state = Offline
		t.reason = Disconnected
		if t.linkAlerts.allow(now) {
			return []notify.Notice{{
				Level:   notify.Warning,
				Title:   "Connection lost",
				Message: "Can't reach the realtime backend; readings are paused.",
			}}
		}
		return nil
	}

	var out []notify.Notice
	if t.everLinked {
		out = append(out, notify.Notice{Level: notify.Info, Title: "Reconnected", Message: "Realtime backend reachable again."})
	}
	t.everLinked = true
	t.reason = Connecting
	t.err = nil
	return append(out, t.evaluate(now, false)...)
}

// Fail records a subscription or transport error and forces Offline.
func (t *Tracker) Fail(err error) []notify.Notice {
	now := t.now()
	t.err = err
	t.state = Offline
	t.reason = Failed
	t.lostConfirmed = false
	if !t.errorAlerts.allow(now) {
		return nil
	}
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return []notify.Notice{{Level: notify.Error, Title: "Error reading sensor data", Message: msg}}
}

// Check re-evaluates the age of the last sample. It is driven by a
// periodic timer in AgeBased mode and is a no-op otherwise.
func (t *Tracker) Check() []notify.Notice {
	if t.opts.Mode != AgeBased || !t.linkUp || t.reason == Failed {
		return nil
	}
	return t.evaluate(t.now(), true)
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot {
	s := Snapshot{
		State:      t.state,
		Reason:     t.reason,
		LinkUp:     t.linkUp,
		Reading:    t.reading,
		HasReading: t.hasReading,
		Received:   t.received,
		Err:        t.err,
	}
	if t.hasReading {
		s.Age = t.reading.Age(t.now())
	}
	return s
}

// evaluate applies the age rules. alert controls whether an
// Online->Offline transition may raise a notice.
func (t *Tracker) evaluate(now time.Time, alert bool) []notify.Notice {
	if !t.hasReading || t.empty {
		if t.linkUp && t.opts.Mode == AgeBased && (alert || t.empty) {
			t.state = Offline
			t.reason = NoData
		}
		return nil
	}
	if t.opts.Mode == SuccessBased {
		return nil
	}

	age := t.reading.Age(now)
	switch {
	case age < t.opts.StaleAfter:
		return t.goOnline()
	case age > t.opts.LostAfter:
		if t.state == Online {
			t.lostConfirmed = true
			if alert {
				return t.goOffline(Lost, now)
			}
			t.state, t.reason = Offline, Lost
			return nil
		}
		if t.lostConfirmed {
			return nil
		}
		t.lostConfirmed = true
		wasStale := t.reason == Stale
		t.reason = Lost
		if alert && wasStale && t.offlineAlerts.allow(now) {
			return []notify.Notice{{
				Level:   notify.Warning,
				Title:   "Sensor still offline",
				Message: fmt.Sprintf("No data for over %s.", t.opts.LostAfter),
			}}
		}
		return nil
	case age > t.opts.StaleAfter:
		if t.state == Online {
			if alert {
				return t.goOffline(Stale, now)
			}
			t.state, t.reason = Offline, Stale
			return nil
		}
		if t.reason != Stale {
			t.reason = Stale
		}
	}
	return nil
}

func (t *Tracker) goOnline() []notify.Notice {
	t.reason = Fresh
	t.lostConfirmed = false
	if t.state == Online {
		return nil
	}
	t.state = Online
	if !t.everOnline {
		t.everOnline = true
		return nil
	}
	return []notify.Notice{{Level: notify.Success, Title: "Sensor back online", Message: "Receiving data again."}}
}

func (t *Tracker) goOffline(reason Reason, now time.Time) []notify.Notice {
	wasOnline := t.state == Online
	t.state = Offline
	t.reason = reason
	if !wasOnline || !t.offlineAlerts.allow(now) {
		return nil
	}
	return []notify.Notice{{
		Level:   notify.Warning,
		Title:   "Sensor offline",
		Message: fmt.Sprintf("No new data for over %s.", t.opts.StaleAfter),
	}}
}

func (t *Tracker) breachNotices(r sensor.Reading) []notify.Notice {
	var out []notify.Notice
	for _, b := range t.opts.Thresholds.Breaches(r) {
		n := notify.Notice{Level: notify.Warning}
		switch b {
		case sensor.HighTemperature:
			n.Title = "High temperature"
			n.Message = fmt.Sprintf("%.1f °C is above %.1f °C.", r.Temperature, t.opts.Thresholds.TempHigh)
		case sensor.LowTemperature:
			n.Title = "Low temperature"
			n.Message = fmt.Sprintf("%.1f °C is below %.1f °C.", r.Temperature, t.opts.Thresholds.TempLow)
		case sensor.HighHumidity:
			n.Title = "High humidity"
			n.Message = fmt.Sprintf("%.1f %% is above %.1f %%.", r.Humidity, t.opts.Thresholds.HumidityHigh)
		}
		out = append(out, n)
	}
	return out
}
