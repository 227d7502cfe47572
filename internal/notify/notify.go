// Package notify holds toast-style notices: short messages shown on top
// of the dashboard and dismissed automatically after a timeout.
package notify

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Level is the severity of a notice.
type Level int

const (
	Info Level = iota
	Success
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Success:
		return "success"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// Notice is a message produced by the status engine.
type Notice struct {
	Level   Level
	Title   string
	Message string
}

// Toast is a notice on screen.
type Toast struct {
	Notice
	ID      string
	Created time.Time
}

const maxVisible = 4

// Queue keeps the visible toasts, oldest first.
type Queue struct {
	ttl    time.Duration
	logger *slog.Logger
	toasts []Toast
}

// NewQueue creates a queue whose toasts expire after ttl.
func NewQueue(ttl time.Duration, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{ttl: ttl, logger: logger}
}

// Push adds notices stamped with now and logs each one. When more than
// maxVisible are showing, the oldest are dropped.
func (q *Queue) Push(now time.Time, notices ...Notice) {
	for _, n := range notices {
		q.log(n)
		q.toasts = append(q.toasts, Toast{Notice: n, ID: uuid.NewString(), Created: now})
	}
	if over := len(q.toasts) - maxVisible; over > 0 {
		q.toasts = append(q.toasts[:0], q.toasts[over:]...)
	}
}

// Prune removes expired toasts and reports whether any were removed.
func (q *Queue) Prune(now time.Time) bool {
	kept := q.toasts[:0]
	for _, t := range q.toasts {
		if now.Sub(t.Created) < q.ttl {
			kept = append(kept, t)
		}
	}
	removed := len(kept) != len(q.toasts)
	q.toasts = kept
	return removed
}

// Dismiss removes the toast with the given ID.
func (q *Queue) Dismiss(id string) {
	for i, t := range q.toasts {
		if t.ID == id {
			q.toasts = append(q.toasts[:i], q.toasts[i+1:]...)
			return
		}
	}
}

// Clear drops every toast.
func (q *Queue) Clear() { q.toasts = nil }

// Visible returns a copy of the toasts on screen.
func (q *Queue) Visible() []Toast {
	out := make([]Toast, len(q.toasts))
	copy(out, q.toasts)
	return out
}

// Len returns the number of visible toasts.
func (q *Queue) Len() int { return len(q.toasts) }

func (q *Queue) log(n Notice) {
	attrs := []any{"level", n.Level.String(), "title", n.Title, "message", n.Message}
	switch n.Level {
	case Error:
		q.logger.Error("notification", attrs...)
	case Warning:
		q.logger.Warn("notification", attrs...)
	default:
		q.logger.Info("notification", attrs...)
	}
}
