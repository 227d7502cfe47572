package notify

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestQueue_PruneExpires(t *testing.T) {
	q := NewQueue(5*time.Second, quietLogger())
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	q.Push(base, Notice{Level: Warning, Title: "Sensor offline"})
	q.Push(base.Add(3*time.Second), Notice{Level: Success, Title: "Sensor back online"})
	require.Equal(t, 2, q.Len())

	assert.False(t, q.Prune(base.Add(4*time.Second)))
	assert.True(t, q.Prune(base.Add(5*time.Second)))

	visible := q.Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, "Sensor back online", visible[0].Title)

	assert.True(t, q.Prune(base.Add(8*time.Second)))
	assert.Zero(t, q.Len())
}

func TestQueue_KeepsNewest(t *testing.T) {
	q := NewQueue(time.Minute, quietLogger())
	now := time.Now()
	for _, title := range []string{"a", "b", "c", "d", "e", "f"} {
		q.Push(now, Notice{Title: title})
	}

	visible := q.Visible()
	require.Len(t, visible, maxVisible)
	assert.Equal(t, "c", visible[0].Title)
	assert.Equal(t, "f", visible[len(visible)-1].Title)
}

func TestQueue_Dismiss(t *testing.T) {
	q := NewQueue(time.Minute, quietLogger())
	now := time.Now()
	q.Push(now, Notice{Title: "one"}, Notice{Title: "two"})

	first := q.Visible()[0]
	assert.NotEmpty(t, first.ID)
	q.Dismiss(first.ID)

	visible := q.Visible()
	require.Len(t, visible, 1)
	assert.Equal(t, "two", visible[0].Title)

	q.Clear()
	assert.Zero(t, q.Len())
}
