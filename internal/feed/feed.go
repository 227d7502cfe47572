// Package feed delivers pushed sensor updates. A Feed is a subscription to
// one logical path that streams readings together with the health of the
// link to the backend.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/luki/dhtwatch/internal/sensor"
)

// Kind tells what an Event carries.
type Kind int

const (
	// KindReading carries a decoded sample.
	KindReading Kind = iota
	// KindEmpty reports that the path currently holds no data.
	KindEmpty
	// KindLink reports a change in backend reachability.
	KindLink
	// KindError reports a subscription failure.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindReading:
		return "reading"
	case KindEmpty:
		return "empty"
	case KindLink:
		return "link"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is one item on a subscription channel.
type Event struct {
	Kind      Kind
	Reading   sensor.Reading // KindReading
	Connected bool           // KindLink
	Err       error          // KindError
	At        time.Time
}

// Feed is the subscribe/unsubscribe capability the live dashboard needs.
// The returned channel is closed after Unsubscribe.
type Feed interface {
	Subscribe(ctx context.Context) (<-chan Event, error)
	Unsubscribe()
}

// decodePayload turns a message body into an event. An empty body or a
// JSON null means the path holds no data.
func decodePayload(payload []byte) (Event, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Event{Kind: KindEmpty}, nil
	}
	var r sensor.Reading
	if err := json.Unmarshal(trimmed, &r); err != nil {
		return Event{}, err
	}
	return Event{Kind: KindReading, Reading: r}, nil
}
