// Package history keeps the recent readings in memory for the sparklines.
// Nothing is persisted; a restart starts from whatever the backend's
// history endpoint returns.
package history

import (
	"math"
	"time"

	"github.com/luki/dhtwatch/internal/sensor"
)

// Point is a single sample of one quantity.
type Point struct {
	Value float64
	Time  time.Time
}

// Series is a fixed-capacity ring of points for one quantity.
type Series struct {
	points   []Point
	capacity int
	min      float64
	peak     float64
}

// NewSeries returns an empty series holding at most capacity points.
func NewSeries(capacity int) *Series {
	if capacity < 1 {
		capacity = 1
	}
	return &Series{
		points:   make([]Point, 0, capacity),
		capacity: capacity,
		min:      math.MaxFloat64,
		peak:     -math.MaxFloat64,
	}
}

// Push appends a point, evicting the oldest when full.
func (s *Series) Push(v float64, t time.Time) {
	p := Point{Value: v, Time: t}
	if len(s.points) >= s.capacity {
		copy(s.points, s.points[1:])
		s.points[len(s.points)-1] = p
	} else {
		s.points = append(s.points, p)
	}

	if v < s.min {
		s.min = v
	}
	if v > s.peak {
		s.peak = v
	}
}

func (s *Series) Len() int { return len(s.points) }

// Min and Peak cover everything pushed since creation, including evicted
// points. Both return 0 on an empty series.
func (s *Series) Min() float64 {
	if len(s.points) == 0 {
		return 0
	}
	return s.min
}

func (s *Series) Peak() float64 {
	if len(s.points) == 0 {
		return 0
	}
	return s.peak
}

// Avg averages the retained points.
func (s *Series) Avg() float64 {
	if len(s.points) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range s.points {
		sum += p.Value
	}
	return sum / float64(len(s.points))
}

// LastNPoints returns up to n of the newest points, oldest first.
func (s *Series) LastNPoints(n int) []Point {
	if n <= 0 || len(s.points) == 0 {
		return nil
	}
	start := max(len(s.points)-n, 0)
	out := make([]Point, len(s.points[start:]))
	copy(out, s.points[start:])
	return out
}

// Recorder tracks temperature and humidity side by side. A reading is
// recorded once; repeats of the same timestamp are ignored, so a feed that
// replays its retained value or a poll that sees no new sample does not
// flatten the chart.
type Recorder struct {
	Temperature *Series
	Humidity    *Series
	last        int64
}

// NewRecorder returns a recorder whose series hold capacity points each.
func NewRecorder(capacity int) *Recorder {
	return &Recorder{
		Temperature: NewSeries(capacity),
		Humidity:    NewSeries(capacity),
	}
}

// Record adds r if it is newer than the last recorded reading.
func (rec *Recorder) Record(r sensor.Reading) bool {
	if rec.Temperature.Len() > 0 && r.Timestamp <= rec.last {
		return false
	}
	t := r.Time()
	rec.Temperature.Push(r.Temperature, t)
	rec.Humidity.Push(r.Humidity, t)
	rec.last = r.Timestamp
	return true
}

// Seed records a batch in order and returns how many were taken.
func (rec *Recorder) Seed(readings []sensor.Reading) int {
	n := 0
	for _, r := range readings {
		if rec.Record(r) {
			n++
		}
	}
	return n
}
