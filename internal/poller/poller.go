// Package poller runs the pull variant's fetch cycle: current reading
// first, then the aggregate statistics. At most one cycle is in flight;
// triggers that arrive meanwhile are dropped, not queued.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/luki/dhtwatch/internal/sensor"
)

// ErrBusy is returned when a cycle is already running.
var ErrBusy = errors.New("refresh already in progress")

// Source is the backend the cycle reads from.
type Source interface {
	Current(ctx context.Context) (sensor.Reading, error)
	Stats(ctx context.Context) (sensor.Stats, error)
}

// Result is the outcome of one successful cycle. A stats failure does not
// fail the cycle; it is reported in StatsErr.
type Result struct {
	Reading  sensor.Reading
	Stats    sensor.Stats
	StatsOK  bool
	StatsErr error
	Started  time.Time
	Elapsed  time.Duration
}

// Refresher runs fetch cycles against a Source, at most one at a time.
type Refresher struct {
	src    Source
	sem    *semaphore.Weighted
	busy   atomic.Bool
	cycles atomic.Int64
	logger *slog.Logger
}

// New returns a Refresher reading from src.
func New(src Source, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		src:    src,
		sem:    semaphore.NewWeighted(1),
		logger: logger,
	}
}

// Refresh runs one cycle, or returns ErrBusy without touching the network
// if another cycle holds the guard.
func (r *Refresher) Refresh(ctx context.Context) (Result, error) {
	if !r.sem.TryAcquire(1) {
		r.logger.Debug("refresh dropped, cycle in flight")
		return Result{}, ErrBusy
	}
	r.busy.Store(true)
	defer func() {
		r.busy.Store(false)
		r.sem.Release(1)
	}()

	n := r.cycles.Add(1)
	res := Result{Started: time.Now()}

	reading, err := r.src.Current(ctx)
	if err != nil {
		r.logger.Warn("fetch current failed", "cycle", n, "error", err)
		return Result{}, fmt.Errorf("fetch current: %w", err)
	}
	res.Reading = reading

	stats, err := r.src.Stats(ctx)
	if err != nil {
		r.logger.Warn("fetch stats failed", "cycle", n, "error", err)
		res.StatsErr = err
	} else {
		res.Stats = stats
		res.StatsOK = true
	}

	res.Elapsed = time.Since(res.Started)
	r.logger.Debug("refresh complete",
		"cycle", n,
		"temperature", reading.Temperature,
		"humidity", reading.Humidity,
		"stats_ok", res.StatsOK,
		"elapsed", res.Elapsed,
	)
	return res, nil
}

// Busy reports whether a cycle is running.
func (r *Refresher) Busy() bool { return r.busy.Load() }

// Cycles returns how many cycles have started.
func (r *Refresher) Cycles() int64 { return r.cycles.Load() }
