package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/luki/dhtwatch/internal/api"
	"github.com/luki/dhtwatch/internal/sensor"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSource struct {
	mu       sync.Mutex
	calls    []string
	current  sensor.Reading
	curErr   error
	stats    sensor.Stats
	statsErr error
}

func (f *fakeSource) Current(ctx context.Context) (sensor.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "current")
	return f.current, f.curErr
}

func (f *fakeSource) Stats(ctx context.Context) (sensor.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "stats")
	return f.stats, f.statsErr
}

func TestRefresh_OrderAndResult(t *testing.T) {
	src := &fakeSource{
		current: sensor.Reading{Temperature: 22, Humidity: 45, Timestamp: 100},
		stats:   sensor.Stats{ReadingsCount: 3},
	}
	r := New(src, quietLogger())

	res, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"current", "stats"}, src.calls)
	assert.Equal(t, src.current, res.Reading)
	assert.True(t, res.StatsOK)
	assert.Equal(t, 3, res.Stats.ReadingsCount)
	assert.False(t, r.Busy())
	assert.EqualValues(t, 1, r.Cycles())
}

func TestRefresh_CurrentFailureSkipsStats(t *testing.T) {
	boom := errors.New("connection refused")
	src := &fakeSource{curErr: boom}
	r := New(src, quietLogger())

	_, err := r.Refresh(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"current"}, src.calls)
}

func TestRefresh_StatsFailureIsNotFatal(t *testing.T) {
	src := &fakeSource{
		current:  sensor.Reading{Temperature: 22, Humidity: 45, Timestamp: 100},
		statsErr: &api.StatsError{Message: "No data available"},
	}
	r := New(src, quietLogger())

	res, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, res.StatsOK)
	var se *api.StatsError
	assert.ErrorAs(t, res.StatsErr, &se)
	assert.Equal(t, 22.0, res.Reading.Temperature)
}

func TestRefresh_ConcurrentTriggersMakeOneCallPair(t *testing.T) {
	var currentCalls, statsCalls atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/current", func(w http.ResponseWriter, r *http.Request) {
		if currentCalls.Add(1) == 1 {
			close(entered)
		}
		<-release
		_, _ = w.Write([]byte(`{"success": true, "temperature": 20, "humidity": 40, "timestamp": 1}`))
	})
	mux.HandleFunc("GET /api/stats", func(w http.ResponseWriter, r *http.Request) {
		statsCalls.Add(1)
		_, _ = w.Write([]byte(`{"temperature": {"min": 1, "max": 2, "avg": 1.5}, "humidity": {"min": 1, "max": 2, "avg": 1.5}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := New(api.New(srv.URL, 5*time.Second, quietLogger()), quietLogger())

	first := make(chan error, 1)
	go func() {
		_, err := r.Refresh(context.Background())
		first <- err
	}()
	<-entered
	assert.True(t, r.Busy())

	var wg sync.WaitGroup
	var busy atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Refresh(context.Background()); errors.Is(err, ErrBusy) {
				busy.Add(1)
			}
		}()
	}
	wg.Wait()
	close(release)

	require.NoError(t, <-first)
	assert.EqualValues(t, 8, busy.Load())
	assert.EqualValues(t, 1, currentCalls.Load())
	assert.EqualValues(t, 1, statsCalls.Load())

	// The guard is released afterwards.
	_, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, currentCalls.Load())
}
