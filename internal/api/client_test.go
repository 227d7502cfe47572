package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luki/dhtwatch/internal/sensor"
)

func newServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for path, body := range routes {
		body := body
		mux.HandleFunc("GET "+path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCurrent(t *testing.T) {
	srv := newServer(t, map[string]string{
		"/api/current": `{"success": true, "temperature": 23.4, "humidity": 48.0, "timestamp": 1750000000}`,
	})
	c := New(srv.URL, time.Second, nil)

	got, err := c.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sensor.Reading{Temperature: 23.4, Humidity: 48, Timestamp: 1750000000}, got)
}

func TestCurrent_NoReading(t *testing.T) {
	srv := newServer(t, map[string]string{"/api/current": `{"success": false}`})
	c := New(srv.URL, time.Second, nil)

	_, err := c.Current(context.Background())
	assert.ErrorIs(t, err, ErrNoReading)
}

func TestCurrent_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "sensor busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	c := New(srv.URL, time.Second, nil)

	_, err := c.Current(context.Background())
	var se *StatusError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Contains(t, se.Body, "sensor busy")
}

func TestCurrent_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, time.Second, nil).Current(context.Background())
	assert.Error(t, err)
}

func TestStats(t *testing.T) {
	srv := newServer(t, map[string]string{
		"/api/stats": `{
			"temperature": {"current": 24.0, "min": 19.5, "max": 26.1, "avg": 22.8},
			"humidity": {"current": 51.0, "min": 40.0, "max": 63.2, "avg": 50.1},
			"readings_count": 12,
			"last_updated": "2025-06-01 12:30:00"
		}`,
	})
	c := New(srv.URL, time.Second, nil)

	got, err := c.Stats(context.Background())
	require.NoError(t, err)

	want := sensor.Stats{
		Temperature:   sensor.Summary{Current: 24, Min: 19.5, Max: 26.1, Avg: 22.8},
		Humidity:      sensor.Summary{Current: 51, Min: 40, Max: 63.2, Avg: 50.1},
		ReadingsCount: 12,
		LastUpdated:   "2025-06-01 12:30:00",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Stats mismatch (-want +got):\n%s", diff)
	}
}

func TestStats_ErrorBody(t *testing.T) {
	srv := newServer(t, map[string]string{"/api/stats": `{"error": "No data available"}`})
	c := New(srv.URL, time.Second, nil)

	_, err := c.Stats(context.Background())
	var se *StatsError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "No data available", se.Message)
}

func TestHistory(t *testing.T) {
	srv := newServer(t, map[string]string{
		"/api/history": `[
			{"success": true, "temperature": 21.0, "humidity": 40.0, "timestamp": 1750000000},
			{"success": false},
			{"success": true, "temperature": 21.5, "humidity": 41.0, "timestamp": 1750000300}
		]`,
	})
	c := New(srv.URL, time.Second, nil)

	got, err := c.History(context.Background())
	require.NoError(t, err)
	want := []sensor.Reading{
		{Temperature: 21, Humidity: 40, Timestamp: 1750000000},
		{Temperature: 21.5, Humidity: 41, Timestamp: 1750000300},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("History mismatch (-want +got):\n%s", diff)
	}
}

func TestCurrent_ContextCanceled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(srv.URL, time.Second, nil).Current(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
