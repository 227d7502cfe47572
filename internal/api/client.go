// Package api is a client for the sensor's REST backend:
// GET /api/current, GET /api/stats and GET /api/history.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/luki/dhtwatch/internal/sensor"
)

// ErrNoReading is returned when /api/current answers success=false, which
// the backend does when the sensor could not be read.
var ErrNoReading = errors.New("backend has no current reading")

// StatsError carries the {"error": "..."} body of /api/stats.
type StatsError struct {
	Message string
}

func (e *StatsError) Error() string {
	return "stats unavailable: " + e.Message
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.URL, e.StatusCode, e.Body)
}

// Client reads the sensor backend's REST endpoints.
type Client struct {
	base   string
	h      *http.Client
	logger *slog.Logger
}

// New creates a client for the backend rooted at base, e.g.
// "http://raspberrypi.local:5000".
func New(base string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		base:   base,
		h:      &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type currentResponse struct {
	Success *bool `json:"success"`
}

// Current fetches the latest reading.
func (c *Client) Current(ctx context.Context) (sensor.Reading, error) {
	body, err := c.get(ctx, "/api/current")
	if err != nil {
		return sensor.Reading{}, err
	}

	var head currentResponse
	if err := json.Unmarshal(body, &head); err != nil {
		return sensor.Reading{}, fmt.Errorf("decode current: %w", err)
	}
	if head.Success != nil && !*head.Success {
		return sensor.Reading{}, ErrNoReading
	}

	var r sensor.Reading
	if err := json.Unmarshal(body, &r); err != nil {
		return sensor.Reading{}, fmt.Errorf("decode current: %w", err)
	}
	return r, nil
}

type statsResponse struct {
	sensor.Stats
	Error string `json:"error"`
}

// Stats fetches the aggregate statistics. A body carrying an error field
// yields a *StatsError.
func (c *Client) Stats(ctx context.Context) (sensor.Stats, error) {
	body, err := c.get(ctx, "/api/stats")
	if err != nil {
		return sensor.Stats{}, err
	}

	var resp statsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return sensor.Stats{}, fmt.Errorf("decode stats: %w", err)
	}
	if resp.Error != "" {
		return sensor.Stats{}, &StatsError{Message: resp.Error}
	}
	return resp.Stats, nil
}

// History fetches the backend's recent readings, oldest first. Entries
// the backend marked unsuccessful are skipped.
func (c *Client) History(ctx context.Context) ([]sensor.Reading, error) {
	body, err := c.get(ctx, "/api/history")
	if err != nil {
		return nil, err
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}

	out := make([]sensor.Reading, 0, len(raw))
	for _, item := range raw {
		var head currentResponse
		if err := json.Unmarshal(item, &head); err == nil && head.Success != nil && !*head.Success {
			continue
		}
		var r sensor.Reading
		if err := json.Unmarshal(item, &r); err != nil {
			c.logger.Debug("skipping history entry", "error", err)
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	url := c.base + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.h.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	c.logger.Debug("api request", "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
