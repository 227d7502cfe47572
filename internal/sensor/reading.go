// Package sensor holds the temperature/humidity values the dashboard
// displays. Readings and statistics are produced by the remote sensor and
// its backend; this package only decodes and classifies them.
package sensor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// BackendTimeLayout is the local-time layout the REST backend uses for
// string timestamps.
const BackendTimeLayout = "2006-01-02 15:04:05"

// Reading represents a single sample from the remote sensor.
type Reading struct {
	Temperature float64 `json:"temperature"` // Celsius
	Humidity    float64 `json:"humidity"`    // relative humidity, percent
	Timestamp   int64   `json:"timestamp"`   // unix seconds
}

// Time returns the sample time in the local zone.
func (r Reading) Time() time.Time {
	return time.Unix(r.Timestamp, 0)
}

// Age returns how old the sample is relative to now. Samples stamped in
// the future report zero age.
func (r Reading) Age(now time.Time) time.Duration {
	d := now.Sub(r.Time())
	if d < 0 {
		return 0
	}
	return d
}

type wireReading struct {
	Temperature *float64        `json:"temperature"`
	Humidity    *float64        `json:"humidity"`
	Timestamp   json.RawMessage `json:"timestamp"`
}

// UnmarshalJSON accepts the timestamp either as unix seconds (integer or
// float) or as a BackendTimeLayout string. Temperature and humidity must
// both be present.
func (r *Reading) UnmarshalJSON(data []byte) error {
	var w wireReading
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Temperature == nil || w.Humidity == nil {
		return fmt.Errorf("reading: temperature and humidity are required")
	}
	ts, err := parseTimestamp(w.Timestamp)
	if err != nil {
		return fmt.Errorf("reading: %w", err)
	}
	*r = Reading{Temperature: *w.Temperature, Humidity: *w.Humidity, Timestamp: ts}
	return nil
}

func parseTimestamp(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("timestamp is required")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(math.Floor(v)), nil
		}
		t, err := time.ParseInLocation(BackendTimeLayout, s, time.Local)
		if err != nil {
			return 0, fmt.Errorf("timestamp %q: %w", s, err)
		}
		return t.Unix(), nil
	}
	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("timestamp %s: %w", raw, err)
	}
	return int64(math.Floor(v)), nil
}

// Thresholds are the alert limits applied to new samples.
type Thresholds struct {
	TempHigh     float64
	TempLow      float64
	HumidityHigh float64
}

// DefaultThresholds match the stock dashboard: >35°C, <0°C, >80%.
var DefaultThresholds = Thresholds{TempHigh: 35, TempLow: 0, HumidityHigh: 80}

// Breach identifies which limit a reading crossed.
type Breach int

const (
	HighTemperature Breach = iota + 1
	LowTemperature
	HighHumidity
)

func (b Breach) String() string {
	switch b {
	case HighTemperature:
		return "high temperature"
	case LowTemperature:
		return "low temperature"
	case HighHumidity:
		return "high humidity"
	default:
		return "unknown"
	}
}

// Breaches returns every limit the reading crosses, in a stable order.
// Limits are strict: a reading equal to a limit is not a breach.
func (t Thresholds) Breaches(r Reading) []Breach {
	var out []Breach
	if r.Temperature > t.TempHigh {
		out = append(out, HighTemperature)
	}
	if r.Temperature < t.TempLow {
		out = append(out, LowTemperature)
	}
	if r.Humidity > t.HumidityHigh {
		out = append(out, HighHumidity)
	}
	return out
}
