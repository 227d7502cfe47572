// Package config loads dhtwatch settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config is the runtime configuration read from the environment.
type Config struct {
	AppEnv   string
	LogLevel slog.Level
	LogFile  string

	// Push feed (MQTT broker standing in for the realtime database).
	FeedBroker   string
	FeedPort     int
	FeedClientID string
	FeedUsername string
	FeedPassword string
	FeedTopic    string

	// Polling backend.
	APIBaseURL   string
	APITimeout   time.Duration
	PollInterval time.Duration

	StaleAfter          time.Duration
	LostAfter           time.Duration
	StatusCheckInterval time.Duration
	AlertCooldown       time.Duration
	ToastTTL            time.Duration

	TempHigh     float64
	TempLow      float64
	HumidityHigh float64

	// Locale is a BCP 47 tag derived from LC_ALL or LANG, e.g. "en-US".
	Locale string
}

// LoadFromEnv reads Config from environment variables, applying defaults.
func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	logFile := strings.TrimSpace(os.Getenv("LOG_FILE"))
	if logFile == "" {
		logFile = defaultLogFile()
	}

	feedBroker := strings.TrimSpace(os.Getenv("FEED_BROKER"))
	if feedBroker == "" {
		feedBroker = "localhost"
	}

	feedPortStr := strings.TrimSpace(os.Getenv("FEED_PORT"))
	if feedPortStr == "" {
		feedPortStr = "1883"
	}
	feedPort, err := strconv.Atoi(feedPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid FEED_PORT %q: %w", feedPortStr, err)
	}
	if feedPort <= 0 || feedPort > 65535 {
		return Config{}, fmt.Errorf("FEED_PORT out of range: %d", feedPort)
	}

	feedClientID := strings.TrimSpace(os.Getenv("FEED_CLIENT_ID"))
	if feedClientID == "" {
		feedClientID = "dhtwatch-" + uuid.NewString()[:8]
	}

	feedTopic := strings.TrimSpace(os.Getenv("FEED_TOPIC"))
	if feedTopic == "" {
		feedTopic = "sensor_data"
	}

	apiBaseURL := strings.TrimRight(strings.TrimSpace(os.Getenv("API_BASE_URL")), "/")
	if apiBaseURL == "" {
		apiBaseURL = "http://localhost:5000"
	}

	apiTimeout, err := durationFromEnv("API_TIMEOUT", "10s")
	if err != nil {
		return Config{}, err
	}
	pollInterval, err := durationFromEnv("POLL_INTERVAL", "30s")
	if err != nil {
		return Config{}, err
	}
	staleAfter, err := durationFromEnv("STALE_AFTER", "30s")
	if err != nil {
		return Config{}, err
	}
	lostAfter, err := durationFromEnv("LOST_AFTER", "300s")
	if err != nil {
		return Config{}, err
	}
	if lostAfter < staleAfter {
		return Config{}, fmt.Errorf("LOST_AFTER (%v) must not be shorter than STALE_AFTER (%v)", lostAfter, staleAfter)
	}
	statusCheckInterval, err := durationFromEnv("STATUS_CHECK_INTERVAL", "5s")
	if err != nil {
		return Config{}, err
	}
	alertCooldown, err := durationFromEnv("ALERT_COOLDOWN", "30s")
	if err != nil {
		return Config{}, err
	}
	toastTTL, err := durationFromEnv("TOAST_TTL", "5s")
	if err != nil {
		return Config{}, err
	}

	tempHigh, err := floatFromEnv("TEMP_HIGH", 35)
	if err != nil {
		return Config{}, err
	}
	tempLow, err := floatFromEnv("TEMP_LOW", 0)
	if err != nil {
		return Config{}, err
	}
	humidityHigh, err := floatFromEnv("HUMIDITY_HIGH", 80)
	if err != nil {
		return Config{}, err
	}

	return Config{
		AppEnv:              appEnv,
		LogLevel:            level,
		LogFile:             logFile,
		FeedBroker:          feedBroker,
		FeedPort:            feedPort,
		FeedClientID:        feedClientID,
		FeedUsername:        strings.TrimSpace(os.Getenv("FEED_USERNAME")),
		FeedPassword:        os.Getenv("FEED_PASSWORD"),
		FeedTopic:           feedTopic,
		APIBaseURL:          apiBaseURL,
		APITimeout:          apiTimeout,
		PollInterval:        pollInterval,
		StaleAfter:          staleAfter,
		LostAfter:           lostAfter,
		StatusCheckInterval: statusCheckInterval,
		AlertCooldown:       alertCooldown,
		ToastTTL:            toastTTL,
		TempHigh:            tempHigh,
		TempLow:             tempLow,
		HumidityHigh:        humidityHigh,
		Locale:              localeFromEnv(),
	}, nil
}

func durationFromEnv(key, def string) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		s = def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, d)
	}
	return d, nil
}

func floatFromEnv(key string, def float64) (float64, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return v, nil
}

// localeFromEnv turns a POSIX locale such as "de_DE.UTF-8" into "de-DE".
func localeFromEnv() string {
	for _, key := range []string{"LC_ALL", "LANG"} {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" || v == "C" || v == "POSIX" {
			continue
		}
		if i := strings.IndexAny(v, ".@"); i >= 0 {
			v = v[:i]
		}
		return strings.ReplaceAll(v, "_", "-")
	}
	return "en-US"
}

func defaultLogFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "dhtwatch", "dhtwatch.log")
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
