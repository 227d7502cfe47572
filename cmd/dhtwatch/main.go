package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/luki/dhtwatch/internal/api"
	"github.com/luki/dhtwatch/internal/config"
	"github.com/luki/dhtwatch/internal/dashboard"
	"github.com/luki/dhtwatch/internal/feed"
	"github.com/luki/dhtwatch/internal/locale"
	"github.com/luki/dhtwatch/internal/logging"
	"github.com/luki/dhtwatch/internal/poller"
	"github.com/luki/dhtwatch/internal/sensor"
	"github.com/luki/dhtwatch/internal/status"
)

const appName = "dhtwatch"

// Set with -ldflags "-X main.version=...".
var version = "dev"

var (
	cfg     config.Config
	logger  *slog.Logger
	logFile *os.File

	apiURL   string
	broker   string
	interval time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "dhtwatch",
	Short: "Terminal dashboard for a DHT temperature/humidity sensor",
	Long: `dhtwatch shows the readings of one remote DHT sensor.

  live   follows the realtime MQTT feed; the sensor counts as offline when
         its last sample is older than STALE_AFTER
  poll   fetches /api/current and /api/stats from the REST backend every
         POLL_INTERVAL, or immediately on 'r'

Configuration comes from the environment (APP_ENV, LOG_LEVEL, FEED_*, API_*,
TEMP_HIGH, ...). Logs go to LOG_FILE since the terminal belongs to the UI.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		c, err := config.LoadFromEnv()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if err := applyFlags(cmd, &c); err != nil {
			return err
		}
		cfg = c

		logFile, err = logging.OpenFile(cfg.LogFile)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		logger = logging.New(cfg, logFile, version, appName)
		slog.SetDefault(logger)

		logger.Info("starting",
			"command", cmd.Name(),
			"version", version,
			"env", cfg.AppEnv,
			"log_level", cfg.LogLevel.String(),
		)
		return nil
	},
}

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Follow the realtime MQTT feed",
	RunE:  runLive,
}

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll the REST backend",
	RunE:  runPoll,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", appName, version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "REST backend base URL (overrides API_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&broker, "broker", "", "MQTT broker host[:port] (overrides FEED_BROKER/FEED_PORT)")
	pollCmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (overrides POLL_INTERVAL)")

	rootCmd.AddCommand(liveCmd, pollCmd, versionCmd)
}

func main() {
	os.Exit(run())
}

// run executes the command tree. Cobra skips post-run hooks when a command
// fails, so the log file is closed here instead.
func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	defer func() { closeLog(err) }()

	err = rootCmd.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// closeLog records the exit and closes the log file, if one was opened.
func closeLog(err error) {
	if logFile == nil {
		return
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("shutting down", "error", err)
	} else {
		logger.Info("shutting down")
	}
	_ = logFile.Close()
	logFile = nil
}

// applyFlags lets explicitly set flags win over the environment.
func applyFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("api-url") {
		u := strings.TrimRight(strings.TrimSpace(apiURL), "/")
		if u == "" {
			return fmt.Errorf("--api-url must not be empty")
		}
		c.APIBaseURL = u
	}
	if flags.Changed("broker") {
		host, port, err := parseBroker(broker, c.FeedPort)
		if err != nil {
			return err
		}
		c.FeedBroker, c.FeedPort = host, port
	}
	if flags.Changed("interval") {
		if interval <= 0 {
			return fmt.Errorf("--interval must be > 0, got %s", interval)
		}
		c.PollInterval = interval
	}
	return nil
}

// parseBroker accepts "host" or "host:port".
func parseBroker(s string, defPort int) (string, int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", 0, fmt.Errorf("--broker must not be empty")
	}
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		if strings.Contains(err.Error(), "missing port") {
			return s, defPort, nil
		}
		return "", 0, fmt.Errorf("invalid --broker %q: %w", s, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("invalid --broker port %q", portStr)
	}
	return host, port, nil
}

func thresholds() sensor.Thresholds {
	return sensor.Thresholds{
		TempHigh:     cfg.TempHigh,
		TempLow:      cfg.TempLow,
		HumidityHigh: cfg.HumidityHigh,
	}
}

func trackerOptions(mode status.Mode) status.Options {
	return status.Options{
		Mode:       mode,
		StaleAfter: cfg.StaleAfter,
		LostAfter:  cfg.LostAfter,
		Cooldown:   cfg.AlertCooldown,
		Thresholds: thresholds(),
	}
}

func dashboardOptions() dashboard.Options {
	return dashboard.Options{
		Thresholds: thresholds(),
		Formatter:  locale.New(cfg.Locale, time.Local),
		ToastTTL:   cfg.ToastTTL,
		CheckEvery: cfg.StatusCheckInterval,
		PollEvery:  cfg.PollInterval,
		Logger:     logger,
	}
}

func runLive(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	f := feed.NewMQTT(feed.OptionsFromConfig(cfg), logger)
	defer f.Unsubscribe()

	logger.Info("live dashboard",
		"broker", cfg.FeedBroker,
		"port", cfg.FeedPort,
		"topic", cfg.FeedTopic,
		"client_id", cfg.FeedClientID,
	)

	tr := status.New(trackerOptions(status.AgeBased))
	return runProgram(ctx, dashboard.NewLive(ctx, f, tr, dashboardOptions()))
}

func runPoll(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	client := api.New(cfg.APIBaseURL, cfg.APITimeout, logger)
	refresher := poller.New(client, logger)

	logger.Info("poll dashboard",
		"api", cfg.APIBaseURL,
		"interval", cfg.PollInterval,
	)

	tr := status.New(trackerOptions(status.SuccessBased))
	return runProgram(ctx, dashboard.NewPoll(ctx, refresher, client, tr, dashboardOptions()))
}

// runProgram runs the TUI until the user quits or ctx is canceled.
func runProgram(ctx context.Context, model tea.Model) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(model, tea.WithAltScreen())
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("run dashboard: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		p.Quit()
		return nil
	})

	return g.Wait()
}
