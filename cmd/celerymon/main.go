// Command celerymon connects to a task-queue broker, runs the background
// refresh loop, and prints each published snapshot as structured output.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/celerymon/celerymon"
	"github.com/celerymon/celerymon/config"
	"github.com/celerymon/celerymon/monitor"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "celerymon:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to celerymon.yaml (optional)")
		brokerURL  = flag.String("url", "", "broker URL, overrides the config file")
		interval   = flag.Duration("interval", 0, "refresh interval, overrides the config file")
		once       = flag.Bool("once", false, "run a single refresh cycle and exit")
	)
	flag.Parse()

	cfg := &config.Config{}
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	opts := cfg.BrokerOptions()
	opts.Logger = logger
	if *brokerURL != "" {
		opts.URL = *brokerURL
	}

	refreshInterval := cfg.Monitor.GetRefreshInterval()
	if *interval > 0 {
		refreshInterval = *interval
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry := setupTelemetry(logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = shutdownTelemetry(shutdownCtx)
	}()

	b, err := celerymon.Connect(ctx, opts)
	if err != nil {
		return err
	}
	defer b.Close()

	store := monitor.NewStore()
	refresher := monitor.NewRefresher(b, store, monitor.Options{
		Interval: refreshInterval,
		Logger:   logger,
	})

	logger.Info("connected", "url", opts.URL, "interval", refreshInterval)

	if *once {
		if err := refresher.RefreshOnce(ctx); err != nil {
			logger.Warn("refresh incomplete", "error", err)
		}
		return printSnapshot(store)
	}

	go refresher.Run(ctx)

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case <-ticker.C:
			if err := printSnapshot(store); err != nil {
				return err
			}
		}
	}
}

func printSnapshot(store *monitor.Store) error {
	snap := store.Load()
	out, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = fmt.Println(string(out))
	return err
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.GetLevel() {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.GetFormat() == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
