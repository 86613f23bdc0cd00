package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charleschow/deskcards/internal/config"
	"github.com/charleschow/deskcards/internal/process"
	"github.com/charleschow/deskcards/internal/telemetry"
)

func main() {
	cfg := config.Load()
	telemetry.Init(telemetry.ParseLogLevel(cfg.LogLevel))
	telemetry.Infof("Starting deskcards")

	// ── Device ──────────────────────────────────────────────────
	dev, err := process.New(cfg, process.Options{In: os.Stdin})
	if err != nil {
		telemetry.Errorf("Startup failed: %v", err)
		os.Exit(1)
	}
	defer dev.Close()

	if cfg.WeatherAPIKey == "" {
		telemetry.Warnf("WEATHER_API_KEY not set, weather cards will show errors")
	}
	if cfg.MirrorAddr != "" {
		telemetry.Infof("Event mirror on %q", cfg.MirrorAddr)
	}

	// ── Run ─────────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- dev.Run(ctx) }()

	// ── Shutdown ────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		telemetry.Infof("Shutting down...")
		cancel()
		err = <-errCh
	case err = <-errCh:
	}
	if err != nil {
		telemetry.Errorf("Device stopped: %v", err)
	}

	telemetry.Infof("Shutdown complete  events=%d  dropped=%d  requests=%d  fetch_errors=%d  renders=%d  fetch_p99=%s",
		telemetry.Metrics.EventsProcessed.Value(),
		telemetry.Metrics.EventsDropped.Value(),
		telemetry.Metrics.RequestsServed.Value(),
		telemetry.Metrics.FetchErrors.Value(),
		telemetry.Metrics.Renders.Value(),
		telemetry.Metrics.FetchLatency.P99(),
	)
}
