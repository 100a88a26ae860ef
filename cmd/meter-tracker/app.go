package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/0xmhha/meter-tracker/pkg/config"
	"github.com/0xmhha/meter-tracker/pkg/logger"
	"github.com/0xmhha/meter-tracker/pkg/metrics"
	"github.com/0xmhha/meter-tracker/pkg/store"
	"github.com/0xmhha/meter-tracker/pkg/tracker"
)

// app holds the components every command needs.
type app struct {
	cfg      *config.Config
	log      logger.Logger
	loc      *time.Location
	handle   *store.Handle
	tracker  *tracker.Tracker
	registry *prometheus.Registry
}

// appOptions adjusts how the app is built for a command.
type appOptions struct {
	// logLevel overrides the configured level ("" keeps it).
	logLevel string

	// withMetrics registers collectors so metrics.listen can serve them.
	withMetrics bool
}

// newApp loads configuration and opens the store.
//
// An unavailable store is not an error: the tracker runs degraded and each
// command decides whether it can work without one.
func newApp(ctx context.Context, configPath string, opts appOptions) (*app, error) {
	cfg, err := config.NewLoader(configPath).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Logging.Level
	if opts.logLevel != "" {
		level = opts.logLevel
	}
	log := logger.New(logger.Config{
		Level:  level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	loc, err := cfg.TimeLocation()
	if err != nil {
		return nil, err
	}

	var (
		registry *prometheus.Registry
		rec      *metrics.Recorder
	)
	if opts.withMetrics && cfg.Metrics.Listen != "" {
		registry = prometheus.NewRegistry()
		rec = metrics.NewRecorder(registry)
	}

	handle := store.Open(ctx, store.Config{
		Backend: store.Backend(cfg.Storage.Backend),
		Path:    cfg.Storage.DBPath,
		DSN:     cfg.Storage.PostgresDSN,
		Timeout: cfg.Storage.Timeout,
	}, logger.Component(log, "store"))

	t := tracker.New(handle, tracker.Config{Location: loc}, logger.Component(log, "tracker"), rec)

	return &app{
		cfg:      cfg,
		log:      log,
		loc:      loc,
		handle:   handle,
		tracker:  t,
		registry: registry,
	}, nil
}

// serveMetrics exposes /metrics in the background when configured.
func (a *app) serveMetrics(ctx context.Context) {
	if a.registry == nil {
		return
	}

	log := logger.Component(a.log, "metrics")
	go func() {
		if err := metrics.Serve(ctx, a.cfg.Metrics.Listen, a.registry, log); err != nil {
			log.Error("metrics server failed", "error", err)
		}
	}()
}

// requireStore returns an error when the store could not be opened.
func (a *app) requireStore() error {
	return a.handle.Err()
}

// close releases the store.
func (a *app) close() {
	if err := a.handle.Close(); err != nil {
		a.log.Error("failed to close store", "error", err)
	}
}
