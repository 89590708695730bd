package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/announcer/internal/announcer"
	"github.com/eugenenazirov/announcer/internal/config"
	"github.com/eugenenazirov/announcer/internal/metrics"
	"github.com/eugenenazirov/announcer/internal/restart"
	"github.com/eugenenazirov/announcer/internal/storage"
	"github.com/eugenenazirov/announcer/internal/venue"
)

// Announcer is the announcer process: it owns the PID file the web interface
// signals and replaces its loop on every reload.
type Announcer struct {
	runner        *announcer.Runner
	pidFile       *restart.PIDFile
	metricsServer *http.Server
	reload        chan struct{}
	logger        *zap.Logger
	shutdownGrace time.Duration
}

// NewAnnouncer wires the announcer from the provided configuration.
func NewAnnouncer(cfg config.Config, logger *zap.Logger) (*Announcer, error) {
	speaker, err := NewSpeaker(cfg, logger)
	if err != nil {
		return nil, err
	}
	return newAnnouncer(cfg, speaker, logger), nil
}

func newAnnouncer(cfg config.Config, speaker announcer.Speaker, logger *zap.Logger) *Announcer {
	store := storage.NewFileStorage(cfg.VenueConfig, storage.WithLogger(logger))
	registry := NewRegistry()
	m := metrics.New(registry)
	openLookup := NewLookupOpener(cfg.Announcer, logger)

	factory := func(vc venue.Config) (*announcer.Loop, error) {
		lookup, err := openLookup(vc.Database)
		if err != nil {
			return nil, fmt.Errorf("open color lookup: %w", err)
		}
		return announcer.New(vc, speaker, lookup,
			announcer.WithPollInterval(cfg.Announcer.PollInterval),
			announcer.WithMissedTolerance(cfg.Announcer.MissedTolerance),
			announcer.WithColorFallback(cfg.Announcer.ColorFallback),
			announcer.WithMetrics(m),
			announcer.WithLogger(logger),
		), nil
	}

	reload := make(chan struct{}, 1)
	a := &Announcer{
		runner:        announcer.NewRunner(store.Load, factory, reload, logger),
		pidFile:       restart.NewPIDFile(cfg.Announcer.PIDFile),
		reload:        reload,
		logger:        logger,
		shutdownGrace: cfg.ShutdownGracePeriod,
	}
	if cfg.Announcer.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", metrics.Handler(registry))
		a.metricsServer = &http.Server{
			Addr:              cfg.Announcer.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		}
	}
	return a
}

// Reload asks the running loop to re-read the venue configuration.
// Requests made while one is pending are merged.
func (a *Announcer) Reload() {
	select {
	case a.reload <- struct{}{}:
	default:
	}
}

// PIDFile returns the PID file the announcer owns while running.
func (a *Announcer) PIDFile() *restart.PIDFile {
	return a.pidFile
}

// Run claims the PID file and plays announcements until ctx is cancelled.
func (a *Announcer) Run(ctx context.Context) error {
	if err := a.pidFile.Acquire(); err != nil {
		return fmt.Errorf("claim PID file: %w", err)
	}
	defer func() {
		if err := a.pidFile.Remove(); err != nil {
			a.logger.Warn("failed to remove PID file", zap.String("path", a.pidFile.Path()), zap.Error(err))
		}
	}()
	a.logger.Info("announcer started", zap.String("pid_file", a.pidFile.Path()))

	if a.metricsServer != nil {
		go func() {
			a.logger.Info("metrics listening", zap.String("addr", a.metricsServer.Addr))
			if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server error", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownGrace)
			defer cancel()
			if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("metrics server shutdown failed", zap.Error(err))
			}
		}()
	}

	return a.runner.Run(ctx)
}
