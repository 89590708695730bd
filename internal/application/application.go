package application

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/eugenenazirov/announcer/internal/api"
	"github.com/eugenenazirov/announcer/internal/config"
	"github.com/eugenenazirov/announcer/internal/metrics"
	"github.com/eugenenazirov/announcer/internal/restart"
	"github.com/eugenenazirov/announcer/internal/settings"
	"github.com/eugenenazirov/announcer/internal/speech"
	"github.com/eugenenazirov/announcer/internal/storage"
)

// App encapsulates the web interface dependencies and HTTP server.
type App struct {
	storage storage.Storage
	service *settings.Service
	handler *api.Handler
	router  http.Handler
	logger  *zap.Logger
	server  *http.Server
}

// New initializes the web interface with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	store := storage.NewFileStorage(cfg.VenueConfig, storage.WithLogger(logger))

	restarter, err := restart.New(cfg.Restart.Mode, cfg.Restart.Command, cfg.Announcer.PIDFile, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure announcer restart: %w", err)
	}

	speaker, err := NewSpeaker(cfg, logger)
	if err != nil {
		// instant announcements are optional in the web interface
		logger.Warn("instant announcements disabled", zap.Error(err))
		speaker = speech.Unavailable{}
	}

	registry := NewRegistry()
	service := settings.New(store, restarter,
		settings.WithSpeaker(speaker),
		settings.WithLookupOpener(NewLookupOpener(cfg.Announcer, logger)),
		settings.WithMetrics(metrics.New(registry)),
		settings.WithLogger(logger),
	)

	handler := api.NewHandler(service, api.WithHandlerLogger(logger))
	router := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		api.WithMetricsHandler(metrics.Handler(registry)),
	)

	return &App{
		storage: store,
		service: service,
		handler: handler,
		router:  router,
		logger:  logger,
		server:  NewServer(cfg, router),
	}, nil
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.router
}
