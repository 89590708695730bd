package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/eugenenazirov/announcer/internal/application"
	"github.com/eugenenazirov/announcer/internal/config"
	"github.com/eugenenazirov/announcer/internal/logging"
)

var signalNotify = signal.Notify

func main() {
	_ = godotenv.Load()

	overrides, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(cfg.LogLevel, "announcer")
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	app, err := application.NewAnnouncer(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize announcer", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// registered before Run writes the PID file, so an early SIGHUP is never fatal
	sigs := notifySignals()
	go handleSignals(ctx, cancel, sigs, app.Reload, logger)

	if err := app.Run(ctx); err != nil {
		logger.Error("announcer stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func parseFlags(args []string) (*config.CLIOverrides, error) {
	kingpinApp := kingpin.New("announcer", "Announcer - speaks scheduled announcements from the venue configuration")
	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").String()
	venueConfig := kingpinApp.Flag("venue-config", "Path to the venue INI file").String()
	pidFile := kingpinApp.Flag("pid-file", "PID file signalled on configuration changes").String()
	metricsAddr := kingpinApp.Flag("metrics-addr", "Address serving Prometheus metrics (empty to disable)").String()
	logLevel := kingpinApp.Flag("log-level", "Log level (debug, info, warn, error)").String()
	player := kingpinApp.Flag("player", "Audio player (oto, command)").String()

	if _, err := kingpinApp.Parse(args); err != nil {
		return nil, err
	}

	overrides := &config.CLIOverrides{
		ConfigFile: *configFile,
	}
	setString := func(dst **string, v *string) {
		if *v != "" {
			*dst = v
		}
	}
	setString(&overrides.VenueConfig, venueConfig)
	setString(&overrides.PIDFile, pidFile)
	setString(&overrides.MetricsAddr, metricsAddr)
	setString(&overrides.LogLevel, logLevel)
	setString(&overrides.Player, player)
	return overrides, nil
}

func notifySignals() <-chan os.Signal {
	sigs := make(chan os.Signal, 1)
	signalNotify(sigs, syscall.SIGHUP, os.Interrupt, syscall.SIGTERM)
	return sigs
}

// handleSignals reloads on SIGHUP and cancels on SIGINT or SIGTERM.
func handleSignals(ctx context.Context, cancel context.CancelFunc, sigs <-chan os.Signal, reload func(), logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			if sig == syscall.SIGHUP {
				logger.Info("reload signal received")
				reload()
				continue
			}
			logger.Info("shutting down announcer", zap.String("signal", sig.String()))
			cancel()
			return
		}
	}
}
