package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config returns the JSON production config used by both processes. Every
// entry carries the service name so the web interface and the announcer can
// be told apart in a shared journal.
func Config(level, service string) (zap.Config, error) {
	lvl := zapcore.InfoLevel
	if strings.TrimSpace(level) != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
			return zap.Config{}, fmt.Errorf("parse log level: %w", err)
		}
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.StacktraceKey = "stacktrace"
	if service != "" {
		cfg.InitialFields = map[string]any{"service": service}
	}
	return cfg, nil
}

// New builds a logger at level (debug, info, warn or error; empty means info).
// Stack traces are attached from error level up.
func New(level, service string) (*zap.Logger, error) {
	cfg, err := Config(level, service)
	if err != nil {
		return nil, err
	}

	logger, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
