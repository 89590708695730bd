// Package settings implements the operations behind the configuration web
// interface. Every mutation reads the current venue file, applies the change,
// writes it back durably and then asks the announcer to reload.
package settings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/announcer/internal/colorlookup"
	"github.com/eugenenazirov/announcer/internal/metrics"
	"github.com/eugenenazirov/announcer/internal/restart"
	"github.com/eugenenazirov/announcer/internal/speech"
	"github.com/eugenenazirov/announcer/internal/storage"
	"github.com/eugenenazirov/announcer/internal/venue"
)

// ErrRestartFailed is returned when the configuration was written but the
// announcer could not be told to reload it.
var ErrRestartFailed = errors.New("configuration saved but the announcer could not be restarted")

// Speaker plays text immediately.
type Speaker interface {
	Speak(ctx context.Context, u speech.Utterance) error
}

// LookupOpener returns the color lookup for the configured database.
type LookupOpener func(d venue.Database) (colorlookup.Lookup, error)

// Option configures a Service.
type Option func(*Service)

// WithSpeaker enables instant announcements.
func WithSpeaker(speaker Speaker) Option {
	return func(s *Service) {
		if speaker != nil {
			s.speaker = speaker
		}
	}
}

// WithLookupOpener sets how the current color is looked up.
func WithLookupOpener(open LookupOpener) Option {
	return func(s *Service) {
		if open != nil {
			s.openLookup = open
		}
	}
}

// WithMetrics records config writes and restarts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for color lookups.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// Service serializes read-modify-write cycles on the venue configuration.
type Service struct {
	store      storage.Storage
	restarter  restart.Restarter
	speaker    Speaker
	openLookup LookupOpener
	metrics    *metrics.Metrics
	logger     *zap.Logger
	clock      func() time.Time

	mu sync.Mutex
}

// New creates a Service persisting to store and restarting through restarter.
func New(store storage.Storage, restarter restart.Restarter, opts ...Option) *Service {
	s := &Service{
		store:      store,
		restarter:  restarter,
		speaker:    speech.Unavailable{},
		openLookup: StaticLookup,
		logger:     zap.NewNop(),
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.restarter == nil {
		s.restarter = restart.Noop{}
	}
	if s.metrics == nil {
		s.metrics = metrics.NewNop()
	}
	return s
}

// StaticLookup is the LookupOpener used when no color database is reachable:
// every lookup yields colorlookup.ErrNoColor.
func StaticLookup(venue.Database) (colorlookup.Lookup, error) {
	return colorlookup.Static{}, nil
}

// State returns the current configuration. A missing file yields the defaults.
func (s *Service) State() (venue.Config, error) {
	return storage.LoadOrDefault(s.store)
}

// ColorData returns the color the announcer would read out now, or nil when
// none is available.
func (s *Service) ColorData(ctx context.Context, cfg venue.Config) *colorlookup.Result {
	lookup, err := s.openLookup(cfg.Database)
	if err != nil {
		s.logger.Warn("color lookup unavailable", zap.Error(err))
		return nil
	}
	if c, ok := lookup.(io.Closer); ok {
		defer c.Close()
	}

	res, err := lookup.Lookup(ctx, s.clock())
	if err != nil {
		if !errors.Is(err, colorlookup.ErrNoColor) {
			s.logger.Warn("color lookup failed", zap.Error(err))
		}
		return nil
	}
	return &res
}

// AddScheduleEntry schedules type at time, replacing any entry at that time.
func (s *Service) AddScheduleEntry(ctx context.Context, rawTime, rawType string) (venue.ScheduleEntry, error) {
	if strings.TrimSpace(rawTime) == "" || strings.TrimSpace(rawType) == "" {
		return venue.ScheduleEntry{}, &venue.ValidationError{Reason: "time and type are required"}
	}
	at, err := venue.ParseClock(rawTime)
	if err != nil {
		return venue.ScheduleEntry{}, err
	}
	kind, err := venue.ParseKind(rawType)
	if err != nil {
		return venue.ScheduleEntry{}, err
	}
	entry := venue.ScheduleEntry{Time: at, Kind: kind}

	err = s.mutate(ctx, "add_time", func(cfg *venue.Config) error {
		if _, err := cfg.ResolveTemplate(kind); err != nil {
			return err
		}
		cfg.Schedule[at] = kind
		return nil
	})
	if err != nil {
		return venue.ScheduleEntry{}, err
	}
	s.logger.Info("schedule entry added", zap.String("time", at.String()), zap.String("type", kind.String()))
	return entry, nil
}

// DeleteScheduleEntry removes the entry at time.
func (s *Service) DeleteScheduleEntry(ctx context.Context, rawTime string) error {
	if strings.TrimSpace(rawTime) == "" {
		return venue.Missing("time")
	}
	at, err := venue.ParseClock(rawTime)
	if err != nil {
		return err
	}

	err = s.mutate(ctx, "delete_time", func(cfg *venue.Config) error {
		if _, ok := cfg.Schedule[at]; !ok {
			return fmt.Errorf("schedule entry %s: %w", at, venue.ErrNotFound)
		}
		delete(cfg.Schedule, at)
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("schedule entry deleted", zap.String("time", at.String()))
	return nil
}

// AddCustomType creates or replaces a custom type and returns its sanitized name.
func (s *Service) AddCustomType(ctx context.Context, name, template string) (string, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(template) == "" {
		return "", &venue.ValidationError{Reason: "name and template are required"}
	}
	clean := venue.SanitizeTypeName(name)

	err := s.mutate(ctx, "add_custom_type", func(cfg *venue.Config) error {
		cfg.CustomTypes[clean] = strings.TrimSpace(template)
		return nil
	})
	if err != nil {
		return "", err
	}
	s.logger.Info("custom type added", zap.String("name", clean))
	return clean, nil
}

// DeleteCustomType removes a custom type and every schedule entry using it.
// It returns the number of schedule entries removed.
func (s *Service) DeleteCustomType(ctx context.Context, name string) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, venue.Missing("name")
	}

	removed := 0
	err := s.mutate(ctx, "delete_custom_type", func(cfg *venue.Config) error {
		if _, ok := cfg.CustomTypes[name]; !ok {
			return fmt.Errorf("custom type %q: %w", name, venue.ErrNotFound)
		}
		delete(cfg.CustomTypes, name)
		kind := venue.CustomKind(name)
		for at, k := range cfg.Schedule {
			if k == kind {
				delete(cfg.Schedule, at)
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("custom type deleted", zap.String("name", name), zap.Int("entries_removed", removed))
	return removed, nil
}

// SaveAll replaces the configuration with the submitted form.
func (s *Service) SaveAll(ctx context.Context, form Form) error {
	err := s.mutate(ctx, "save_config", func(cfg *venue.Config) error {
		next, err := form.apply(*cfg)
		if err != nil {
			return err
		}
		*cfg = next
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("configuration saved")
	return nil
}

// PlayInstant speaks text now with the configured voice, bypassing the schedule.
func (s *Service) PlayInstant(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return venue.Missing("text")
	}
	cfg, err := s.State()
	if err != nil {
		return err
	}
	return s.speaker.Speak(ctx, speech.Utterance{
		Text:   text,
		Voice:  cfg.TTS.VoiceID,
		Format: cfg.TTS.OutputFormat,
	})
}

// mutate runs one read-modify-write cycle. Nothing is written when change
// fails; the announcer is restarted only after a successful write.
func (s *Service) mutate(ctx context.Context, op string, change func(cfg *venue.Config) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := storage.LoadOrDefault(s.store)
	if err != nil {
		return fmt.Errorf("load venue config: %w", err)
	}
	if err := change(&cfg); err != nil {
		return err
	}

	err = s.store.Save(cfg)
	s.metrics.ConfigWrite(op, err)
	if err != nil {
		s.logger.Error("failed to save venue config", zap.String("op", op), zap.Error(err))
		return err
	}

	err = s.restarter.Restart(ctx)
	s.metrics.RestartSignal(err)
	if err != nil {
		s.logger.Error("failed to restart announcer", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrRestartFailed, err)
	}
	return nil
}
