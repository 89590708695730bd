// Package announcer runs the loop that waits for the next scheduled
// announcement, renders its message and speaks it.
package announcer

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/announcer/internal/colorlookup"
	"github.com/eugenenazirov/announcer/internal/metrics"
	"github.com/eugenenazirov/announcer/internal/scheduler"
	"github.com/eugenenazirov/announcer/internal/speech"
	"github.com/eugenenazirov/announcer/internal/venue"
)

const (
	DefaultPollInterval    = time.Second
	DefaultMissedTolerance = 2 * time.Minute
	DefaultColorFallback   = "unknown"
)

// Speaker plays one utterance to completion.
type Speaker interface {
	Speak(ctx context.Context, u speech.Utterance) error
}

// Option configures a Loop.
type Option func(*Loop)

// WithPollInterval sets how often the clock is checked.
func WithPollInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.pollInterval = d
		}
	}
}

// WithMissedTolerance sets how late an entry may still be played.
func WithMissedTolerance(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.missedTolerance = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) {
		if now != nil {
			l.now = now
		}
	}
}

// WithColorFallback sets the color spoken when the lookup fails.
func WithColorFallback(color string) Option {
	return func(l *Loop) {
		if color != "" {
			l.colorFallback = color
		}
	}
}

// WithMetrics records announcement outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loop) {
		if m != nil {
			l.metrics = m
		}
	}
}

// WithLogger sets the loop logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Loop plays the announcements of one configuration snapshot. A Loop is
// not reused across reloads.
type Loop struct {
	cfg     venue.Config
	plan    *scheduler.Plan
	speaker Speaker
	lookup  colorlookup.Lookup
	metrics *metrics.Metrics
	logger  *zap.Logger

	now             func() time.Time
	pollInterval    time.Duration
	missedTolerance time.Duration
	colorFallback   string

	next    scheduler.Due
	hasNext bool
}

// New builds a Loop for cfg. A nil lookup behaves as if no database is configured.
func New(cfg venue.Config, speaker Speaker, lookup colorlookup.Lookup, opts ...Option) *Loop {
	if lookup == nil {
		lookup = colorlookup.Static{}
	}
	l := &Loop{
		cfg:             cfg.Clone(),
		plan:            scheduler.New(cfg),
		speaker:         speaker,
		lookup:          lookup,
		logger:          zap.NewNop(),
		now:             time.Now,
		pollInterval:    DefaultPollInterval,
		missedTolerance: DefaultMissedTolerance,
		colorFallback:   DefaultColorFallback,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.metrics == nil {
		l.metrics = metrics.NewNop()
	}
	return l
}

// Run polls until ctx is cancelled. An announcement in progress is cancelled
// with ctx.
func (l *Loop) Run(ctx context.Context) error {
	return l.run(ctx, nil)
}

// run polls until ctx is cancelled or stop is closed. Closing stop never
// interrupts an announcement in progress: the loop only checks it between
// ticks. Cancelling ctx does.
func (l *Loop) run(ctx context.Context, stop <-chan struct{}) error {
	for _, err := range l.plan.Skipped() {
		l.logger.Warn("schedule entry skipped", zap.Error(err))
	}
	l.logger.Info("announcer loop started",
		zap.Int("entries", l.plan.Len()),
		zap.Duration("poll_interval", l.pollInterval))

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		l.tick(ctx)
		select {
		case <-ctx.Done():
			l.logger.Info("announcer loop stopped")
			return nil
		case <-stop:
			l.logger.Info("announcer loop stopped for reload")
			return nil
		case <-ticker.C:
		}
	}
}

// Close releases the color lookup when it holds resources.
func (l *Loop) Close() error {
	if c, ok := l.lookup.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// tick advances the loop by one poll.
func (l *Loop) tick(ctx context.Context) {
	now := l.now()
	if !l.hasNext {
		l.schedule(now)
		if !l.hasNext {
			return
		}
	}
	if now.Before(l.next.At) {
		return
	}

	due := l.next
	if late := now.Sub(due.At); late > l.missedTolerance {
		l.logger.Warn("announcement missed",
			zap.String("time", due.Entry.Time.String()),
			zap.String("type", due.Entry.Kind.String()),
			zap.Duration("late", late))
		l.metrics.Announcement(due.Entry.Kind.String(), metrics.OutcomeMissed)
	} else {
		l.fire(ctx, due)
	}
	// the fired instant itself must not be due again
	l.schedule(due.At.Add(time.Nanosecond))
}

func (l *Loop) schedule(from time.Time) {
	due, err := l.plan.Next(from)
	if err != nil {
		l.hasNext = false
		l.metrics.NextDue(time.Time{})
		if !errors.Is(err, scheduler.ErrEmptySchedule) {
			l.logger.Error("failed to compute next announcement", zap.Error(err))
		}
		return
	}
	l.next, l.hasNext = due, true
	l.metrics.NextDue(due.At)
	l.logger.Debug("next announcement",
		zap.Time("at", due.At),
		zap.String("type", due.Entry.Kind.String()))
}

func (l *Loop) fire(ctx context.Context, due scheduler.Due) {
	kind := due.Entry.Kind.String()
	text := Render(due.Template, Fields{
		Time:         due.Entry.Time,
		Color:        l.color(ctx, due.Template),
		RulesContent: l.cfg.Rules,
		AdMessage:    l.cfg.Ad,
	})

	l.logger.Info("playing announcement",
		zap.String("time", due.Entry.Time.String()),
		zap.String("type", kind),
		zap.String("text", text))

	err := l.speaker.Speak(ctx, speech.Utterance{
		Text:   text,
		Voice:  l.cfg.TTS.VoiceID,
		Format: l.cfg.TTS.OutputFormat,
	})
	if err != nil {
		l.logger.Error("announcement failed", zap.String("type", kind), zap.Error(err))
		l.metrics.Announcement(kind, metrics.OutcomeFailure)
		return
	}
	l.metrics.Announcement(kind, metrics.OutcomeSuccess)
}

func (l *Loop) color(ctx context.Context, tmpl string) string {
	if !NeedsColor(tmpl) {
		return ""
	}
	res, err := l.lookup.Lookup(ctx, l.now())
	if err != nil {
		if errors.Is(err, colorlookup.ErrNoColor) {
			l.logger.Warn("no color data available", zap.String("fallback", l.colorFallback))
		} else {
			l.logger.Error("color lookup failed", zap.String("fallback", l.colorFallback), zap.Error(err))
		}
		l.metrics.ColorLookupFailure()
		return l.colorFallback
	}
	return res.Color
}
