package speech

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultSynthesisTimeout = 30 * time.Second
	defaultPlaybackTimeout  = 5 * time.Minute
)

// SpeakerOption configures a Speaker.
type SpeakerOption func(*Speaker)

// WithSynthesisTimeout bounds each synthesis call.
func WithSynthesisTimeout(d time.Duration) SpeakerOption {
	return func(s *Speaker) {
		if d > 0 {
			s.synthesisTimeout = d
		}
	}
}

// WithPlaybackTimeout bounds each playback.
func WithPlaybackTimeout(d time.Duration) SpeakerOption {
	return func(s *Speaker) {
		if d > 0 {
			s.playbackTimeout = d
		}
	}
}

// WithTempDir sets where temporary audio files are written. Empty means os.TempDir.
func WithTempDir(dir string) SpeakerOption {
	return func(s *Speaker) {
		s.tempDir = dir
	}
}

// WithSpeakerLogger sets the speaker logger.
func WithSpeakerLogger(logger *zap.Logger) SpeakerOption {
	return func(s *Speaker) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Speaker serializes speech output: only one utterance is synthesized and
// played at a time within a process.
type Speaker struct {
	synth  Synthesizer
	player Player
	logger *zap.Logger

	synthesisTimeout time.Duration
	playbackTimeout  time.Duration
	tempDir          string

	mu sync.Mutex
}

// NewSpeaker creates a Speaker from a synthesizer and a player.
func NewSpeaker(synth Synthesizer, player Player, opts ...SpeakerOption) *Speaker {
	s := &Speaker{
		synth:            synth,
		player:           player,
		logger:           zap.NewNop(),
		synthesisTimeout: defaultSynthesisTimeout,
		playbackTimeout:  defaultPlaybackTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Speak synthesizes u, writes it to a temporary file, plays it and removes
// the file whatever the outcome.
func (s *Speaker) Speak(ctx context.Context, u Utterance) error {
	u = u.normalized()
	if strings.TrimSpace(u.Text) == "" {
		return fmt.Errorf("%w: empty text", ErrSynthesis)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sctx, cancel := context.WithTimeout(ctx, s.synthesisTimeout)
	audio, err := s.synth.Synthesize(sctx, u)
	cancel()
	if err != nil {
		if errors.Is(err, ErrSynthesis) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrSynthesis, err)
	}
	if len(audio) == 0 {
		return fmt.Errorf("%w: %w", ErrSynthesis, ErrEmptyAudio)
	}

	path, err := s.writeTemp(u.Format, audio)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPlayback, err)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove temporary audio file", zap.String("path", path), zap.Error(err))
		}
	}()

	pctx, cancel := context.WithTimeout(ctx, s.playbackTimeout)
	defer cancel()

	start := time.Now()
	if err := s.player.Play(pctx, path, u.Format); err != nil {
		if errors.Is(err, ErrPlayback) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrPlayback, err)
	}
	s.logger.Debug("utterance played",
		zap.Int("audio_bytes", len(audio)),
		zap.Duration("playback", time.Since(start)))
	return nil
}

func (s *Speaker) writeTemp(format string, audio []byte) (string, error) {
	f, err := os.CreateTemp(s.tempDir, "announcement-*."+format)
	if err != nil {
		return "", fmt.Errorf("create temp audio file: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(audio); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write temp audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close temp audio file: %w", err)
	}
	return path, nil
}

// Unavailable is used when no text-to-speech provider is configured.
type Unavailable struct{}

// Speak always returns ErrUnavailable.
func (Unavailable) Speak(context.Context, Utterance) error {
	return ErrUnavailable
}
