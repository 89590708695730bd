package speech

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"go.uber.org/zap"
)

// Player plays an audio file of the given format to the venue speakers.
// Play blocks until playback finishes or ctx is done.
type Player interface {
	Play(ctx context.Context, path, format string) error
}

// OtoPlayer plays audio in-process through the system audio device.
type OtoPlayer struct {
	ctx    *oto.Context
	logger *zap.Logger
	mu     sync.Mutex
}

// NewOtoPlayer initialises the system audio context. Only one may exist per
// process. Returns an error if the audio device is unavailable.
func NewOtoPlayer(logger *zap.Logger) (*OtoPlayer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	op := &oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: ChannelCount,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("%w: open audio device: %w", ErrPlayback, err)
	}
	<-ready

	logger.Debug("audio player initialized",
		zap.Int("sample_rate", SampleRate),
		zap.Int("channels", ChannelCount))
	return &OtoPlayer{ctx: ctx, logger: logger}, nil
}

// Play decodes the file and plays it synchronously.
func (p *OtoPlayer) Play(ctx context.Context, path, format string) error {
	audio, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPlayback, err)
	}
	pcm, err := decodePCM(audio, format)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPlayback, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	player := p.ctx.NewPlayer(bytes.NewReader(pcm))
	player.Play()
	p.logger.Debug("audio player: playing", zap.Int("pcm_bytes", len(pcm)))

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return fmt.Errorf("%w: %w", ErrPlayback, ctx.Err())
		case <-ticker.C:
		}
	}

	if err := player.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrPlayback, err)
	}
	return nil
}
