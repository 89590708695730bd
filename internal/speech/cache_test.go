package speech

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type countingSynth struct {
	calls int
	audio []byte
	err   error
}

func (s *countingSynth) Synthesize(_ context.Context, u Utterance) ([]byte, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return append([]byte(u.Voice+":"), s.audio...), nil
}

func TestAudioCacheMemoryAndDisk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	u := Utterance{Text: "Rules time", Voice: "en-US-AvaNeural", Format: "mp3"}

	cache := NewAudioCache(dir, true, zaptest.NewLogger(t))
	_, ok := cache.Get(u)
	assert.False(t, ok)

	cache.Put(u, []byte("audio"))
	got, ok := cache.Get(u)
	require.True(t, ok)
	assert.Equal(t, []byte("audio"), got)

	files, err := filepath.Glob(filepath.Join(dir, "*.mp3"))
	require.NoError(t, err)
	assert.Len(t, files, 1)

	// a fresh cache reads the disk layer even with writes disabled
	warm := NewAudioCache(dir, false, nil)
	got, ok = warm.Get(u)
	require.True(t, ok)
	assert.Equal(t, []byte("audio"), got)
	assert.Equal(t, 1, warm.Len())

	hits, misses := cache.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestAudioCacheKeyIncludesVoiceAndFormat(t *testing.T) {
	t.Parallel()

	cache := NewAudioCache("", false, nil)
	cache.Put(Utterance{Text: "hi", Voice: "a", Format: "mp3"}, []byte("x"))

	_, ok := cache.Get(Utterance{Text: "hi", Voice: "b", Format: "mp3"})
	assert.False(t, ok)
	_, ok = cache.Get(Utterance{Text: "hi", Voice: "a", Format: "wav"})
	assert.False(t, ok)
	_, ok = cache.Get(Utterance{Text: "hi", Voice: "a", Format: "MP3"})
	assert.True(t, ok)
}

func TestAudioCacheDiskWriteDisabled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cache := NewAudioCache(dir, false, nil)
	cache.Put(Utterance{Text: "hi"}, []byte("x"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCachingSynthesizer(t *testing.T) {
	t.Parallel()

	next := &countingSynth{audio: []byte("sound")}
	synth := NewCachingSynthesizer(next, NewAudioCache("", false, nil))
	u := Utterance{Text: "Ad time", Voice: "v"}

	first, err := synth.Synthesize(context.Background(), u)
	require.NoError(t, err)
	second, err := synth.Synthesize(context.Background(), u)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, next.calls)
}

func TestCachingSynthesizerDoesNotCacheErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	next := &countingSynth{err: boom}
	synth := NewCachingSynthesizer(next, NewAudioCache("", false, nil))

	for i := 0; i < 2; i++ {
		_, err := synth.Synthesize(context.Background(), Utterance{Text: "x"})
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, 2, next.calls)
}
