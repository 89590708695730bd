package speech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// AudioCache is a thread-safe two-tier cache (in-memory + filesystem) for
// synthesized audio. The key covers voice, format and text, so changing the
// voice in the web form causes misses until it is switched back.
//
// The disk layer is always read when cacheDir is set; new entries are only
// written to it when diskWrite is true.
type AudioCache struct {
	mu        sync.RWMutex
	entries   map[string][]byte
	logger    *zap.Logger
	cacheDir  string
	diskWrite bool
	hits      int64
	misses    int64
}

// NewAudioCache creates an audio cache. An empty cacheDir disables the disk layer.
func NewAudioCache(cacheDir string, diskWrite bool, logger *zap.Logger) *AudioCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &AudioCache{
		entries:   make(map[string][]byte),
		logger:    logger,
		cacheDir:  cacheDir,
		diskWrite: diskWrite,
	}

	if cacheDir != "" && diskWrite {
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			logger.Error("cache: failed to create cache dir", zap.String("dir", cacheDir), zap.Error(err))
		}
	}
	return c
}

// Get returns cached audio for u and true, or nil and false.
func (c *AudioCache) Get(u Utterance) ([]byte, bool) {
	u = u.normalized()
	key := hashKey(u)

	c.mu.RLock()
	data, ok := c.entries[key]
	c.mu.RUnlock()

	if ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		c.logger.Debug("cache hit (mem)", zap.String("key", key[:12]), zap.Int("bytes", len(data)))
		return data, true
	}

	if c.cacheDir != "" {
		if diskData, err := os.ReadFile(c.diskPath(key, u.Format)); err == nil && len(diskData) > 0 {
			c.mu.Lock()
			c.entries[key] = diskData
			c.hits++
			c.mu.Unlock()
			c.logger.Debug("cache hit (disk)", zap.String("key", key[:12]), zap.Int("bytes", len(diskData)))
			return diskData, true
		}
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	return nil, false
}

// Put stores audio for u in memory, and on disk when enabled.
func (c *AudioCache) Put(u Utterance, audio []byte) {
	u = u.normalized()
	key := hashKey(u)

	c.mu.Lock()
	c.entries[key] = audio
	c.mu.Unlock()

	if c.cacheDir == "" || !c.diskWrite {
		return
	}
	path := c.diskPath(key, u.Format)
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		c.logger.Error("cache: disk write failed", zap.String("path", path), zap.Error(err))
	}
}

// Len returns the number of in-memory cached entries.
func (c *AudioCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns hit and miss counts.
func (c *AudioCache) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

func (c *AudioCache) diskPath(key, format string) string {
	return filepath.Join(c.cacheDir, key+"."+format)
}

func hashKey(u Utterance) string {
	h := sha256.Sum256([]byte(u.Voice + ":" + u.Format + ":" + u.Text))
	return hex.EncodeToString(h[:])
}

// CachingSynthesizer serves repeated utterances from an AudioCache.
type CachingSynthesizer struct {
	next  Synthesizer
	cache *AudioCache
}

// NewCachingSynthesizer wraps next with cache.
func NewCachingSynthesizer(next Synthesizer, cache *AudioCache) *CachingSynthesizer {
	return &CachingSynthesizer{next: next, cache: cache}
}

// Synthesize returns cached audio when present and caches fresh results.
func (s *CachingSynthesizer) Synthesize(ctx context.Context, u Utterance) ([]byte, error) {
	if audio, ok := s.cache.Get(u); ok {
		return audio, nil
	}
	audio, err := s.next.Synthesize(ctx, u)
	if err != nil {
		return nil, err
	}
	if len(audio) > 0 {
		s.cache.Put(u, audio)
	}
	return audio, nil
}
