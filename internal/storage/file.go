package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/eugenenazirov/announcer/internal/venue"
)

// The file holds database credentials.
const defaultFileMode os.FileMode = 0o600

// FileStorage persists the venue configuration as an INI file. Writes go to a
// temporary file in the same directory which is synced and renamed over the
// target, so a concurrent reader sees either the old or the new file.
type FileStorage struct {
	path   string
	logger *zap.Logger

	mu sync.Mutex
}

// FileOption customises a FileStorage.
type FileOption func(*FileStorage)

// WithLogger reports skipped entries and write failures to logger.
func WithLogger(logger *zap.Logger) FileOption {
	return func(s *FileStorage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewFileStorage returns storage backed by the INI file at path.
func NewFileStorage(path string, opts ...FileOption) *FileStorage {
	s := &FileStorage{
		path:   path,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the location of the backing file.
func (s *FileStorage) Path() string {
	return s.path
}

// Load reads and decodes the file. A missing file yields an error matching fs.ErrNotExist.
func (s *FileStorage) Load() (venue.Config, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return venue.Config{}, fmt.Errorf("read venue config %s: %w", s.path, err)
	}
	return Decode(data, s.logger.With(zap.String("path", s.path)))
}

// Save encodes cfg and atomically replaces the file.
func (s *FileStorage) Save(cfg venue.Config) error {
	data, err := Encode(cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	perm := defaultFileMode
	if info, err := os.Stat(s.path); err == nil {
		perm = info.Mode().Perm()
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: stat %s: %w", ErrPersistence, s.path, err)
	}

	if err := writeFileAtomic(s.path, data, perm); err != nil {
		s.logger.Error("venue config write failed", zap.String("path", s.path), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	success = true
	return nil
}
