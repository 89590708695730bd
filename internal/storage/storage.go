package storage

import (
	"errors"
	"io/fs"
	"sync"

	"github.com/eugenenazirov/announcer/internal/venue"
)

var (
	// ErrPersistence indicates the venue configuration could not be written durably.
	ErrPersistence = errors.New("persist venue config")
)

// Storage provides access to the venue configuration shared by the web
// interface and the announcer.
type Storage interface {
	Load() (venue.Config, error)
	Save(cfg venue.Config) error
}

// LoadOrDefault loads the configuration, treating a missing file as an empty
// configuration with defaults applied.
func LoadOrDefault(s Storage) (venue.Config, error) {
	cfg, err := s.Load()
	if errors.Is(err, fs.ErrNotExist) {
		return venue.Default(), nil
	}
	return cfg, err
}

// MemoryStorage keeps the configuration in-memory and guards access with a RWMutex.
type MemoryStorage struct {
	mu  sync.RWMutex
	cfg venue.Config
}

// NewMemoryStorage initialises storage with a copy of cfg.
func NewMemoryStorage(cfg venue.Config) *MemoryStorage {
	return &MemoryStorage{cfg: cfg.Clone()}
}

// Load returns a defensive copy of the stored configuration.
func (s *MemoryStorage) Load() (venue.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cfg.Clone(), nil
}

// Save replaces the stored configuration with a copy of cfg.
func (s *MemoryStorage) Save(cfg venue.Config) error {
	clone := cfg.Clone()

	s.mu.Lock()
	s.cfg = clone
	s.mu.Unlock()

	return nil
}
