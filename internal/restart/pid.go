package restart

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/adrg/xdg"
)

const (
	// AppName is the application name used for state directories.
	AppName = "announcer"
	// PIDFileName is the PID file name.
	PIDFileName = "announcer.pid"
)

var (
	// ErrNotRunning is returned when no live announcer owns the PID file.
	ErrNotRunning = errors.New("announcer is not running")
	// ErrAlreadyRunning is returned when another live announcer owns the PID file.
	ErrAlreadyRunning = errors.New("announcer is already running")
)

// DefaultPIDFilePath returns the PID file location under the XDG state directory.
func DefaultPIDFilePath() string {
	return filepath.Join(xdg.StateHome, AppName, PIDFileName)
}

// PIDFile records the PID of the running announcer so the web process can signal it.
type PIDFile struct {
	path string
}

// NewPIDFile returns a PID file at path, or at DefaultPIDFilePath when path is empty.
func NewPIDFile(path string) *PIDFile {
	if path == "" {
		path = DefaultPIDFilePath()
	}
	return &PIDFile{path: path}
}

// Path returns the PID file path.
func (p *PIDFile) Path() string {
	return p.path
}

// Acquire writes the current PID unless a live process already owns the file.
// A file left behind by a dead process is overwritten.
func (p *PIDFile) Acquire() error {
	if pid, err := p.Read(); err == nil && pid != os.Getpid() && IsProcessRunning(pid) {
		return fmt.Errorf("%w (pid %d, %s)", ErrAlreadyRunning, pid, p.path)
	}
	return p.WritePID(os.Getpid())
}

// WritePID writes pid to the file, creating its directory.
func (p *PIDFile) WritePID(pid int) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("create PID directory: %w", err)
	}
	if err := os.WriteFile(p.path, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	return nil
}

// Read returns the recorded PID. A missing file yields ErrNotRunning.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, ErrNotRunning
		}
		return 0, fmt.Errorf("read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in %s: %w", p.path, err)
	}
	return pid, nil
}

// Remove deletes the file if it still records the current process.
func (p *PIDFile) Remove() error {
	if pid, err := p.Read(); err != nil || pid != os.Getpid() {
		return nil
	}
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove PID file: %w", err)
	}
	return nil
}

// RunningPID returns the recorded PID if that process is alive.
func (p *PIDFile) RunningPID() (int, error) {
	pid, err := p.Read()
	if err != nil {
		return 0, err
	}
	if !IsProcessRunning(pid) {
		return 0, fmt.Errorf("%w (stale pid %d)", ErrNotRunning, pid)
	}
	return pid, nil
}

// IsProcessRunning checks if a process with the given PID is running.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix FindProcess always succeeds; signal 0 probes for existence.
	return process.Signal(syscall.Signal(0)) == nil
}
