// Package restart tells the announcer process to pick up a changed venue
// configuration.
package restart

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"go.uber.org/zap"
)

// Modes accepted by New.
const (
	ModeSignal  = "signal"
	ModeCommand = "command"
	ModeNone    = "none"
)

// DefaultCommand restarts the announcer under systemd.
const DefaultCommand = "sudo systemctl restart announcer.service"

// ErrUnknownMode is returned by New for an unsupported mode.
var ErrUnknownMode = errors.New("unknown restart mode")

// Restarter makes the announcer reload its configuration.
type Restarter interface {
	Restart(ctx context.Context) error
}

// New builds the Restarter for mode.
func New(mode, command, pidPath string, logger *zap.Logger) (Restarter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ModeSignal, "":
		return NewSignal(NewPIDFile(pidPath), logger), nil
	case ModeCommand:
		if strings.TrimSpace(command) == "" {
			command = DefaultCommand
		}
		return NewCommand(strings.Fields(command), logger), nil
	case ModeNone:
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// Signal sends SIGHUP to the PID recorded in the announcer's PID file.
type Signal struct {
	pidFile *PIDFile
	logger  *zap.Logger
}

// NewSignal returns a Restarter signalling the owner of pidFile.
func NewSignal(pidFile *PIDFile, logger *zap.Logger) *Signal {
	return &Signal{pidFile: pidFile, logger: logger}
}

// Restart implements Restarter.
func (s *Signal) Restart(context.Context) error {
	pid, err := s.pidFile.RunningPID()
	if err != nil {
		return err
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find announcer process %d: %w", pid, err)
	}
	if err := process.Signal(syscall.SIGHUP); err != nil {
		return fmt.Errorf("signal announcer process %d: %w", pid, err)
	}
	s.logger.Info("announcer reload requested", zap.Int("pid", pid))
	return nil
}

// Command runs an external command, e.g. a service manager restart.
type Command struct {
	argv   []string
	logger *zap.Logger
}

// NewCommand returns a Restarter running argv.
func NewCommand(argv []string, logger *zap.Logger) *Command {
	return &Command{argv: argv, logger: logger}
}

// Restart implements Restarter.
func (c *Command) Restart(ctx context.Context) error {
	if len(c.argv) == 0 {
		return errors.New("restart command is empty")
	}
	out, err := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", strings.Join(c.argv, " "), err, strings.TrimSpace(string(out)))
	}
	c.logger.Info("announcer restarted", zap.Strings("command", c.argv))
	return nil
}

// Noop does nothing. Used in development when no announcer runs.
type Noop struct{}

// Restart implements Restarter.
func (Noop) Restart(context.Context) error {
	return nil
}
