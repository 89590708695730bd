package speech

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/announcer/internal/venue"
)

// DefaultPlayerCommands are the external players used per format. The file
// path is appended as the last argument.
func DefaultPlayerCommands() map[string][]string {
	return map[string][]string{
		venue.FormatMP3: {"mpg123", "-q"},
		venue.FormatWAV: {"aplay", "-q"},
	}
}

// CommandPlayer plays audio by running an external program per file.
type CommandPlayer struct {
	commands map[string][]string
	logger   *zap.Logger
}

// NewCommandPlayer returns a player using commands, falling back to
// DefaultPlayerCommands for formats it does not list.
func NewCommandPlayer(commands map[string][]string, logger *zap.Logger) *CommandPlayer {
	if logger == nil {
		logger = zap.NewNop()
	}
	merged := DefaultPlayerCommands()
	for format, argv := range commands {
		if len(argv) > 0 {
			merged[strings.ToLower(format)] = argv
		}
	}
	return &CommandPlayer{commands: merged, logger: logger}
}

// Commands returns a copy of the configured commands.
func (p *CommandPlayer) Commands() map[string][]string {
	return maps.Clone(p.commands)
}

// Play runs the player for format and waits for it to exit.
func (p *CommandPlayer) Play(ctx context.Context, path, format string) error {
	argv, ok := p.commands[format]
	if !ok {
		return fmt.Errorf("%w: no player configured for %q", ErrPlayback, format)
	}

	args := append(append([]string{}, argv[1:]...), path)
	cmd := exec.CommandContext(ctx, argv[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	p.logger.Debug("running audio player", zap.String("command", argv[0]), zap.String("path", path))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s: %w: %s", ErrPlayback, argv[0], err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// ParseCommandLine splits a configured command line into argv.
func ParseCommandLine(line string) []string {
	return strings.Fields(line)
}
