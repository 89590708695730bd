package application

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/announcer/internal/announcer"
	"github.com/eugenenazirov/announcer/internal/colorlookup"
	"github.com/eugenenazirov/announcer/internal/config"
	"github.com/eugenenazirov/announcer/internal/settings"
	"github.com/eugenenazirov/announcer/internal/speech"
	"github.com/eugenenazirov/announcer/internal/venue"
)

// NewSpeaker builds the synthesize-and-play pipeline. Without speech
// credentials it returns speech.Unavailable.
func NewSpeaker(cfg config.Config, logger *zap.Logger) (announcer.Speaker, error) {
	if !cfg.Speech.Enabled() {
		logger.Warn("text-to-speech is not configured; announcements are disabled")
		return speech.Unavailable{}, nil
	}

	client := speech.NewAzureClient(cfg.Speech.AzureKey, cfg.Speech.AzureRegion,
		speech.WithHTTPTimeout(cfg.Announcer.SynthesisTimeout),
		speech.WithAzureLogger(logger))
	cache := speech.NewAudioCache(cfg.Speech.CacheDir, cfg.Speech.DiskCache, logger)

	player, err := NewPlayer(cfg.Speech, logger)
	if err != nil {
		return nil, err
	}

	return speech.NewSpeaker(speech.NewCachingSynthesizer(client, cache), player,
		speech.WithSynthesisTimeout(cfg.Announcer.SynthesisTimeout),
		speech.WithPlaybackTimeout(cfg.Announcer.PlaybackTimeout),
		speech.WithTempDir(cfg.Speech.TempDir),
		speech.WithSpeakerLogger(logger)), nil
}

// NewPlayer returns the audio player selected in cfg.
func NewPlayer(cfg config.SpeechConfig, logger *zap.Logger) (speech.Player, error) {
	switch strings.ToLower(cfg.Player) {
	case config.PlayerOto:
		player, err := speech.NewOtoPlayer(logger)
		if err != nil {
			return nil, fmt.Errorf("init audio player: %w", err)
		}
		return player, nil
	case config.PlayerCommand, "":
		commands := make(map[string][]string, len(cfg.PlayerCommands))
		for format, line := range cfg.PlayerCommands {
			commands[format] = speech.ParseCommandLine(line)
		}
		return speech.NewCommandPlayer(commands, logger), nil
	default:
		return nil, fmt.Errorf("unsupported audio player %q", cfg.Player)
	}
}

// NewLookupOpener connects color lookups to the venue database. Without a
// configured database every lookup yields colorlookup.ErrNoColor.
func NewLookupOpener(cfg config.AnnouncerConfig, logger *zap.Logger) settings.LookupOpener {
	return func(d venue.Database) (colorlookup.Lookup, error) {
		if !d.Configured() {
			return colorlookup.Static{}, nil
		}
		lookup, err := colorlookup.Open(d,
			colorlookup.WithQueryTimeout(cfg.ColorLookupTimeout),
			colorlookup.WithPrinterGroup(cfg.PrinterGroup),
			colorlookup.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return lookup, nil
	}
}
