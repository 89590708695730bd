package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/announcer/internal/restart"
)

const (
	defaultPort           = "5000"
	defaultVenueConfig    = "config.ini"
	defaultLogLevel       = "info"
	defaultRateLimitRPS   = 25.0
	defaultRateLimitBurst = 50

	// PlayerOto plays audio in-process, PlayerCommand shells out to an external player.
	PlayerOto     = "oto"
	PlayerCommand = "command"
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	Port                 string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int

	// VenueConfig is the INI file shared by the web interface and the announcer.
	VenueConfig string
	LogLevel    string

	Announcer AnnouncerConfig
	Speech    SpeechConfig
	Restart   RestartConfig
}

// AnnouncerConfig tunes the announcer loop.
type AnnouncerConfig struct {
	PollInterval       time.Duration
	MissedTolerance    time.Duration
	SynthesisTimeout   time.Duration
	PlaybackTimeout    time.Duration
	ColorLookupTimeout time.Duration
	ColorFallback      string
	PrinterGroup       int
	PIDFile            string
	MetricsAddr        string
}

// SpeechConfig selects the speech provider and audio output.
type SpeechConfig struct {
	AzureKey       string
	AzureRegion    string
	Player         string
	PlayerCommands map[string]string
	CacheDir       string
	DiskCache      bool
	TempDir        string
}

// Enabled reports whether text-to-speech credentials are configured.
func (s SpeechConfig) Enabled() bool {
	return s.AzureKey != "" && s.AzureRegion != ""
}

// RestartConfig selects how the web interface makes the announcer reload.
type RestartConfig struct {
	Mode    string
	Command string
}

// yamlConfig represents the YAML configuration file structure.
type yamlConfig struct {
	Port                 string        `yaml:"port"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
	VenueConfig          string        `yaml:"venue_config"`
	LogLevel             string        `yaml:"log_level"`
	Announcer            yamlAnnouncer `yaml:"announcer"`
	Speech               yamlSpeech    `yaml:"speech"`
	Restart              yamlRestart   `yaml:"restart"`
}

// yamlRateLimit represents the rate limit section in YAML.
type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

type yamlAnnouncer struct {
	PollInterval       string `yaml:"poll_interval"`
	MissedTolerance    string `yaml:"missed_tolerance"`
	SynthesisTimeout   string `yaml:"synthesis_timeout"`
	PlaybackTimeout    string `yaml:"playback_timeout"`
	ColorLookupTimeout string `yaml:"color_lookup_timeout"`
	ColorFallback      string `yaml:"color_fallback"`
	PrinterGroup       int    `yaml:"printer_group"`
	PIDFile            string `yaml:"pid_file"`
	MetricsAddr        string `yaml:"metrics_addr"`
}

type yamlSpeech struct {
	AzureKey       string            `yaml:"azure_key"`
	AzureRegion    string            `yaml:"azure_region"`
	Player         string            `yaml:"player"`
	PlayerCommands map[string]string `yaml:"player_commands"`
	CacheDir       string            `yaml:"cache_dir"`
	DiskCache      *bool             `yaml:"disk_cache"`
	TempDir        string            `yaml:"temp_dir"`
}

type yamlRestart struct {
	Mode    string `yaml:"mode"`
	Command string `yaml:"command"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	Port           *string
	VenueConfig    *string
	LogLevel       *string
	RateLimitRPS   *float64
	RateLimitBurst *int
	PIDFile        *string
	MetricsAddr    *string
	RestartMode    *string
	Player         *string
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	// Apply environment variables first so the YAML file overrides them
	applyEnvConfig(&cfg)

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("apply YAML config: %w", err)
		}
	}

	// Apply CLI overrides (highest precedence)
	if overrides != nil {
		applyCLIOverrides(&cfg, overrides)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		Port:                 defaultPort,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         5 * time.Minute,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		VenueConfig:          defaultVenueConfig,
		LogLevel:             defaultLogLevel,
		Announcer: AnnouncerConfig{
			PollInterval:       time.Second,
			MissedTolerance:    2 * time.Minute,
			SynthesisTimeout:   30 * time.Second,
			PlaybackTimeout:    5 * time.Minute,
			ColorLookupTimeout: 30 * time.Second,
			ColorFallback:      "unknown",
			PrinterGroup:       1,
			PIDFile:            restart.DefaultPIDFilePath(),
		},
		Speech: SpeechConfig{
			Player:    PlayerCommand,
			CacheDir:  filepath.Join(xdg.CacheHome, restart.AppName, "tts"),
			DiskCache: true,
		},
		Restart: RestartConfig{
			Mode: restart.ModeSignal,
		},
	}
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	if yamlCfg.Port != "" {
		cfg.Port = yamlCfg.Port
	}

	durations := []struct {
		field string
		raw   string
		dst   *time.Duration
	}{
		{"shutdown_grace_period", yamlCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{"read_header_timeout", yamlCfg.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{"write_timeout", yamlCfg.WriteTimeout, &cfg.WriteTimeout},
		{"idle_timeout", yamlCfg.IdleTimeout, &cfg.IdleTimeout},
		{"announcer.poll_interval", yamlCfg.Announcer.PollInterval, &cfg.Announcer.PollInterval},
		{"announcer.missed_tolerance", yamlCfg.Announcer.MissedTolerance, &cfg.Announcer.MissedTolerance},
		{"announcer.synthesis_timeout", yamlCfg.Announcer.SynthesisTimeout, &cfg.Announcer.SynthesisTimeout},
		{"announcer.playback_timeout", yamlCfg.Announcer.PlaybackTimeout, &cfg.Announcer.PlaybackTimeout},
		{"announcer.color_lookup_timeout", yamlCfg.Announcer.ColorLookupTimeout, &cfg.Announcer.ColorLookupTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		value, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.field, err)
		}
		*d.dst = value
	}

	if yamlCfg.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *yamlCfg.EnableRequestLogging
	}
	if yamlCfg.RateLimit.RPS != nil {
		cfg.RateLimitRPS = *yamlCfg.RateLimit.RPS
	}
	if yamlCfg.RateLimit.Burst != nil {
		cfg.RateLimitBurst = *yamlCfg.RateLimit.Burst
	}

	setString(&cfg.VenueConfig, yamlCfg.VenueConfig)
	setString(&cfg.LogLevel, yamlCfg.LogLevel)

	setString(&cfg.Announcer.ColorFallback, yamlCfg.Announcer.ColorFallback)
	setString(&cfg.Announcer.PIDFile, yamlCfg.Announcer.PIDFile)
	setString(&cfg.Announcer.MetricsAddr, yamlCfg.Announcer.MetricsAddr)
	if yamlCfg.Announcer.PrinterGroup > 0 {
		cfg.Announcer.PrinterGroup = yamlCfg.Announcer.PrinterGroup
	}

	setString(&cfg.Speech.AzureKey, yamlCfg.Speech.AzureKey)
	setString(&cfg.Speech.AzureRegion, yamlCfg.Speech.AzureRegion)
	setString(&cfg.Speech.Player, yamlCfg.Speech.Player)
	setString(&cfg.Speech.CacheDir, yamlCfg.Speech.CacheDir)
	setString(&cfg.Speech.TempDir, yamlCfg.Speech.TempDir)
	if len(yamlCfg.Speech.PlayerCommands) > 0 {
		cfg.Speech.PlayerCommands = yamlCfg.Speech.PlayerCommands
	}
	if yamlCfg.Speech.DiskCache != nil {
		cfg.Speech.DiskCache = *yamlCfg.Speech.DiskCache
	}

	setString(&cfg.Restart.Mode, yamlCfg.Restart.Mode)
	setString(&cfg.Restart.Command, yamlCfg.Restart.Command)

	return nil
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) {
	setString(&cfg.Port, env("PORT"))
	setString(&cfg.VenueConfig, env("VENUE_CONFIG"))
	setString(&cfg.LogLevel, env("LOG_LEVEL"))
	setString(&cfg.Speech.AzureKey, env("AZURE_SPEECH_KEY"))
	setString(&cfg.Speech.AzureRegion, env("AZURE_SPEECH_REGION"))
	setString(&cfg.Speech.Player, env("AUDIO_PLAYER"))
	setString(&cfg.Speech.CacheDir, env("TTS_CACHE_DIR"))
	setString(&cfg.Announcer.PIDFile, env("ANNOUNCER_PID_FILE"))
	setString(&cfg.Announcer.MetricsAddr, env("ANNOUNCER_METRICS_ADDR"))
	setString(&cfg.Restart.Mode, env("RESTART_MODE"))
	setString(&cfg.Restart.Command, env("RESTART_COMMAND"))

	if rps := env("RATE_LIMIT_RPS"); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := env("RATE_LIMIT_BURST"); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) {
	setFlag(&cfg.Port, overrides.Port)
	setFlag(&cfg.VenueConfig, overrides.VenueConfig)
	setFlag(&cfg.LogLevel, overrides.LogLevel)
	setFlag(&cfg.Announcer.PIDFile, overrides.PIDFile)
	setFlag(&cfg.Announcer.MetricsAddr, overrides.MetricsAddr)
	setFlag(&cfg.Restart.Mode, overrides.RestartMode)
	setFlag(&cfg.Speech.Player, overrides.Player)

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config) error {
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	if strings.TrimSpace(cfg.VenueConfig) == "" {
		return fmt.Errorf("venue config path cannot be empty")
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level %q", cfg.LogLevel)
	}
	if cfg.Announcer.PollInterval <= 0 {
		return fmt.Errorf("announcer poll interval must be positive")
	}
	if cfg.Announcer.MissedTolerance <= 0 {
		return fmt.Errorf("announcer missed tolerance must be positive")
	}
	switch strings.ToLower(cfg.Speech.Player) {
	case PlayerOto, PlayerCommand:
	default:
		return fmt.Errorf("unsupported audio player %q", cfg.Speech.Player)
	}
	switch strings.ToLower(cfg.Restart.Mode) {
	case restart.ModeSignal, restart.ModeCommand, restart.ModeNone:
	default:
		return fmt.Errorf("unsupported restart mode %q", cfg.Restart.Mode)
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func setFlag(dst *string, value *string) {
	if value != nil && *value != "" {
		*dst = *value
	}
}
