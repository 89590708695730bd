package venue

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"
)

const (
	// DefaultRulesContent is spoken for a rules announcement when none is configured.
	DefaultRulesContent = "1. No running. 2. Follow instructions. 3. Stay safe."
	// DefaultAdMessage is spoken for an ad announcement when none is configured.
	DefaultAdMessage = "Don't miss our special offer on wristbands today!"
	// DefaultRulesTemplate and DefaultAdTemplate speak the configured text as-is.
	DefaultRulesTemplate = "{rules_content}"
	DefaultAdTemplate    = "{ad_message}"
	// FallbackTemplate is used for a built-in type whose template is blank.
	FallbackTemplate = "Attention! It's {time}."

	// FormatMP3 and FormatWAV are the supported audio output formats.
	FormatMP3 = "mp3"
	FormatWAV = "wav"
)

// Database holds the connection settings for the color lookup database.
type Database struct {
	Server   string
	Name     string
	Username string
	Password string
}

// Configured reports whether enough settings exist to attempt a connection.
func (d Database) Configured() bool {
	return d.Server != "" && d.Name != ""
}

// TTS holds the voice settings.
type TTS struct {
	VoiceID      string
	OutputFormat string
}

// Templates holds the message templates for the built-in types.
type Templates struct {
	FiftyFive string
	Hour      string
	Rules     string
	Ad        string
}

// Schedule maps a time of day to the announcement played at it.
// Keys are unique, so writing a time twice keeps the last type.
type Schedule map[ClockTime]Kind

// ScheduleEntry is a daily recurring (time, type) pair.
type ScheduleEntry struct {
	Time ClockTime
	Kind Kind
}

// Entries returns the schedule ordered by time of day, then by type text.
func (s Schedule) Entries() []ScheduleEntry {
	out := make([]ScheduleEntry, 0, len(s))
	for t, k := range s {
		out = append(out, ScheduleEntry{Time: t, Kind: k})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time.Before(out[j].Time)
		}
		return out[i].Kind.String() < out[j].Kind.String()
	})
	return out
}

// Config is the venue configuration persisted in the INI file.
type Config struct {
	Database    Database
	TTS         TTS
	Templates   Templates
	Rules       string
	Ad          string
	Schedule    Schedule
	CustomTypes map[string]string
}

// Default returns an empty configuration with the documented defaults applied.
func Default() Config {
	return Config{
		TTS:         TTS{OutputFormat: FormatMP3},
		Templates:   Templates{Rules: DefaultRulesTemplate, Ad: DefaultAdTemplate},
		Rules:       DefaultRulesContent,
		Ad:          DefaultAdMessage,
		Schedule:    Schedule{},
		CustomTypes: map[string]string{},
	}
}

// Clone returns a deep copy so callers can mutate it freely.
func (c Config) Clone() Config {
	out := c
	out.Schedule = make(Schedule, len(c.Schedule))
	maps.Copy(out.Schedule, c.Schedule)
	out.CustomTypes = make(map[string]string, len(c.CustomTypes))
	maps.Copy(out.CustomTypes, c.CustomTypes)
	return out
}

// NormalizeOutputFormat lowercases the format and falls back to mp3 for
// anything unsupported. The second result reports whether a fallback happened.
func NormalizeOutputFormat(format string) (string, bool) {
	f := strings.ToLower(strings.TrimSpace(format))
	switch f {
	case FormatMP3, FormatWAV:
		return f, false
	case "":
		return FormatMP3, false
	default:
		return FormatMP3, true
	}
}

// ResolveTemplate returns the template text for k.
func (c Config) ResolveTemplate(k Kind) (string, error) {
	switch k.Tag {
	case FiftyFive:
		return orDefault(c.Templates.FiftyFive, FallbackTemplate), nil
	case HourChange:
		return orDefault(c.Templates.Hour, FallbackTemplate), nil
	case Rules:
		return orDefault(c.Templates.Rules, DefaultRulesTemplate), nil
	case Ad:
		return orDefault(c.Templates.Ad, DefaultAdTemplate), nil
	case Custom:
		if tmpl, ok := c.CustomTypes[k.Name]; ok {
			return tmpl, nil
		}
	}
	return "", fmt.Errorf("%q: %w", k.String(), ErrUnknownType)
}

// CheckSchedule returns one error per schedule entry whose type cannot be resolved.
func (c Config) CheckSchedule() []error {
	var errs []error
	for _, e := range c.Schedule.Entries() {
		if _, err := c.ResolveTemplate(e.Kind); err != nil {
			errs = append(errs, fmt.Errorf("schedule entry %s: %w", e.Time, err))
		}
	}
	return errs
}

// ValidateRequired checks the fields the announcer cannot run without.
func (c Config) ValidateRequired() error {
	var errs []error
	required := []struct {
		field string
		value string
	}{
		{"database.server", c.Database.Server},
		{"database.database", c.Database.Name},
		{"database.username", c.Database.Username},
		{"database.password", c.Database.Password},
		{"tts.voice_id", c.TTS.VoiceID},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, Missing(r.field))
		}
	}
	return errors.Join(errs...)
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
