package storage

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/ini.v1"

	"github.com/eugenenazirov/announcer/internal/venue"
)

const (
	sectionDatabase      = "database"
	sectionTimes         = "times"
	sectionAnnouncements = "announcements"
	sectionRules         = "rules"
	sectionAd            = "ad"
	sectionTTS           = "tts"

	customKeyPrefix = "custom_"
)

// Times contain ':' so '=' is the only delimiter. Templates may contain '#'
// and ';', which must not be read as inline comments.
var loadOptions = ini.LoadOptions{
	KeyValueDelimiters:        "=",
	KeyValueDelimiterOnWrite:  "=",
	InsensitiveSections:       true,
	InsensitiveKeys:           true,
	IgnoreInlineComment:       true,
	IgnoreContinuation:        true,
	UnescapeValueDoubleQuotes: true,
}

// Decode parses the venue INI format. Entries with a malformed time or type
// are skipped and reported to logger; they never fail the whole file.
func Decode(data []byte, logger *zap.Logger) (venue.Config, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	f, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return venue.Config{}, fmt.Errorf("parse venue config: %w", err)
	}

	cfg := venue.Default()

	db := f.Section(sectionDatabase)
	cfg.Database = venue.Database{
		Server:   value(db, "server", ""),
		Name:     value(db, "database", ""),
		Username: value(db, "username", ""),
		Password: value(db, "password", ""),
	}

	tts := f.Section(sectionTTS)
	cfg.TTS.VoiceID = value(tts, "voice_id", "")
	format, fellBack := venue.NormalizeOutputFormat(value(tts, "output_format", venue.FormatMP3))
	if fellBack {
		logger.Warn("unsupported output format, using mp3",
			zap.String("output_format", value(tts, "output_format", "")))
	}
	cfg.TTS.OutputFormat = format

	ann := f.Section(sectionAnnouncements)
	cfg.Templates = venue.Templates{
		FiftyFive: value(ann, "fiftyfive", ""),
		Hour:      value(ann, "hour", ""),
		Rules:     value(ann, "rules", venue.DefaultRulesTemplate),
		Ad:        value(ann, "ad", venue.DefaultAdTemplate),
	}
	for _, key := range ann.Keys() {
		name, ok := strings.CutPrefix(key.Name(), customKeyPrefix)
		if !ok {
			continue
		}
		name = venue.SanitizeTypeName(name)
		if name == "" {
			logger.Warn("skipping custom type without a name")
			continue
		}
		cfg.CustomTypes[name] = key.Value()
	}

	cfg.Rules = value(f.Section(sectionRules), "rules_content", venue.DefaultRulesContent)
	cfg.Ad = value(f.Section(sectionAd), "ad_message", venue.DefaultAdMessage)

	for _, key := range f.Section(sectionTimes).Keys() {
		t, err := venue.ParseClock(key.Name())
		if err != nil {
			logger.Warn("skipping schedule entry with malformed time",
				zap.String("time", key.Name()), zap.Error(err))
			continue
		}
		kind, err := venue.ParseKind(key.Value())
		if err != nil {
			logger.Warn("skipping schedule entry with malformed type",
				zap.String("time", key.Name()), zap.String("type", key.Value()), zap.Error(err))
			continue
		}
		cfg.Schedule[t] = kind
	}

	return cfg, nil
}

// Encode renders cfg in the venue INI format. Sections are written in a
// fixed order and times are sorted, so equal configs encode identically.
func Encode(cfg venue.Config) ([]byte, error) {
	f := ini.Empty(loadOptions)

	sections := []struct {
		name string
		keys [][2]string
	}{
		{sectionDatabase, [][2]string{
			{"server", cfg.Database.Server},
			{"database", cfg.Database.Name},
			{"username", cfg.Database.Username},
			{"password", cfg.Database.Password},
		}},
		{sectionTimes, scheduleKeys(cfg.Schedule)},
		{sectionAnnouncements, announcementKeys(cfg)},
		{sectionRules, [][2]string{{"rules_content", cfg.Rules}}},
		{sectionAd, [][2]string{{"ad_message", cfg.Ad}}},
		{sectionTTS, [][2]string{
			{"voice_id", cfg.TTS.VoiceID},
			{"output_format", cfg.TTS.OutputFormat},
		}},
	}

	for _, s := range sections {
		sec, err := f.NewSection(s.name)
		if err != nil {
			return nil, fmt.Errorf("section %s: %w", s.name, err)
		}
		for _, kv := range s.keys {
			if _, err := sec.NewKey(kv[0], quoteValue(kv[1])); err != nil {
				return nil, fmt.Errorf("key %s.%s: %w", s.name, kv[0], err)
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode venue config: %w", err)
	}
	return buf.Bytes(), nil
}

func scheduleKeys(s venue.Schedule) [][2]string {
	entries := s.Entries()
	out := make([][2]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, [2]string{e.Time.String(), e.Kind.String()})
	}
	return out
}

func announcementKeys(cfg venue.Config) [][2]string {
	out := [][2]string{
		{"fiftyfive", cfg.Templates.FiftyFive},
		{"hour", cfg.Templates.Hour},
		{"rules", cfg.Templates.Rules},
		{"ad", cfg.Templates.Ad},
	}

	names := make([]string, 0, len(cfg.CustomTypes))
	for name := range cfg.CustomTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, [2]string{customKeyPrefix + name, cfg.CustomTypes[name]})
	}
	return out
}

// quoteValue protects values the reader would otherwise alter: a leading
// quote is stripped and surrounding blanks are trimmed. Such values are
// written inside double quotes with inner quotes escaped, which the
// UnescapeValueDoubleQuotes reader reverses exactly. Values holding a
// newline or backtick are left to ini's triple-quote form.
func quoteValue(v string) string {
	if v == "" || strings.ContainsAny(v, "\n`") {
		return v
	}
	if strings.TrimSpace(v) == v && v[0] != '"' && v[0] != '\'' {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
}

// value returns the raw text of key, or fallback when the key is absent.
// Raw text skips ini's %(name)s interpolation, which templates must not trigger.
func value(sec *ini.Section, key, fallback string) string {
	if !sec.HasKey(key) {
		return fallback
	}
	return sec.Key(key).Value()
}
