package settings

import (
	"errors"
	"net/url"
	"strings"

	"github.com/eugenenazirov/announcer/internal/venue"
)

// requiredFields must be present in a full-config form submission.
var requiredFields = []string{
	"db_server", "db_name", "db_username", "db_password",
	"fiftyfive_template", "hour_template", "voice_id",
	"times", "customTypes",
}

// Form is a full-config submission from the web form. Optional fields left
// nil keep their current value.
type Form struct {
	DBServer          string
	DBName            string
	DBUsername        string
	DBPassword        string
	FiftyFiveTemplate string
	HourTemplate      string
	VoiceID           string
	Times             string
	CustomTypes       string

	RulesTemplate *string
	AdTemplate    *string
	RulesContent  *string
	AdMessage     *string
	OutputFormat  *string
}

// ParseForm reads a Form from submitted values. Every required field must be
// present, although it may be empty.
func ParseForm(values url.Values) (Form, error) {
	var errs []error
	for _, field := range requiredFields {
		if _, ok := values[field]; !ok {
			errs = append(errs, venue.Missing(field))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return Form{}, err
	}

	optional := func(field string) *string {
		if _, ok := values[field]; !ok {
			return nil
		}
		v := values.Get(field)
		return &v
	}

	return Form{
		DBServer:          strings.TrimSpace(values.Get("db_server")),
		DBName:            strings.TrimSpace(values.Get("db_name")),
		DBUsername:        strings.TrimSpace(values.Get("db_username")),
		DBPassword:        values.Get("db_password"),
		FiftyFiveTemplate: values.Get("fiftyfive_template"),
		HourTemplate:      values.Get("hour_template"),
		VoiceID:           strings.TrimSpace(values.Get("voice_id")),
		Times:             values.Get("times"),
		CustomTypes:       values.Get("customTypes"),
		RulesTemplate:     optional("rules_template"),
		AdTemplate:        optional("ad_template"),
		RulesContent:      optional("rules_content"),
		AdMessage:         optional("ad_message"),
		OutputFormat:      optional("output_format"),
	}, nil
}

// apply builds the configuration described by f on top of current.
func (f Form) apply(current venue.Config) (venue.Config, error) {
	cfg := current.Clone()

	var errs []error
	required := []struct {
		field string
		value string
	}{
		{"db_server", f.DBServer},
		{"db_name", f.DBName},
		{"db_username", f.DBUsername},
		{"db_password", f.DBPassword},
		{"voice_id", f.VoiceID},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, venue.Missing(r.field))
		}
	}

	schedule, err := venue.ParseScheduleText(f.Times)
	if err != nil {
		errs = append(errs, err)
	}
	customTypes, err := venue.ParseCustomTypesText(f.CustomTypes)
	if err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return venue.Config{}, err
	}

	cfg.Database = venue.Database{
		Server:   f.DBServer,
		Name:     f.DBName,
		Username: f.DBUsername,
		Password: f.DBPassword,
	}
	cfg.Templates.FiftyFive = f.FiftyFiveTemplate
	cfg.Templates.Hour = f.HourTemplate
	cfg.TTS.VoiceID = f.VoiceID
	cfg.Schedule = schedule
	cfg.CustomTypes = customTypes

	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&cfg.Templates.Rules, f.RulesTemplate)
	set(&cfg.Templates.Ad, f.AdTemplate)
	set(&cfg.Rules, f.RulesContent)
	set(&cfg.Ad, f.AdMessage)
	if f.OutputFormat != nil {
		format, fellBack := venue.NormalizeOutputFormat(*f.OutputFormat)
		if fellBack {
			return venue.Config{}, &venue.ValidationError{Field: "output_format", Reason: "must be mp3 or wav"}
		}
		cfg.TTS.OutputFormat = format
	}

	if errs := cfg.CheckSchedule(); len(errs) > 0 {
		return venue.Config{}, errors.Join(errs...)
	}
	return cfg, nil
}
