package venue

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ParseScheduleText parses the "HH:MM = type" block edited in the web form.
// Blank lines and lines starting with '#' are ignored. Later lines win when
// a time repeats.
func ParseScheduleText(block string) (Schedule, error) {
	schedule := Schedule{}
	err := eachPair("times", block, func(line int, key, value string) error {
		t, err := ParseClock(key)
		if err != nil {
			return lineError("times", line, err)
		}
		k, err := ParseKind(value)
		if err != nil {
			return lineError("times", line, err)
		}
		schedule[t] = k
		return nil
	})
	if err != nil {
		return nil, err
	}
	return schedule, nil
}

// FormatScheduleText renders a schedule in the form accepted by ParseScheduleText.
func FormatScheduleText(s Schedule) string {
	lines := make([]string, 0, len(s))
	for _, e := range s.Entries() {
		lines = append(lines, fmt.Sprintf("%s = %s", e.Time, e.Kind))
	}
	return strings.Join(lines, "\n")
}

// ParseCustomTypesText parses the "name = template" block edited in the web form.
func ParseCustomTypesText(block string) (map[string]string, error) {
	types := map[string]string{}
	err := eachPair("customTypes", block, func(line int, key, value string) error {
		name := SanitizeTypeName(key)
		if name == "" {
			return lineError("customTypes", line, Missing("name"))
		}
		if value == "" {
			return lineError("customTypes", line, Missing("template"))
		}
		types[name] = value
		return nil
	})
	if err != nil {
		return nil, err
	}
	return types, nil
}

// FormatCustomTypesText renders custom types sorted by name.
func FormatCustomTypesText(types map[string]string) string {
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s = %s", name, types[name]))
	}
	return strings.Join(lines, "\n")
}

func eachPair(field, block string, fn func(line int, key, value string) error) error {
	for i, raw := range strings.Split(block, "\n") {
		line := strings.TrimSpace(strings.TrimRight(raw, "\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return invalid(field, "line %d: expected \"key = value\", got %q", i+1, line)
		}
		if err := fn(i+1, strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return err
		}
	}
	return nil
}

func lineError(field string, line int, err error) error {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return invalid(field, "line %d: %s", line, verr.Error())
	}
	return fmt.Errorf("%s line %d: %w", field, line, err)
}
