package venue

import (
	"strings"
	"unicode"
)

// Tag identifies the variant of a Kind.
type Tag int

const (
	// FiftyFive is the 55-minute warning.
	FiftyFive Tag = iota + 1
	// HourChange announces the top of the hour.
	HourChange
	// Rules reads the venue rules.
	Rules
	// Ad plays the advertisement text.
	Ad
	// Custom uses a user-defined template.
	Custom
)

const customPrefix = "custom:"

// Kind is the announcement type of a schedule entry.
type Kind struct {
	Tag  Tag
	Name string // custom type name, empty for built-ins
}

var builtinText = map[Tag]string{
	FiftyFive:  ":55",
	HourChange: "hour",
	Rules:      "rules",
	Ad:         "ad",
}

var builtinAliases = map[string]Tag{
	":55":       FiftyFive,
	"55":        FiftyFive,
	"fiftyfive": FiftyFive,
	"hour":      HourChange,
	"rules":     Rules,
	"ad":        Ad,
}

// BuiltinKinds lists the fixed announcement categories in display order.
func BuiltinKinds() []Kind {
	return []Kind{{Tag: FiftyFive}, {Tag: HourChange}, {Tag: Rules}, {Tag: Ad}}
}

// CustomKind returns the Kind for a user-defined template.
func CustomKind(name string) Kind {
	return Kind{Tag: Custom, Name: name}
}

// ParseKind parses the type text stored in the [times] section. Custom names
// are sanitized the same way AddCustomType stores them.
func ParseKind(raw string) (Kind, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Kind{}, Missing("type")
	}
	if tag, ok := builtinAliases[strings.ToLower(raw)]; ok {
		return Kind{Tag: tag}, nil
	}

	name := raw
	if strings.HasPrefix(strings.ToLower(raw), customPrefix) {
		name = raw[len(customPrefix):]
	}
	name = SanitizeTypeName(name)
	if name == "" {
		return Kind{}, invalid("type", "%q names no custom type", raw)
	}
	return CustomKind(name), nil
}

// String returns the canonical text written to the config file.
func (k Kind) String() string {
	if k.Tag == Custom {
		return customPrefix + k.Name
	}
	return builtinText[k.Tag]
}

// IsBuiltin reports whether k is one of the four fixed categories.
func (k Kind) IsBuiltin() bool {
	_, ok := builtinText[k.Tag]
	return ok
}

// SanitizeTypeName normalises a custom type name for use as a config key:
// lowercase, alphanumerics kept, everything else replaced with '_'.
func SanitizeTypeName(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}
