package announcer

import (
	"strings"

	"github.com/eugenenazirov/announcer/internal/venue"
)

const colorPlaceholder = "{color}"

// Fields are the values substituted into a message template.
type Fields struct {
	Time         venue.ClockTime
	Color        string
	RulesContent string
	AdMessage    string
}

// NeedsColor reports whether tmpl references the color placeholder.
func NeedsColor(tmpl string) bool {
	return strings.Contains(tmpl, colorPlaceholder)
}

// Render substitutes the supported placeholders in one pass. Unknown
// placeholders such as {weather} are left as written.
func Render(tmpl string, f Fields) string {
	return strings.NewReplacer(
		"{time}", f.Time.Format12h(),
		colorPlaceholder, f.Color,
		"{rules_content}", f.RulesContent,
		"{ad_message}", f.AdMessage,
	).Replace(tmpl)
}
