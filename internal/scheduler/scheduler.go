package scheduler

import (
	"time"

	"github.com/eugenenazirov/announcer/internal/venue"
)

type resolvedEntry struct {
	entry    venue.ScheduleEntry
	template string
}

// Plan is an immutable snapshot of the schedule built from one loaded
// configuration. A new Plan is built whenever the configuration is reloaded.
type Plan struct {
	entries []resolvedEntry
	skipped []error
}

// New builds a plan from cfg. Entries whose type cannot be resolved to a
// template are left out and reported by Skipped.
func New(cfg venue.Config) *Plan {
	p := &Plan{}
	for _, e := range cfg.Schedule.Entries() {
		tmpl, err := cfg.ResolveTemplate(e.Kind)
		if err != nil {
			p.skipped = append(p.skipped, &SkippedEntryError{Entry: e, Err: err})
			continue
		}
		p.entries = append(p.entries, resolvedEntry{entry: e, template: tmpl})
	}
	return p
}

// Len returns the number of playable entries.
func (p *Plan) Len() int {
	return len(p.entries)
}

// Skipped lists the entries left out of the plan.
func (p *Plan) Skipped() []error {
	return p.skipped
}

// Next returns the earliest occurrence at or after from. Occurrences are
// computed in from's location, so local clock changes are followed. Entries
// are kept in time-then-type order, so the first of equal occurrences wins.
func (p *Plan) Next(from time.Time) (Due, error) {
	if len(p.entries) == 0 {
		return Due{}, ErrEmptySchedule
	}

	var (
		best  Due
		found bool
	)
	for _, r := range p.entries {
		at := occurrence(r.entry.Time, from)
		if !found || at.Before(best.At) {
			best = Due{Entry: r.entry, Template: r.template, At: at}
			found = true
		}
	}
	return best, nil
}

func occurrence(c venue.ClockTime, from time.Time) time.Time {
	at := c.On(from)
	if at.Before(from) {
		at = c.On(from.AddDate(0, 0, 1))
	}
	return at
}
