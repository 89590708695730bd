package scheduler

import (
	"time"

	"github.com/eugenenazirov/announcer/internal/venue"
)

// Due is the next occurrence of a schedule entry together with the template
// it resolved to when the plan was built.
type Due struct {
	Entry    venue.ScheduleEntry
	Template string
	At       time.Time
}

// Scheduler describes the behaviour required from a schedule plan.
type Scheduler interface {
	Next(from time.Time) (Due, error)
}
