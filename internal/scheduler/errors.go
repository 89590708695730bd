package scheduler

import (
	"errors"
	"fmt"

	"github.com/eugenenazirov/announcer/internal/venue"
)

var (
	// ErrEmptySchedule is returned by Next when no entry can ever become due.
	ErrEmptySchedule = errors.New("schedule has no playable entries")
)

// SkippedEntryError reports a schedule entry that was left out of a plan.
type SkippedEntryError struct {
	Entry venue.ScheduleEntry
	Err   error
}

func (e *SkippedEntryError) Error() string {
	return fmt.Sprintf("schedule entry %s = %s skipped: %v", e.Entry.Time, e.Entry.Kind, e.Err)
}

func (e *SkippedEntryError) Unwrap() error {
	return e.Err
}
