package venue

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClockTime is a wall-clock time of day without a date.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClock parses "H:MM" or "HH:MM" in 24-hour notation.
func ParseClock(raw string) (ClockTime, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ClockTime{}, Missing("time")
	}

	hh, mm, ok := strings.Cut(raw, ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 || !digits(hh) || !digits(mm) {
		return ClockTime{}, invalid("time", "%q is not in HH:MM format", raw)
	}

	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return ClockTime{}, invalid("time", "%q has an invalid hour", raw)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return ClockTime{}, invalid("time", "%q has an invalid minute", raw)
	}

	return ClockTime{Hour: hour, Minute: minute}, nil
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// MustParseClock is ParseClock for constants and tests.
func MustParseClock(raw string) ClockTime {
	ct, err := ParseClock(raw)
	if err != nil {
		panic(err)
	}
	return ct
}

// String returns the zero-padded 24-hour form used in the config file.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Format12h returns the spoken form, e.g. "11:00 AM" or "1:30 PM".
func (c ClockTime) Format12h() string {
	period := "AM"
	if c.Hour >= 12 {
		period = "PM"
	}
	hour := c.Hour % 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%d:%02d %s", hour, c.Minute, period)
}

// Minutes returns the number of minutes since midnight.
func (c ClockTime) Minutes() int {
	return c.Hour*60 + c.Minute
}

// Before orders clock times within a day.
func (c ClockTime) Before(other ClockTime) bool {
	return c.Minutes() < other.Minutes()
}

// On returns the instant this clock time occurs on the calendar day of t, in t's location.
func (c ClockTime) On(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, t.Location())
}

// ClockOf returns the clock time of t, dropping seconds.
func ClockOf(t time.Time) ClockTime {
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}
}
