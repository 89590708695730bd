// Package colorlookup fetches the wristband color whose session ends next,
// which the 55-minute and hour-change announcements read out.
package colorlookup

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrLookup wraps failures talking to the color database.
	ErrLookup = errors.New("color lookup failed")
	// ErrNoColor is returned when the lookup succeeded but yielded no color.
	ErrNoColor = errors.New("no color available")
)

// Result is the color token and the full message it was taken from, e.g.
// "Red" from "Red wristbands will be expiring at 11:00!".
type Result struct {
	Color   string
	Message string
}

// Lookup returns the color relevant at a point in time.
type Lookup interface {
	Lookup(ctx context.Context, at time.Time) (Result, error)
}

// ParseMessage takes the first word of message as the color.
func ParseMessage(message string) (Result, error) {
	message = strings.TrimSpace(message)
	fields := strings.Fields(message)
	if len(fields) == 0 {
		return Result{}, ErrNoColor
	}
	return Result{Color: fields[0], Message: message}, nil
}

// Static returns a fixed message. An empty message yields ErrNoColor, which
// is how deployments without a color database are represented.
type Static struct {
	Message string
}

// Lookup implements Lookup.
func (s Static) Lookup(context.Context, time.Time) (Result, error) {
	return ParseMessage(s.Message)
}
