package venue

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned when a required field is missing or malformed.
	ErrValidation = errors.New("invalid configuration")
	// ErrUnknownType is returned when a schedule entry references a type with no template.
	ErrUnknownType = errors.New("unknown announcement type")
	// ErrNotFound is returned when a schedule entry or custom type does not exist.
	ErrNotFound = errors.New("not found")
)

// ValidationError describes a single rejected field. It matches ErrValidation
// with errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Missing builds the error returned for an absent required field.
func Missing(field string) error {
	return invalid(field, "is required")
}
