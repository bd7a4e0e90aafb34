package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an event, user or notification does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned on ownership violations and self-joins.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict is returned when a user joins an event twice or a unique field is taken.
	ErrConflict = errors.New("already exists")
	// ErrCapacityExceeded is returned when an event has no free attendee slot.
	ErrCapacityExceeded = errors.New("event is full")
	// ErrNotAttending is returned when withdrawing from an event the user has not joined.
	ErrNotAttending = errors.New("user is not attending this event")
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
)

// ValidationError describes a single rejected field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrValidation) true.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a *ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFound wraps ErrNotFound with the missing resource.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}

// Forbidden wraps ErrForbidden with a reason.
func Forbidden(reason string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, reason)
}

// IsDomain reports whether err belongs to the domain taxonomy rather than
// being an unexpected store failure.
func IsDomain(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrNotAttending) ||
		errors.Is(err, ErrValidation)
}
