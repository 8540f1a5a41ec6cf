package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state transition")
	ErrValidation   = errors.New("validation failed")
	ErrRateLimited  = errors.New("rate limited")
	ErrUnauthorized = errors.New("unauthorized")
	ErrLockHeld     = errors.New("lock held")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError for field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// StateError reports a transition whose precondition on the target movement
// did not hold.
type StateError struct {
	ID     int64
	Expect string
	Actual string
}

func (e *StateError) Error() string {
	if e.Actual == "" {
		return fmt.Sprintf("invalid state transition: movement %d: expected %s", e.ID, e.Expect)
	}
	return fmt.Sprintf("invalid state transition: movement %d: expected %s, got %s", e.ID, e.Expect, e.Actual)
}

func (e *StateError) Unwrap() error { return ErrInvalidState }
