// Package apperr defines the error classes shared by the store, the calendar
// service and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks missing or malformed caller input.
	ErrValidation = errors.New("validation error")

	// ErrConstraintViolation marks a write rejected by a uniqueness or
	// referential constraint that insert-or-ignore did not absorb.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrStoreUnavailable marks a persistence failure unrelated to input.
	ErrStoreUnavailable = errors.New("store unavailable")

	ErrNotFound = errors.New("not found")
)

func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func Constraint(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrConstraintViolation, err)
}

func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

func NotFound(what string) error {
	return fmt.Errorf("%s: %w", what, ErrNotFound)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsConstraint(err error) bool {
	return errors.Is(err, ErrConstraintViolation)
}

func IsUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
