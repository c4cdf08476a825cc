package service

import (
	"errors"
	"fmt"
)

// Sentinel error kinds the handler layer maps to HTTP statuses.
var (
	// ErrValidation marks rejected input. Wrap it with detail, or use
	// ValidationError when per-row failures must travel with it.
	ErrValidation = errors.New("validation failed")

	// ErrInconsistentRange marks a write that would leave persisted
	// months outside the project range.
	ErrInconsistentRange = errors.New("inconsistent project range")

	// ErrConflict marks unique-key and overlap collisions.
	ErrConflict = errors.New("conflict")
)

// ValidationError carries structured field- or row-level detail.
type ValidationError struct {
	Message string
	Details interface{}
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func validationf(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
