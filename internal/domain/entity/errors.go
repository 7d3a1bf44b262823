package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain layer operations on watch targets and changes.
var (
	// ErrNotFound indicates that a requested target was not found
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidationFailed indicates that validation checks have failed
	ErrValidationFailed = errors.New("validation failed")
)

// ValidationError carries the target field that failed validation alongside
// the reason, so callers can report exactly which input to fix.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}
