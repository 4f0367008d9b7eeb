// Package apperror holds the error taxonomy shared by the listing and review cores.
package apperror

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated means no verified principal was supplied for an operation that needs one.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden means the principal does not own the resource it tried to change.
	ErrForbidden = errors.New("action forbidden")
	// ErrInvalidInput is the parent of every ValidationError.
	ErrInvalidInput = errors.New("invalid input data")
	// ErrNotFound means the referenced id does not exist.
	ErrNotFound = errors.New("entity not found")
	// ErrStorage means the asset store rejected an upload or removal.
	ErrStorage = errors.New("asset storage failure")
	// ErrConflict means the record changed between load and commit.
	ErrConflict = errors.New("concurrent modification conflict")
)

// ValidationError reports a violated field constraint.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidInput, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// Invalid builds a ValidationError for field.
func Invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Storage wraps err as a storage failure.
func Storage(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}

// FieldOf returns the offending field name if err is a ValidationError.
func FieldOf(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Field
	}
	return ""
}
