// Package apperror defines the application's error taxonomy.
//
// Services and repositories return these instead of raw driver errors so
// that callers can branch with errors.Is without knowing which storage
// backend produced the failure. The HTTP layer maps them to status codes.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
)

// AppError pairs a sentinel cause with a human-readable message.
// Unwrap makes errors.Is(err, ErrNotFound) work through the wrapper.
type AppError struct {
	Err     error  // one of the sentinels above
	Message string // safe to show to a user
	Field   string // optional: the input field at fault
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound reports that a record does not exist. Point lookups and
// authentication use this as an explicit absence signal, not a failure —
// callers are expected to branch on it.
func NotFound(resource, key string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, key),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a uniqueness or version violation: registering an email
// that already exists, or updating a row somebody else changed first.
func Conflict(resource, key string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict: %s", resource, key),
	}
}

// Forbidden reports that the caller is not allowed to perform the operation.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}
