package dispatch

import (
	"errors"
	"fmt"

	"github.com/mr1hm/go-alert-dispatch/internal/audience"
	"github.com/mr1hm/go-alert-dispatch/internal/repository"
)

var (
	ErrValidation           = errors.New("invalid alert")
	ErrDirectoryUnavailable = audience.ErrDirectoryUnavailable
	ErrPersistence          = errors.New("alert could not be stored")
	ErrAlertNotFound        = repository.ErrNotFound
)

// ValidationError is returned before any side effect when an intent is malformed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
