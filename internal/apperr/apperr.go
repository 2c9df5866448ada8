// Package apperr defines the error taxonomy shared across the service.
// Errors are classified by wrapping one of the sentinel kinds so that callers
// (HTTP handlers, the job coordinator) can map failures programmatically
// instead of string-matching messages.
package apperr

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Wrap with E or fmt.Errorf("...: %w", kind).
var (
	// ErrValidation marks malformed caller input (missing fields, bad values).
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks lookups for unknown entries or jobs.
	ErrNotFound = errors.New("not found")
	// ErrExternal marks failures of the embedding, language-model, or
	// persistence collaborators.
	ErrExternal = errors.New("external service error")
	// ErrConfiguration marks invalid parameters that are fatal at the call
	// that triggered them (bad chunking parameters, unknown period).
	ErrConfiguration = errors.New("configuration error")
)

// E returns an error with a formatted message wrapping the given kind.
func E(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}

// Kind returns a stable identifier for the error's kind, or "internal" when
// the error wraps none of the sentinels.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrExternal):
		return "external_service"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "internal"
	}
}
