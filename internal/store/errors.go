package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a required record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrUnavailable is returned when a database cannot be opened, read or
	// decoded. The underlying cause stays in the error chain.
	ErrUnavailable = errors.New("store: unavailable")
)

// unavailable wraps err with ErrUnavailable and the failing operation.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnavailable reports whether err is an unavailable-store error.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
