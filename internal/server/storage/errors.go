package storage

import "errors"

// Common storage errors
var (
	// ErrNotFound indicates that key is absent in storage
	ErrNotFound = errors.New("key not found")

	// ErrUnavailable indicates transient infrastructure failure.
	// Callers may retry with backoff, it must never be swallowed.
	ErrUnavailable = errors.New("store unavailable")

	// ErrConflict indicates that atomic update could not commit
	// after all retry attempts
	ErrConflict = errors.New("update conflict")
)
