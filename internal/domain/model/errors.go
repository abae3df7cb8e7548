package model

import "errors"

// Sentinel kinds shared by every layer. Adapters wrap these with %w so
// callers can branch with errors.Is.
var (
	// ErrNotFound is returned when a profile, place or stored ranking does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDependency marks a transport-level failure of an external service.
	ErrDependency = errors.New("dependency unavailable")
	// ErrPersistence marks a failure of the backing store.
	ErrPersistence = errors.New("persistence failure")
	// ErrInvalidInput marks a malformed request.
	ErrInvalidInput = errors.New("invalid input")
)
