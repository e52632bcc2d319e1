package storage

import "github.com/pkg/errors"

var (
	// ErrNotFound is returned when no row matches the requested id.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a guarded update loses to a concurrent
	// transition: the row's current state no longer matches the guard.
	ErrConflict = errors.New("conflicting state transition")

	// ErrInvalidInput is returned for malformed source URLs and
	// unrecognized download types at submission time.
	ErrInvalidInput = errors.New("invalid input")
)
