package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when a conversion record does not exist.
	ErrNotFound = errors.New("conversion record not found")

	// ErrConflict is returned when a record with the given ID already exists.
	ErrConflict = errors.New("conversion record already exists")
)
