package store

import "errors"

var (
	// ErrUnavailable is returned by every operation of a store that cannot
	// currently be reached.
	ErrUnavailable = errors.New("store unavailable")

	// ErrDuplicateKey is returned when appending a record whose key exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidRecord is returned when a record misses a required field.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrUnknownBackend is returned for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown storage backend")
)
