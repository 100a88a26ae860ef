package discovery

import "errors"

// Common errors returned by the discovery package.
var (
	// ErrDirNotFound is returned when an import directory does not exist.
	ErrDirNotFound = errors.New("import directory not found")

	// ErrInvalidPath is returned when a path is invalid or not a directory.
	ErrInvalidPath = errors.New("invalid or inaccessible path")
)
