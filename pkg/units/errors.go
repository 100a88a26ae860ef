package units

import "errors"

var (
	// ErrInvalidNumber is returned when a string is not a finite decimal number.
	ErrInvalidNumber = errors.New("invalid decimal number")

	// ErrNotNumber is returned when a JSON value is not a JSON number.
	ErrNotNumber = errors.New("expected JSON number")
)
