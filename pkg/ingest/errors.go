package ingest

import "errors"

// Validation failures. Rejection.Reason carries their text.
var (
	ErrMissingKey       = errors.New("missing key")
	ErrMissingTimestamp = errors.New("missing timestamp")
	ErrMissingValue     = errors.New("missing value")
	ErrMissingPeriod    = errors.New("missing period")
	ErrMissingUnits     = errors.New("missing unitsAdded")
	ErrMissingResult    = errors.New("missing resultingReading")
	ErrNegativeValue    = errors.New("value must not be negative")
	ErrNonPositiveUnits = errors.New("unitsAdded must be positive")
	ErrDuplicateKey     = errors.New("duplicate key in batch")
	ErrMalformedItem    = errors.New("malformed item")
)
