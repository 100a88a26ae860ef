package tracker

import "errors"

var (
	// ErrNegativeValue is returned when a reading value is below zero.
	ErrNegativeValue = errors.New("reading value must not be negative")

	// ErrNonPositiveUnits is returned when a top-up adds no units.
	ErrNonPositiveUnits = errors.New("units added must be positive")

	// ErrNegativeCost is returned when a top-up cost is below zero.
	ErrNegativeCost = errors.New("cost must not be negative")
)
