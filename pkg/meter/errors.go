package meter

import "errors"

// ErrInvalidPeriod is returned when a period tag is not morning, evening or night.
var ErrInvalidPeriod = errors.New("invalid period")
