package meter

import (
	"fmt"
	"strings"
	"time"
)

// Period is one of the three coarse parts of a day readings are bucketed into.
type Period string

const (
	// Morning covers local hours [5, 12).
	Morning Period = "morning"

	// Evening covers local hours [12, 20).
	Evening Period = "evening"

	// Night covers local hours [20, 24) and [0, 5).
	Night Period = "night"
)

// Periods lists all periods in the order they occur within a day.
var Periods = []Period{Morning, Evening, Night}

// Classify maps a wall-clock hour to its period.
// The hour is normalized modulo 24 first, so 25 is treated as 1 and -1 as 23.
func Classify(hour int) Period {
	h := ((hour % 24) + 24) % 24

	switch {
	case h >= 5 && h < 12:
		return Morning
	case h >= 12 && h < 20:
		return Evening
	default:
		return Night
	}
}

// PeriodAt classifies t by its wall-clock hour in loc.
// A nil loc uses t's own location.
func PeriodAt(t time.Time, loc *time.Location) Period {
	if loc != nil {
		t = t.In(loc)
	}
	return Classify(t.Hour())
}

// ParsePeriod parses a persisted period tag. Matching is exact after trimming.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.TrimSpace(s))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return p, nil
}

// Valid reports whether p is one of the known periods.
func (p Period) Valid() bool {
	switch p {
	case Morning, Evening, Night:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (p Period) String() string {
	return string(p)
}

// UnmarshalText rejects unknown tags so a bad period never reaches the store.
func (p *Period) UnmarshalText(text []byte) error {
	parsed, err := ParsePeriod(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
