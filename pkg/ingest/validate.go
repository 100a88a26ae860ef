package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/0xmhha/meter-tracker/pkg/meter"
)

// ValidateAndStage checks every raw record and converts the valid ones.
//
// An item the source could not decode is rejected as malformed.
// A reading needs a key, timestamp, value and a known period; its value must
// not be negative. A top-up needs a key, timestamp, positive unitsAdded and
// resultingReading. Within one batch the first record with a given key wins
// and later ones are rejected as duplicates.
//
// Validation is pure and deterministic: the same batch always yields the same
// accepted set. Whether an accepted item is new is decided by the store.
func ValidateAndStage(readings []RawReading, topUps []RawTopUp) Result {
	res := Result{
		AcceptedReadings: make([]meter.Reading, 0, len(readings)),
		AcceptedTopUps:   make([]meter.TopUp, 0, len(topUps)),
		Rejected:         make([]Rejection, 0),
	}

	seen := make(map[string]struct{}, len(readings))
	for i := range readings {
		raw := &readings[i]
		r, err := validateReading(raw, seen)
		if err != nil {
			res.Rejected = append(res.Rejected, Rejection{
				Kind:   KindReading,
				Index:  i,
				Key:    deref(raw.Key),
				Item:   raw,
				Reason: err.Error(),
			})
			continue
		}
		res.AcceptedReadings = append(res.AcceptedReadings, r)
	}

	seen = make(map[string]struct{}, len(topUps))
	for i := range topUps {
		raw := &topUps[i]
		t, err := validateTopUp(raw, seen)
		if err != nil {
			res.Rejected = append(res.Rejected, Rejection{
				Kind:   KindTopUp,
				Index:  i,
				Key:    deref(raw.Key),
				Item:   raw,
				Reason: err.Error(),
			})
			continue
		}
		res.AcceptedTopUps = append(res.AcceptedTopUps, t)
	}

	return res
}

func validateReading(raw *RawReading, seen map[string]struct{}) (meter.Reading, error) {
	if raw.DecodeErr != nil {
		return meter.Reading{}, fmt.Errorf("%w: %v", ErrMalformedItem, raw.DecodeErr)
	}
	key := strings.TrimSpace(deref(raw.Key))
	switch {
	case key == "":
		return meter.Reading{}, ErrMissingKey
	case raw.Timestamp == nil || raw.Timestamp.IsZero():
		return meter.Reading{}, ErrMissingTimestamp
	case raw.Value == nil:
		return meter.Reading{}, ErrMissingValue
	case raw.Period == nil || strings.TrimSpace(*raw.Period) == "":
		return meter.Reading{}, ErrMissingPeriod
	}

	period, err := meter.ParsePeriod(*raw.Period)
	if err != nil {
		return meter.Reading{}, err
	}
	if raw.Value.Sign() < 0 {
		return meter.Reading{}, ErrNegativeValue
	}
	if _, dup := seen[key]; dup {
		return meter.Reading{}, ErrDuplicateKey
	}
	seen[key] = struct{}{}

	return meter.Reading{
		Key:       key,
		Timestamp: *raw.Timestamp,
		Value:     *raw.Value,
		Period:    period,
		CreatedAt: derefTime(raw.CreatedAt),
	}, nil
}

func validateTopUp(raw *RawTopUp, seen map[string]struct{}) (meter.TopUp, error) {
	if raw.DecodeErr != nil {
		return meter.TopUp{}, fmt.Errorf("%w: %v", ErrMalformedItem, raw.DecodeErr)
	}
	key := strings.TrimSpace(deref(raw.Key))
	switch {
	case key == "":
		return meter.TopUp{}, ErrMissingKey
	case raw.Timestamp == nil || raw.Timestamp.IsZero():
		return meter.TopUp{}, ErrMissingTimestamp
	case raw.UnitsAdded == nil:
		return meter.TopUp{}, ErrMissingUnits
	case raw.ResultingReading == nil:
		return meter.TopUp{}, ErrMissingResult
	case raw.UnitsAdded.Sign() <= 0:
		return meter.TopUp{}, ErrNonPositiveUnits
	}

	if _, dup := seen[key]; dup {
		return meter.TopUp{}, ErrDuplicateKey
	}
	seen[key] = struct{}{}

	t := meter.TopUp{
		Key:              key,
		Timestamp:        *raw.Timestamp,
		UnitsAdded:       *raw.UnitsAdded,
		ResultingReading: *raw.ResultingReading,
		CreatedAt:        derefTime(raw.CreatedAt),
	}
	if raw.Cost != nil {
		cost := *raw.Cost
		t.Cost = &cost
	}
	return t, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
