// Package meter defines the persisted entities of the tracker: meter readings,
// token top-ups and the daily period a reading belongs to.
//
// Example usage:
//
//	at := time.Now()
//	r := meter.Reading{
//	    Key:       uuid.NewString(),
//	    Timestamp: at,
//	    Value:     units.MustParse("1523.4"),
//	    Period:    meter.PeriodAt(at, time.Local),
//	}
package meter

import (
	"time"

	"github.com/0xmhha/meter-tracker/pkg/units"
)

// Reading is a point-in-time cumulative meter value.
type Reading struct {
	// ID is the surrogate id assigned by the store (0 before insertion).
	ID uint64 `json:"id,omitempty"`

	// Key is the unique, immutable reading identifier.
	Key string `json:"readingKey"`

	// Timestamp is when the meter was read. It keeps its zone offset.
	Timestamp time.Time `json:"timestamp"`

	// Value is the cumulative counter. It is not monotonic: top-ups raise it.
	Value units.Value `json:"value"`

	// Period is decided once at write time and persisted verbatim.
	Period Period `json:"period"`

	// CreatedAt is the record creation time. Informational only.
	CreatedAt time.Time `json:"createdAt"`

	// Synthetic marks readings inserted alongside a top-up.
	Synthetic bool `json:"synthetic,omitempty"`
}

// Date returns the reading's calendar day (YYYY-MM-DD) in its own offset.
func (r Reading) Date() string {
	return r.Timestamp.Format(DateLayout)
}

// Month returns the reading's calendar month (YYYY-MM) in its own offset.
func (r Reading) Month() string {
	return r.Timestamp.Format(MonthLayout)
}

// TopUp is a prepaid token purchase that raises the counter out of band.
type TopUp struct {
	// ID is the surrogate id assigned by the store.
	ID uint64 `json:"id,omitempty"`

	// Key is the unique top-up identifier.
	Key string `json:"topUpKey"`

	// Timestamp is when the tokens were loaded.
	Timestamp time.Time `json:"timestamp"`

	// UnitsAdded is the purchased quantity (always positive).
	UnitsAdded units.Value `json:"unitsAdded"`

	// ResultingReading is the counter right after the top-up:
	// latest known reading plus UnitsAdded, computed at write time.
	ResultingReading units.Value `json:"resultingReading"`

	// Cost is the optional amount paid.
	Cost *units.Value `json:"cost,omitempty"`

	// CreatedAt is the record creation time.
	CreatedAt time.Time `json:"createdAt"`
}

// Layouts used for day and month buckets.
const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)
