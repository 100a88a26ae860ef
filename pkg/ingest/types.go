// Package ingest validates externally sourced batches of readings and top-ups
// before they are migrated into the store.
//
// Raw records keep every field as a pointer so a missing field can be told
// apart from a zero value. Invalid items are rejected one by one with a reason;
// a rejection never aborts the batch. Accepted items are handed to
// store.MigrateBatch, which inserts them only when their key is absent.
//
// Example usage:
//
//	res := ingest.ValidateAndStage(batch.Readings, batch.TopUps)
//	for _, r := range res.Rejected {
//	    log.Warn("rejected", "kind", r.Kind, "key", r.Key, "reason", r.Reason)
//	}
//	counts, err := st.MigrateBatch(ctx, res.AcceptedReadings, res.AcceptedTopUps)
package ingest

import (
	"time"

	"github.com/0xmhha/meter-tracker/pkg/meter"
	"github.com/0xmhha/meter-tracker/pkg/units"
)

// RawReading is a reading as it arrives from an import source.
type RawReading struct {
	Key       *string      `json:"readingKey"`
	Timestamp *time.Time   `json:"timestamp"`
	Value     *units.Value `json:"value"`
	Period    *string      `json:"period"`
	CreatedAt *time.Time   `json:"createdAt,omitempty"`

	// DecodeErr is set when the source item could not be decoded.
	// The validator rejects such items with ErrMalformedItem.
	DecodeErr error `json:"-"`
}

// RawTopUp is a top-up as it arrives from an import source.
type RawTopUp struct {
	Key              *string      `json:"topUpKey"`
	Timestamp        *time.Time   `json:"timestamp"`
	UnitsAdded       *units.Value `json:"unitsAdded"`
	ResultingReading *units.Value `json:"resultingReading"`
	Cost             *units.Value `json:"cost,omitempty"`
	CreatedAt        *time.Time   `json:"createdAt,omitempty"`

	// DecodeErr is set when the source item could not be decoded.
	DecodeErr error `json:"-"`
}

// Batch is a set of raw records to import together.
type Batch struct {
	Readings []RawReading `json:"readings"`
	TopUps   []RawTopUp   `json:"topUps"`
}

// Len returns the number of raw records in the batch.
func (b Batch) Len() int {
	return len(b.Readings) + len(b.TopUps)
}

// Append adds other's records to b.
func (b *Batch) Append(other Batch) {
	b.Readings = append(b.Readings, other.Readings...)
	b.TopUps = append(b.TopUps, other.TopUps...)
}

// Kind identifies the record type of a rejection.
type Kind string

const (
	KindReading Kind = "reading"
	KindTopUp   Kind = "topup"
)

// Rejection describes one record that did not pass validation.
type Rejection struct {
	// Kind is the record type.
	Kind Kind `json:"kind"`

	// Index is the record's position within its list in the batch.
	Index int `json:"index"`

	// Key is the record key, empty when the key itself was missing.
	Key string `json:"key,omitempty"`

	// Item is the rejected raw record (*RawReading or *RawTopUp).
	Item interface{} `json:"item"`

	// Reason is a human readable explanation.
	Reason string `json:"reason"`
}

// Result is the outcome of validating a batch.
type Result struct {
	AcceptedReadings []meter.Reading `json:"acceptedReadings"`
	AcceptedTopUps   []meter.TopUp   `json:"acceptedTopUps"`
	Rejected         []Rejection     `json:"rejected"`
}
