// Package store persists readings and top-ups.
//
// Three backends implement the Store contract: a BoltDB file (the default), a
// PostgreSQL database reached through database/sql and the pgx driver, and an
// in-memory store for tests and throwaway runs. Callers never hold a backend
// directly; they go through a Handle, which reports whether the store is
// Connected or Unavailable.
//
// Example usage:
//
//	h := store.Open(ctx, store.Config{
//	    Backend: store.BackendBolt,
//	    Path:    "~/.config/meter-tracker/meter.db",
//	}, logger.Default())
//	defer h.Close()
//
//	if h.Status() != store.Connected {
//	    log.Warn("store unavailable, running degraded", "error", h.Err())
//	}
//	readings, err := h.ListReadings(ctx)
package store

import (
	"context"
	"time"

	"github.com/0xmhha/meter-tracker/pkg/meter"
	"github.com/0xmhha/meter-tracker/pkg/units"
)

// Store is the persistence contract the tracker depends on.
type Store interface {
	// ListReadings returns all readings ascending by timestamp.
	ListReadings(ctx context.Context) ([]meter.Reading, error)

	// ListTopUps returns all top-ups ascending by timestamp.
	ListTopUps(ctx context.Context) ([]meter.TopUp, error)

	// AppendReading inserts one reading.
	//
	// The caller supplies Key, Timestamp, Value and Period. The store assigns
	// ID and CreatedAt and returns the stored record.
	//
	// Returns ErrDuplicateKey if the key already exists.
	AppendReading(ctx context.Context, r meter.Reading) (meter.Reading, error)

	// AppendTopUp records a top-up.
	//
	// ResultingReading is computed as the latest known reading plus
	// UnitsAdded. A synthetic reading carrying ResultingReading is written
	// in the same transaction.
	AppendTopUp(ctx context.Context, in NewTopUp) (meter.TopUp, error)

	// MigrateBatch inserts every record whose key is absent and skips the
	// rest. Existing records are never overwritten. The batch is applied in
	// one transaction: on any write failure nothing is stored.
	MigrateBatch(ctx context.Context, readings []meter.Reading, topUps []meter.TopUp) (MigrationResult, error)

	// Close releases the backend.
	Close() error
}

// NewTopUp is the input to Store.AppendTopUp.
type NewTopUp struct {
	// Key identifies the top-up.
	Key string

	// Timestamp is when the tokens were loaded.
	Timestamp time.Time

	// UnitsAdded must be positive.
	UnitsAdded units.Value

	// Cost is optional.
	Cost *units.Value

	// SyntheticKey is the key of the synthetic reading.
	SyntheticKey string

	// Period tags the synthetic reading.
	Period meter.Period
}

// MigrationResult counts what MigrateBatch inserted and skipped.
type MigrationResult struct {
	InsertedReadings int `json:"insertedReadings"`
	InsertedTopUps   int `json:"insertedTopUps"`
	SkippedReadings  int `json:"skippedReadings"`
	SkippedTopUps    int `json:"skippedTopUps"`
}

// Inserted returns the total number of new records.
func (m MigrationResult) Inserted() int {
	return m.InsertedReadings + m.InsertedTopUps
}

// Skipped returns the total number of records that already existed.
func (m MigrationResult) Skipped() int {
	return m.SkippedReadings + m.SkippedTopUps
}

// Backend names a storage implementation.
type Backend string

const (
	BackendBolt     Backend = "bolt"
	BackendPostgres Backend = "postgres"
	BackendMemory   Backend = "memory"
)

// Config selects and configures a backend.
type Config struct {
	// Backend is bolt, postgres or memory (default: bolt).
	Backend Backend

	// Path is the BoltDB file path. "~" is expanded.
	Path string

	// DSN is the PostgreSQL connection string.
	DSN string

	// Timeout bounds opening the backend (default: 1 second for bolt,
	// 5 seconds for postgres).
	Timeout time.Duration
}
