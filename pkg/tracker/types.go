// Package tracker is the application service of the meter tracker.
//
// It records readings and top-ups, answers dashboard and report queries by
// running the usage aggregations over the store's contents, and imports
// external batches through the ingest validator. Store unavailability is a
// degraded state for reads, not an error.
//
// Example usage:
//
//	h := store.Open(ctx, storeCfg, log)
//	t := tracker.New(h, tracker.Config{Location: time.Local}, log, nil)
//
//	if _, err := t.RecordReading(ctx, units.MustParse("1520.5"), time.Now()); err != nil {
//	    log.Error("failed to record reading", "error", err)
//	}
//	dash := t.Dashboard(ctx)
//	fmt.Println(dash.Summary.AverageUsage.StringFixed(2))
package tracker

import (
	"time"

	"github.com/0xmhha/meter-tracker/pkg/ingest"
	"github.com/0xmhha/meter-tracker/pkg/store"
	"github.com/0xmhha/meter-tracker/pkg/usage"
)

// Config contains tracker configuration.
type Config struct {
	// Location decides the wall-clock hour used to tag new readings.
	// Default: time.Local.
	Location *time.Location

	// Now returns the current time. Default: time.Now.
	Now func() time.Time

	// NewKey generates record keys. Default: random UUIDs.
	NewKey func() string
}

// Dashboard is the answer to a dashboard query.
type Dashboard struct {
	// Summary holds the statistics; empty when Degraded.
	Summary usage.Summary `json:"summary"`

	// Degraded is true when the store could not be read.
	Degraded bool `json:"degraded"`

	// Reason explains a degraded answer.
	Reason string `json:"reason,omitempty"`
}

// MonthlyReport is the answer to a monthly report query.
type MonthlyReport struct {
	Months   []usage.MonthlyUsage `json:"months"`
	Degraded bool                 `json:"degraded"`
	Reason   string               `json:"reason,omitempty"`
}

// DailyReport is the answer to a daily breakdown query.
type DailyReport struct {
	Days     []usage.DailyUsage `json:"days"`
	Degraded bool               `json:"degraded"`
	Reason   string             `json:"reason,omitempty"`
}

// ImportResult reports what happened to an imported batch.
type ImportResult struct {
	// Validation lists accepted and rejected records.
	Validation ingest.Result `json:"validation"`

	// Migration counts inserted and skipped records.
	Migration store.MigrationResult `json:"migration"`
}
