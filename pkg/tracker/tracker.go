package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/0xmhha/meter-tracker/pkg/ingest"
	"github.com/0xmhha/meter-tracker/pkg/logger"
	"github.com/0xmhha/meter-tracker/pkg/meter"
	"github.com/0xmhha/meter-tracker/pkg/metrics"
	"github.com/0xmhha/meter-tracker/pkg/store"
	"github.com/0xmhha/meter-tracker/pkg/units"
	"github.com/0xmhha/meter-tracker/pkg/usage"
)

// Tracker coordinates the store and the usage aggregations.
type Tracker struct {
	store   store.Store
	status  func() store.Status
	config  Config
	logger  logger.Logger
	metrics *metrics.Recorder
}

// New creates a tracker over h.
//
// Parameters:
//   - h: Store handle (may be unavailable)
//   - cfg: Tracker configuration
//   - log: Logger instance
//   - rec: Metrics recorder, nil to disable metrics
func New(h *store.Handle, cfg Config, log logger.Logger, rec *metrics.Recorder) *Tracker {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewKey == nil {
		cfg.NewKey = uuid.NewString
	}

	rec.SetStoreUp(h.Status() == store.Connected)

	return &Tracker{
		store:   h,
		status:  h.Status,
		config:  cfg,
		logger:  log,
		metrics: rec,
	}
}

// RecordReading stores a new reading taken at at.
//
// The period is derived from at's wall-clock hour in the configured location
// and persisted with the reading. A zero at means now.
func (t *Tracker) RecordReading(ctx context.Context, value units.Value, at time.Time) (meter.Reading, error) {
	start := time.Now()

	if value.Sign() < 0 {
		return meter.Reading{}, ErrNegativeValue
	}
	at = t.timestamp(at)

	r, err := t.store.AppendReading(ctx, meter.Reading{
		Key:       t.config.NewKey(),
		Timestamp: at,
		Value:     value,
		Period:    meter.PeriodAt(at, t.config.Location),
	})

	t.metrics.ObserveRecord("reading", err)
	t.metrics.ObserveLatency("record_reading", start, err)

	if err != nil {
		return meter.Reading{}, fmt.Errorf("failed to record reading: %w", err)
	}

	t.logger.Info("reading recorded",
		"key", r.Key,
		"value", r.Value.String(),
		"period", r.Period)

	return r, nil
}

// RecordTopUp stores a token purchase and its synthetic reading.
//
// Parameters:
//   - ctx: Context for cancellation
//   - unitsAdded: Purchased units, must be positive
//   - cost: Optional amount paid
//   - at: Purchase time, zero means now
func (t *Tracker) RecordTopUp(ctx context.Context, unitsAdded units.Value, cost *units.Value, at time.Time) (meter.TopUp, error) {
	start := time.Now()

	if unitsAdded.Sign() <= 0 {
		return meter.TopUp{}, ErrNonPositiveUnits
	}
	if cost != nil && cost.Sign() < 0 {
		return meter.TopUp{}, ErrNegativeCost
	}
	at = t.timestamp(at)

	topUp, err := t.store.AppendTopUp(ctx, store.NewTopUp{
		Key:          t.config.NewKey(),
		Timestamp:    at,
		UnitsAdded:   unitsAdded,
		Cost:         cost,
		SyntheticKey: t.config.NewKey(),
		Period:       meter.PeriodAt(at, t.config.Location),
	})

	t.metrics.ObserveRecord("topup", err)
	t.metrics.ObserveLatency("record_topup", start, err)

	if err != nil {
		return meter.TopUp{}, fmt.Errorf("failed to record top-up: %w", err)
	}

	t.logger.Info("top-up recorded",
		"key", topUp.Key,
		"units", topUp.UnitsAdded.String(),
		"resulting_reading", topUp.ResultingReading.String())

	return topUp, nil
}

// Dashboard summarizes all readings and top-ups.
//
// An unavailable store yields a degraded dashboard with an empty summary.
// Other read failures are degraded too; they are logged as errors.
func (t *Tracker) Dashboard(ctx context.Context) Dashboard {
	start := time.Now()

	readings, err := t.store.ListReadings(ctx)
	if err != nil {
		t.metrics.ObserveLatency("dashboard", start, err)
		return Dashboard{Summary: usage.Summarize(nil, nil), Degraded: true, Reason: t.degrade("dashboard", err)}
	}

	topUps, err := t.store.ListTopUps(ctx)
	if err != nil {
		t.metrics.ObserveLatency("dashboard", start, err)
		return Dashboard{Summary: usage.Summarize(nil, nil), Degraded: true, Reason: t.degrade("dashboard", err)}
	}

	summary := usage.Summarize(readings, topUps)
	t.metrics.ObserveLatency("dashboard", start, nil)

	t.logger.Debug("dashboard computed",
		"readings", len(readings),
		"topups", len(topUps),
		"days", summary.DaysCounted)

	return Dashboard{Summary: summary}
}

// Monthly aggregates consumption per calendar month.
func (t *Tracker) Monthly(ctx context.Context) MonthlyReport {
	start := time.Now()

	readings, err := t.store.ListReadings(ctx)
	t.metrics.ObserveLatency("monthly", start, err)
	if err != nil {
		return MonthlyReport{Months: []usage.MonthlyUsage{}, Degraded: true, Reason: t.degrade("monthly", err)}
	}

	return MonthlyReport{Months: usage.AggregateMonthly(readings)}
}

// Daily returns the per-day, per-period breakdown.
func (t *Tracker) Daily(ctx context.Context) DailyReport {
	start := time.Now()

	readings, err := t.store.ListReadings(ctx)
	t.metrics.ObserveLatency("daily", start, err)
	if err != nil {
		return DailyReport{Days: []usage.DailyUsage{}, Degraded: true, Reason: t.degrade("daily", err)}
	}

	return DailyReport{Days: usage.AggregateDaily(readings)}
}

// Import validates a raw batch and migrates the accepted records.
//
// Rejected records are reported in the result and never fail the batch. A
// migration failure is returned as an error; the store is then unchanged.
//
// Parameters:
//   - ctx: Context for cancellation
//   - source: Label for logs and metrics (file, kafka, cli)
//   - batch: Raw records
func (t *Tracker) Import(ctx context.Context, source string, batch ingest.Batch) (ImportResult, error) {
	start := time.Now()

	validation := ingest.ValidateAndStage(batch.Readings, batch.TopUps)
	res := ImportResult{Validation: validation}

	for _, rej := range validation.Rejected {
		t.logger.Warn("import record rejected",
			"source", source,
			"kind", rej.Kind,
			"index", rej.Index,
			"key", rej.Key,
			"reason", rej.Reason)
	}

	counts := metrics.ImportCounts{}
	for _, rej := range validation.Rejected {
		if rej.Kind == ingest.KindReading {
			counts.RejectedReadings++
		} else {
			counts.RejectedTopUps++
		}
	}

	var err error
	if len(validation.AcceptedReadings)+len(validation.AcceptedTopUps) > 0 {
		res.Migration, err = t.store.MigrateBatch(ctx, validation.AcceptedReadings, validation.AcceptedTopUps)
	}

	counts.InsertedReadings = res.Migration.InsertedReadings
	counts.InsertedTopUps = res.Migration.InsertedTopUps
	counts.SkippedReadings = res.Migration.SkippedReadings
	counts.SkippedTopUps = res.Migration.SkippedTopUps

	t.metrics.ObserveImport(source, counts, err)
	t.metrics.ObserveLatency("import", start, err)

	if err != nil {
		t.logger.Error("import failed",
			"source", source,
			"records", batch.Len(),
			"error", err)
		return res, fmt.Errorf("failed to import batch: %w", err)
	}

	t.logger.Info("batch imported",
		"source", source,
		"inserted", res.Migration.Inserted(),
		"skipped", res.Migration.Skipped(),
		"rejected", len(validation.Rejected))

	return res, nil
}

// Status reports the store status.
func (t *Tracker) Status() store.Status {
	return t.status()
}

// Location returns the location used to tag readings.
func (t *Tracker) Location() *time.Location {
	return t.config.Location
}

func (t *Tracker) timestamp(at time.Time) time.Time {
	if at.IsZero() {
		at = t.config.Now()
	}
	return at.In(t.config.Location)
}

// degrade logs a failed read and returns the reason shown to the user.
func (t *Tracker) degrade(operation string, err error) string {
	t.metrics.ObserveDegraded(operation)

	if errors.Is(err, store.ErrUnavailable) {
		t.metrics.SetStoreUp(false)
		t.logger.Warn("store unavailable, serving empty result",
			"operation", operation,
			"error", err)
	} else {
		t.logger.Error("failed to read store, serving empty result",
			"operation", operation,
			"error", err)
	}

	return err.Error()
}
