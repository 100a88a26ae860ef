package tracker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/meter-tracker/pkg/ingest"
	"github.com/0xmhha/meter-tracker/pkg/logger"
	"github.com/0xmhha/meter-tracker/pkg/meter"
	"github.com/0xmhha/meter-tracker/pkg/metrics"
	"github.com/0xmhha/meter-tracker/pkg/store"
	"github.com/0xmhha/meter-tracker/pkg/units"
)

var lagos = time.FixedZone("WAT", 3600)

func newTracker(t *testing.T, h *store.Handle) *Tracker {
	t.Helper()

	seq := 0
	return New(h, Config{
		Location: lagos,
		Now: func() time.Time {
			return time.Date(2024, 3, 10, 9, 0, 0, 0, lagos)
		},
		NewKey: func() string {
			seq++
			return fmt.Sprintf("key-%d", seq)
		},
	}, logger.Noop(), metrics.NewRecorder(prometheus.NewRegistry()))
}

func memoryTracker(t *testing.T) *Tracker {
	return newTracker(t, store.NewHandle(store.NewMemory(), store.BackendMemory))
}

func TestRecordReadingDerivesPeriod(t *testing.T) {
	ctx := context.Background()
	tr := memoryTracker(t)

	// 18:30 UTC is 19:30 in the configured zone: evening.
	r, err := tr.RecordReading(ctx, units.MustParse("120"), time.Date(2024, 3, 1, 18, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, meter.Evening, r.Period)
	assert.Equal(t, "key-1", r.Key)

	_, offset := r.Timestamp.Zone()
	assert.Equal(t, 3600, offset)

	// Zero time uses the clock: 09:00 is morning.
	r, err = tr.RecordReading(ctx, units.MustParse("110"), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, meter.Morning, r.Period)
	assert.Equal(t, 10, r.Timestamp.Day())
}

func TestRecordReadingRejectsNegative(t *testing.T) {
	tr := memoryTracker(t)

	_, err := tr.RecordReading(context.Background(), units.MustParse("-1"), time.Time{})
	assert.True(t, errors.Is(err, ErrNegativeValue))
}

func TestRecordTopUp(t *testing.T) {
	ctx := context.Background()
	tr := memoryTracker(t)

	_, err := tr.RecordReading(ctx, units.MustParse("200"), time.Date(2024, 3, 1, 7, 0, 0, 0, lagos))
	require.NoError(t, err)

	cost := units.MustParse("4500")
	topUp, err := tr.RecordTopUp(ctx, units.MustParse("50"), &cost, time.Date(2024, 3, 1, 8, 0, 0, 0, lagos))
	require.NoError(t, err)
	assert.Equal(t, "250", topUp.ResultingReading.String())

	_, err = tr.RecordTopUp(ctx, units.Zero(), nil, time.Time{})
	assert.True(t, errors.Is(err, ErrNonPositiveUnits))

	negative := units.MustParse("-5")
	_, err = tr.RecordTopUp(ctx, units.FromInt(5), &negative, time.Time{})
	assert.True(t, errors.Is(err, ErrNegativeCost))

	// The jump is not counted as consumption.
	report := tr.Monthly(ctx)
	assert.False(t, report.Degraded)
	assert.Empty(t, report.Months)

	dash := tr.Dashboard(ctx)
	assert.Equal(t, "50", dash.Summary.TotalTokensPurchased.String())
	assert.Equal(t, "4500", dash.Summary.TotalCost.String())
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	tr := memoryTracker(t)

	steps := []struct {
		day, hour int
		value     string
	}{
		{1, 21, "110"},
		{2, 7, "100"},
		{2, 14, "90"},
		{2, 22, "80"},
	}
	for _, s := range steps {
		_, err := tr.RecordReading(ctx, units.MustParse(s.value), time.Date(2024, 1, s.day, s.hour, 0, 0, 0, lagos))
		require.NoError(t, err)
	}

	dash := tr.Dashboard(ctx)
	require.False(t, dash.Degraded)
	assert.Equal(t, 2, dash.Summary.DaysCounted)
	assert.Equal(t, "2024-01-02", dash.Summary.PeakUsageDay.Date)
	assert.Equal(t, 0, dash.Summary.PeakUsageDay.Usage.Cmp(units.FromInt(30)))
	assert.Equal(t, 0, dash.Summary.AverageUsage.Cmp(units.FromInt(15)))

	daily := tr.Daily(ctx)
	require.Len(t, daily.Days, 2)
	assert.Equal(t, 0, daily.Days[1].MorningUsage.Cmp(units.FromInt(10)))
}

func TestDegradedReads(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t, store.UnavailableHandle(errors.New("no route to host")))

	assert.Equal(t, store.Unavailable, tr.Status())

	dash := tr.Dashboard(ctx)
	assert.True(t, dash.Degraded)
	assert.NotEmpty(t, dash.Reason)
	assert.True(t, dash.Summary.AverageUsage.IsZero())
	assert.Equal(t, "", dash.Summary.PeakUsageDay.Date)
	assert.Empty(t, dash.Summary.DailyUsage)

	monthly := tr.Monthly(ctx)
	assert.True(t, monthly.Degraded)
	assert.NotNil(t, monthly.Months)
	assert.Empty(t, monthly.Months)

	daily := tr.Daily(ctx)
	assert.True(t, daily.Degraded)
	assert.Empty(t, daily.Days)
}

func TestWritesFailWhenUnavailable(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t, store.UnavailableHandle(nil))

	_, err := tr.RecordReading(ctx, units.FromInt(1), time.Time{})
	assert.True(t, errors.Is(err, store.ErrUnavailable))

	_, err = tr.RecordTopUp(ctx, units.FromInt(1), nil, time.Time{})
	assert.True(t, errors.Is(err, store.ErrUnavailable))
}

func ptr[T any](v T) *T {
	return &v
}

func rawReading(key string, day, hour int, value, period string) ingest.RawReading {
	return ingest.RawReading{
		Key:       ptr(key),
		Timestamp: ptr(time.Date(2024, 2, day, hour, 0, 0, 0, lagos)),
		Value:     ptr(units.MustParse(value)),
		Period:    ptr(period),
	}
}

func TestImportIsIdempotent(t *testing.T) {
	ctx := context.Background()
	tr := memoryTracker(t)

	batch := ingest.Batch{
		Readings: []ingest.RawReading{
			rawReading("m1", 1, 7, "100", "morning"),
			rawReading("e1", 1, 14, "90", "evening"),
			{Key: ptr("broken")},
		},
		TopUps: []ingest.RawTopUp{{
			Key:              ptr("t1"),
			Timestamp:        ptr(time.Date(2024, 2, 1, 15, 0, 0, 0, lagos)),
			UnitsAdded:       ptr(units.FromInt(50)),
			ResultingReading: ptr(units.FromInt(140)),
		}},
	}

	first, err := tr.Import(ctx, "test", batch)
	require.NoError(t, err)
	assert.Len(t, first.Validation.AcceptedReadings, 2)
	assert.Len(t, first.Validation.Rejected, 1)
	assert.Equal(t, 3, first.Migration.Inserted())

	second, err := tr.Import(ctx, "test", batch)
	require.NoError(t, err)
	assert.Equal(t, first.Validation.AcceptedReadings, second.Validation.AcceptedReadings)
	assert.Equal(t, 0, second.Migration.Inserted())
	assert.Equal(t, 3, second.Migration.Skipped())
}

func TestImportKeepsPersistedPeriod(t *testing.T) {
	ctx := context.Background()
	tr := memoryTracker(t)

	// Tagged night at 07:00: the tag is kept as is.
	_, err := tr.Import(ctx, "test", ingest.Batch{
		Readings: []ingest.RawReading{rawReading("x", 3, 7, "10", "night")},
	})
	require.NoError(t, err)

	daily := tr.Daily(ctx)
	assert.Empty(t, daily.Days)

	_, err = tr.Import(ctx, "test", ingest.Batch{
		Readings: []ingest.RawReading{rawReading("y", 4, 7, "8", "morning")},
	})
	require.NoError(t, err)

	daily = tr.Daily(ctx)
	require.Len(t, daily.Days, 2)
	assert.NotNil(t, daily.Days[0].Night)
	assert.Equal(t, 0, daily.Days[1].MorningUsage.Cmp(units.FromInt(2)))
}

func TestImportFailureIsReported(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(t, store.UnavailableHandle(nil))

	res, err := tr.Import(ctx, "test", ingest.Batch{
		Readings: []ingest.RawReading{rawReading("a", 1, 7, "1", "morning")},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrUnavailable))
	assert.Len(t, res.Validation.AcceptedReadings, 1)
	assert.Equal(t, 0, res.Migration.Inserted())
}

func TestImportOnlyRejections(t *testing.T) {
	tr := newTracker(t, store.UnavailableHandle(nil))

	res, err := tr.Import(context.Background(), "test", ingest.Batch{
		Readings: []ingest.RawReading{{}},
	})
	require.NoError(t, err)
	assert.Len(t, res.Validation.Rejected, 1)
}
