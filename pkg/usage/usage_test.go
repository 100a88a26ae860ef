package usage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/meter-tracker/pkg/meter"
	"github.com/0xmhha/meter-tracker/pkg/units"
)

var testZone = time.FixedZone("WAT", 3600)

// reading builds a reading at the given day and hour, tagged by the hour.
func reading(key string, month time.Month, day, hour int, value string) meter.Reading {
	ts := time.Date(2024, month, day, hour, 0, 0, 0, testZone)
	return meter.Reading{
		Key:       key,
		Timestamp: ts,
		Value:     units.MustParse(value),
		Period:    meter.PeriodAt(ts, testZone),
	}
}

func assertValue(t *testing.T, want string, got units.Value, msgAndArgs ...interface{}) {
	t.Helper()
	if units.MustParse(want).Cmp(got) != 0 {
		t.Errorf("value = %s, want %s %v", got, want, msgAndArgs)
	}
}

func TestAggregateDailyInsufficientData(t *testing.T) {
	assert.Empty(t, AggregateDaily(nil))
	assert.Empty(t, AggregateDaily([]meter.Reading{}))
	assert.Empty(t, AggregateDaily([]meter.Reading{reading("a", 1, 1, 8, "100")}))

	assert.NotNil(t, AggregateDaily(nil))
}

func TestAggregateDailyCarry(t *testing.T) {
	readings := []meter.Reading{
		reading("n0", 1, 1, 21, "110"),
		reading("m1", 1, 2, 7, "100"),
		reading("e1", 1, 2, 14, "90"),
		reading("n1", 1, 2, 22, "80"),
	}

	days := AggregateDaily(readings)
	require.Len(t, days, 2)

	first := days[0]
	assert.Equal(t, "2024-01-01", first.Date)
	assertValue(t, "0", first.Total, "first day has no carry")

	day := days[1]
	assert.Equal(t, "2024-01-02", day.Date)
	assertValue(t, "10", day.MorningUsage)
	assertValue(t, "10", day.EveningUsage)
	assertValue(t, "10", day.NightUsage)
	assertValue(t, "30", day.Total)
	require.NotNil(t, day.Morning)
	assert.Equal(t, "m1", day.Morning.Key)
}

func TestAggregateDailyUnsortedInput(t *testing.T) {
	readings := []meter.Reading{
		reading("n1", 1, 2, 22, "80"),
		reading("m1", 1, 2, 7, "100"),
		reading("n0", 1, 1, 21, "110"),
		reading("e1", 1, 2, 14, "90"),
	}

	days := AggregateDaily(readings)
	require.Len(t, days, 2)
	assertValue(t, "30", days[1].Total)

	// Input slice is not reordered.
	assert.Equal(t, "n1", readings[0].Key)
}

func TestAggregateDailyMissingPeriods(t *testing.T) {
	readings := []meter.Reading{
		reading("m1", 1, 1, 7, "100"),
		reading("n1", 1, 1, 22, "80"),
		reading("e2", 1, 2, 14, "70"),
		reading("n2", 1, 2, 23, "60"),
	}

	days := AggregateDaily(readings)
	require.Len(t, days, 2)

	// Day 1 has no evening, so neither evening nor night usage is defined.
	assert.Nil(t, days[0].Evening)
	assertValue(t, "0", days[0].Total)

	// Day 2 has no morning; morning and evening usage are 0, night is 70-60.
	assertValue(t, "0", days[1].MorningUsage)
	assertValue(t, "0", days[1].EveningUsage)
	assertValue(t, "10", days[1].NightUsage)
	assertValue(t, "10", days[1].Total)
}

func TestAggregateDailyCarrySkipsDaysWithoutNight(t *testing.T) {
	readings := []meter.Reading{
		reading("n1", 1, 1, 22, "200"),
		reading("m2", 1, 2, 7, "190"),
		reading("m3", 1, 3, 7, "170"),
	}

	days := AggregateDaily(readings)
	require.Len(t, days, 3)

	assertValue(t, "10", days[1].MorningUsage)
	// Day 2 had no night, so day 3 still uses day 1's night.
	assertValue(t, "30", days[2].MorningUsage)
}

func TestAggregateDailyFirstReadingPerPeriodWins(t *testing.T) {
	readings := []meter.Reading{
		reading("m1", 1, 1, 6, "100"),
		reading("m1b", 1, 1, 10, "95"),
		reading("e1", 1, 1, 13, "90"),
	}

	days := AggregateDaily(readings)
	require.Len(t, days, 1)
	require.NotNil(t, days[0].Morning)
	assert.Equal(t, "m1", days[0].Morning.Key)
	assertValue(t, "10", days[0].EveningUsage)
}

func TestAggregateDailyRawNegativeDelta(t *testing.T) {
	// A top-up between morning and evening raises the counter.
	readings := []meter.Reading{
		reading("m1", 1, 1, 7, "20"),
		reading("e1", 1, 1, 15, "70"),
	}

	days := AggregateDaily(readings)
	require.Len(t, days, 1)
	assertValue(t, "-50", days[0].EveningUsage)
	assertValue(t, "-50", days[0].Total)
}

func TestAggregateDailyUsesPersistedPeriod(t *testing.T) {
	ts := time.Date(2024, 1, 1, 7, 0, 0, 0, testZone)
	readings := []meter.Reading{
		{Key: "a", Timestamp: ts, Value: units.MustParse("50"), Period: meter.Evening},
		{Key: "b", Timestamp: ts.Add(time.Hour), Value: units.MustParse("40"), Period: meter.Night},
	}

	days := AggregateDaily(readings)
	require.Len(t, days, 1)
	assert.Nil(t, days[0].Morning)
	require.NotNil(t, days[0].Evening)
	assertValue(t, "10", days[0].NightUsage)
}

func TestAggregateMonthly(t *testing.T) {
	readings := []meter.Reading{
		reading("a", 1, 10, 8, "100"),
		reading("b", 1, 11, 8, "90"),
		reading("c", 1, 12, 8, "150"),
		reading("d", 2, 1, 8, "140"),
	}

	months := AggregateMonthly(readings)
	require.Len(t, months, 2)
	assert.Equal(t, "2024-01", months[0].Month)
	assertValue(t, "10", months[0].Usage)
	assert.Equal(t, "2024-02", months[1].Month)
	assertValue(t, "10", months[1].Usage)
}

func TestAggregateMonthlyEdgeCases(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, AggregateMonthly(nil))
	})

	t.Run("single reading", func(t *testing.T) {
		assert.Empty(t, AggregateMonthly([]meter.Reading{reading("a", 1, 1, 8, "10")}))
	})

	t.Run("only increases omit the month", func(t *testing.T) {
		months := AggregateMonthly([]meter.Reading{
			reading("a", 3, 1, 8, "10"),
			reading("b", 3, 2, 8, "60"),
		})
		assert.Empty(t, months)
	})

	t.Run("zero delta keeps the month", func(t *testing.T) {
		months := AggregateMonthly([]meter.Reading{
			reading("a", 3, 1, 8, "10"),
			reading("b", 4, 2, 8, "10"),
		})
		require.Len(t, months, 1)
		assert.Equal(t, "2024-04", months[0].Month)
		assertValue(t, "0", months[0].Usage)
	})

	t.Run("exact decimals", func(t *testing.T) {
		months := AggregateMonthly([]meter.Reading{
			reading("a", 5, 1, 8, "10.3"),
			reading("b", 5, 2, 8, "10.2"),
			reading("c", 5, 3, 8, "10.1"),
		})
		require.Len(t, months, 1)
		assert.Equal(t, "0.2", months[0].Usage.String())
	})
}

func TestTopUpJumpIsNotConsumption(t *testing.T) {
	prior := reading("r", 6, 1, 8, "200")
	synthetic := reading("s", 6, 1, 9, "250")
	synthetic.Synthetic = true

	months := AggregateMonthly([]meter.Reading{synthetic, prior})
	assert.Empty(t, months)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, nil)

	assert.True(t, s.AverageUsage.IsZero())
	assert.Equal(t, "", s.PeakUsageDay.Date)
	assert.True(t, s.PeakUsageDay.Usage.IsZero())
	assert.True(t, s.TotalTokensPurchased.IsZero())
	assert.Equal(t, 0, s.DaysCounted)
	assert.Empty(t, s.DailyUsage)
}

func TestSummarize(t *testing.T) {
	readings := []meter.Reading{
		reading("n0", 1, 1, 21, "110"),
		reading("m1", 1, 2, 7, "100"),
		reading("e1", 1, 2, 14, "90"),
		reading("n1", 1, 2, 22, "80"),
		reading("m2", 1, 3, 7, "60"),
	}
	cost := units.MustParse("1500")
	topUps := []meter.TopUp{
		{Key: "t1", UnitsAdded: units.MustParse("50"), Cost: &cost},
		{Key: "t2", UnitsAdded: units.MustParse("25.5")},
	}

	s := Summarize(readings, topUps)

	require.Equal(t, 3, s.DaysCounted)
	assertValue(t, "50", s.TotalUsage)
	// (0 + 30 + 20) / 3
	assert.Equal(t, "16.67", s.AverageUsage.StringFixed(2))
	assert.Equal(t, "16.666666666667", s.AverageUsage.String())
	assert.Equal(t, "2024-01-02", s.PeakUsageDay.Date)
	assertValue(t, "30", s.PeakUsageDay.Usage)
	assertValue(t, "75.5", s.TotalTokensPurchased)
	assertValue(t, "1500", s.TotalCost)
}

func TestSummarizePeakTieKeepsFirst(t *testing.T) {
	readings := []meter.Reading{
		reading("m1", 1, 1, 7, "100"),
		reading("e1", 1, 1, 14, "90"),
		reading("m2", 1, 2, 7, "80"),
		reading("e2", 1, 2, 14, "70"),
	}

	s := Summarize(readings, nil)
	assert.Equal(t, "2024-01-01", s.PeakUsageDay.Date)
}
