package usage

import (
	"sort"

	"github.com/0xmhha/meter-tracker/pkg/meter"
	"github.com/0xmhha/meter-tracker/pkg/units"
)

// dayGroup collects the readings of one calendar day in timestamp order.
type dayGroup struct {
	date     string
	readings []meter.Reading
}

// AggregateDaily derives per-period consumption for every day that has readings.
//
// Readings are stably sorted by timestamp and grouped by their own calendar
// date. For each day the first reading carrying each period tag is selected:
//
//	morningUsage = previous night - morning
//	eveningUsage = morning - evening
//	nightUsage   = evening - night
//
// A usage is 0 when either operand is missing. Deltas are raw differences and
// may be negative when a top-up falls inside the window. The previous night is
// carried forward only from days that have a night reading; the first day has
// no carry.
//
// Parameters:
//   - readings: Readings in any order (not modified)
//
// Returns days ascending by date, or an empty slice with fewer than two readings.
func AggregateDaily(readings []meter.Reading) []DailyUsage {
	if len(readings) < 2 {
		return []DailyUsage{}
	}

	groups := groupByDay(sortedByTime(readings))
	result := make([]DailyUsage, 0, len(groups))

	var prevNight *meter.Reading

	for _, g := range groups {
		day := DailyUsage{Date: g.date}
		day.Morning, day.Evening, day.Night = selectPeriods(g.readings)

		day.MorningUsage = delta(prevNight, day.Morning)
		day.EveningUsage = delta(day.Morning, day.Evening)
		day.NightUsage = delta(day.Evening, day.Night)
		day.Total = units.Sum(day.MorningUsage, day.EveningUsage, day.NightUsage)

		if day.Night != nil {
			prevNight = day.Night
		}

		result = append(result, day)
	}

	return result
}

// sortedByTime returns a stably sorted copy.
func sortedByTime(readings []meter.Reading) []meter.Reading {
	sorted := make([]meter.Reading, len(readings))
	copy(sorted, readings)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	return sorted
}

// groupByDay splits sorted readings into consecutive same-date runs.
//
// Readings with different offsets can interleave dates after sorting, so a
// date seen again later is merged into its first group.
func groupByDay(sorted []meter.Reading) []dayGroup {
	groups := make([]dayGroup, 0)
	index := make(map[string]int)

	for _, r := range sorted {
		date := r.Date()
		i, ok := index[date]
		if !ok {
			i = len(groups)
			index[date] = i
			groups = append(groups, dayGroup{date: date})
		}
		groups[i].readings = append(groups[i].readings, r)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].date < groups[j].date
	})

	return groups
}

// selectPeriods picks the earliest reading tagged with each period.
// The persisted tag is used as-is; it is never recomputed from the timestamp.
func selectPeriods(day []meter.Reading) (morning, evening, night *meter.Reading) {
	for i := range day {
		r := &day[i]
		switch r.Period {
		case meter.Morning:
			if morning == nil {
				morning = r
			}
		case meter.Evening:
			if evening == nil {
				evening = r
			}
		case meter.Night:
			if night == nil {
				night = r
			}
		}
	}
	return morning, evening, night
}

// delta returns before - after, or 0 when either is missing.
func delta(before, after *meter.Reading) units.Value {
	if before == nil || after == nil {
		return units.Zero()
	}
	return before.Value.Sub(after.Value)
}
