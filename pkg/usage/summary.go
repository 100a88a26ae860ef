package usage

import (
	"github.com/0xmhha/meter-tracker/pkg/meter"
	"github.com/0xmhha/meter-tracker/pkg/units"
)

// Summarize computes dashboard statistics from readings and top-ups.
//
// The daily breakdown comes from AggregateDaily. The average guards against
// zero days, and the peak is the first day with the strictly highest total.
func Summarize(readings []meter.Reading, topUps []meter.TopUp) Summary {
	days := AggregateDaily(readings)

	s := Summary{
		AverageUsage:         units.Zero(),
		PeakUsageDay:         PeakDay{Date: "", Usage: units.Zero()},
		TotalTokensPurchased: units.Zero(),
		TotalUsage:           units.Zero(),
		TotalCost:            units.Zero(),
		DaysCounted:          len(days),
		DailyUsage:           days,
	}

	for _, t := range topUps {
		s.TotalTokensPurchased = s.TotalTokensPurchased.Add(t.UnitsAdded)
		if t.Cost != nil {
			s.TotalCost = s.TotalCost.Add(*t.Cost)
		}
	}

	if len(days) == 0 {
		return s
	}

	peak := days[0]
	for _, d := range days {
		s.TotalUsage = s.TotalUsage.Add(d.Total)
		if d.Total.Cmp(peak.Total) > 0 {
			peak = d
		}
	}

	s.AverageUsage = s.TotalUsage.DivInt(len(days))
	s.PeakUsageDay = PeakDay{Date: peak.Date, Usage: peak.Total}

	return s
}
