package usage

import (
	"sort"

	"github.com/0xmhha/meter-tracker/pkg/meter"
	"github.com/0xmhha/meter-tracker/pkg/units"
)

// AggregateMonthly buckets reading-to-reading consumption by calendar month.
//
// For every consecutive pair after sorting, delta = prev - curr. A positive
// delta is consumption and is added to curr's month. A zero delta makes the
// month appear without adding anything. A negative delta is a top-up jump and
// contributes nothing, so months that only saw increases are omitted.
//
// Unlike AggregateDaily this needs no synthetic-reading bookkeeping: counting
// only decreases is what separates consumption from top-ups here.
func AggregateMonthly(readings []meter.Reading) []MonthlyUsage {
	sorted := sortedByTime(readings)
	totals := make(map[string]units.Value)

	for i := 1; i < len(sorted); i++ {
		prev, curr := sorted[i-1], sorted[i]
		d := prev.Value.Sub(curr.Value)
		if d.Sign() < 0 {
			continue
		}

		month := curr.Month()
		totals[month] = totals[month].Add(d)
	}

	result := make([]MonthlyUsage, 0, len(totals))
	for month, total := range totals {
		result = append(result, MonthlyUsage{Month: month, Usage: total})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Month < result[j].Month
	})

	return result
}
