// Package usage derives consumption from cumulative meter readings.
//
// Readings are cumulative counters that go down as electricity is used and
// jump up when tokens are loaded. Everything here is a pure function over
// in-memory slices: results are recomputed on every call, never persisted,
// and safe to compute from any number of goroutines.
//
// Example usage:
//
//	days := usage.AggregateDaily(readings)
//	months := usage.AggregateMonthly(readings)
//	summary := usage.Summarize(readings, topUps)
//	fmt.Printf("average: %s\n", summary.AverageUsage.StringFixed(2))
package usage

import (
	"github.com/0xmhha/meter-tracker/pkg/meter"
	"github.com/0xmhha/meter-tracker/pkg/units"
)

// DailyUsage is the consumption derived for one calendar day.
type DailyUsage struct {
	// Date is the day (YYYY-MM-DD) in the readings' own offset.
	Date string `json:"date"`

	// Morning, Evening and Night are the readings selected for each period.
	// Any of them may be nil when the day has no reading for that period.
	Morning *meter.Reading `json:"morning,omitempty"`
	Evening *meter.Reading `json:"evening,omitempty"`
	Night   *meter.Reading `json:"night,omitempty"`

	// MorningUsage is previous night minus this morning.
	MorningUsage units.Value `json:"morningUsage"`

	// EveningUsage is this morning minus this evening.
	EveningUsage units.Value `json:"eveningUsage"`

	// NightUsage is this evening minus this night.
	NightUsage units.Value `json:"nightUsage"`

	// Total is the sum of the three period usages.
	Total units.Value `json:"total"`
}

// MonthlyUsage is the consumption attributed to one calendar month.
type MonthlyUsage struct {
	// Month is YYYY-MM.
	Month string `json:"month"`

	// Usage is the sum of all positive reading-to-reading decreases in the month.
	Usage units.Value `json:"usage"`
}

// PeakDay is the day with the highest total.
type PeakDay struct {
	Date  string      `json:"date"`
	Usage units.Value `json:"usage"`
}

// Summary holds dashboard statistics.
type Summary struct {
	// AverageUsage is the mean daily total, or 0 without days.
	AverageUsage units.Value `json:"averageUsage"`

	// PeakUsageDay is the first day with the strictly highest total.
	// It is {"", 0} when there are no days.
	PeakUsageDay PeakDay `json:"peakUsageDay"`

	// TotalTokensPurchased is the sum of units added by all top-ups.
	TotalTokensPurchased units.Value `json:"totalTokensPurchased"`

	// TotalUsage is the sum of all daily totals.
	TotalUsage units.Value `json:"totalUsage"`

	// TotalCost is the sum of the top-up costs that were recorded.
	TotalCost units.Value `json:"totalCost"`

	// DaysCounted is the number of daily entries.
	DaysCounted int `json:"daysCounted"`

	// DailyUsage is the full daily breakdown, ascending by date.
	DailyUsage []DailyUsage `json:"dailyUsage"`
}
