package display

import (
	"fmt"
	"io"

	"github.com/0xmhha/meter-tracker/pkg/tracker"
)

// simpleFormatter formats output as simple text.
type simpleFormatter struct {
	config Config
}

// FormatDashboard implements Formatter.FormatDashboard.
func (f *simpleFormatter) FormatDashboard(w io.Writer, d tracker.Dashboard) error {
	if d.Degraded {
		return writeDegraded(w, d.Reason)
	}

	s := d.Summary
	p := f.config.Precision

	peak := "-"
	if s.PeakUsageDay.Date != "" {
		peak = s.PeakUsageDay.Date + " " + formatValue(s.PeakUsageDay.Usage, p)
	}

	_, err := fmt.Fprintf(w, "Days: %d | Avg: %s | Peak: %s | Usage: %s | Purchased: %s | Cost: %s\n",
		s.DaysCounted,
		formatValue(s.AverageUsage, p),
		peak,
		formatValue(s.TotalUsage, p),
		formatValue(s.TotalTokensPurchased, p),
		formatValue(s.TotalCost, p))
	return err
}

// FormatDaily implements Formatter.FormatDaily.
func (f *simpleFormatter) FormatDaily(w io.Writer, r tracker.DailyReport) error {
	if r.Degraded {
		return writeDegraded(w, r.Reason)
	}

	p := f.config.Precision
	for _, day := range r.Days {
		if _, err := fmt.Fprintf(w, "%s: morning %s, evening %s, night %s, total %s\n",
			day.Date,
			formatValue(day.MorningUsage, p),
			formatValue(day.EveningUsage, p),
			formatValue(day.NightUsage, p),
			formatValue(day.Total, p)); err != nil {
			return err
		}
	}

	return nil
}

// FormatMonthly implements Formatter.FormatMonthly.
func (f *simpleFormatter) FormatMonthly(w io.Writer, r tracker.MonthlyReport) error {
	if r.Degraded {
		return writeDegraded(w, r.Reason)
	}

	for _, m := range r.Months {
		if _, err := fmt.Fprintf(w, "%s: %s\n", m.Month, formatValue(m.Usage, f.config.Precision)); err != nil {
			return err
		}
	}

	return nil
}

// FormatImport implements Formatter.FormatImport.
func (f *simpleFormatter) FormatImport(w io.Writer, r tracker.ImportResult) error {
	if _, err := fmt.Fprintf(w, "Inserted: %d | Skipped: %d | Rejected: %d\n",
		r.Migration.Inserted(),
		r.Migration.Skipped(),
		len(r.Validation.Rejected)); err != nil {
		return err
	}

	for _, rej := range r.Validation.Rejected {
		if _, err := fmt.Fprintf(w, "rejected %s #%d %s: %s\n", rej.Kind, rej.Index, rej.Key, rej.Reason); err != nil {
			return err
		}
	}

	return nil
}
