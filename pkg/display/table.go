package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/0xmhha/meter-tracker/pkg/tracker"
)

// tableFormatter formats output as tables.
type tableFormatter struct {
	config Config
}

// FormatDashboard implements Formatter.FormatDashboard.
func (f *tableFormatter) FormatDashboard(w io.Writer, d tracker.Dashboard) error {
	if err := writeHeader(w, "Meter Usage Summary", f.config.Compact); err != nil {
		return err
	}

	if d.Degraded {
		return writeDegraded(w, d.Reason)
	}

	s := d.Summary
	p := f.config.Precision

	peak := "-"
	if s.PeakUsageDay.Date != "" {
		peak = fmt.Sprintf("%s (%s)", s.PeakUsageDay.Date, formatValue(s.PeakUsageDay.Usage, p))
	}

	rows := [][]string{
		{"Days Counted", formatNumber(s.DaysCounted)},
		{"Average Daily Usage", formatValue(s.AverageUsage, p)},
		{"Peak Usage Day", peak},
		{"Total Usage", formatValue(s.TotalUsage, p)},
		{"Tokens Purchased", formatValue(s.TotalTokensPurchased, p)},
		{"Total Cost", formatValue(s.TotalCost, p)},
	}

	return f.writeTable(w, []string{"Metric", "Value"}, rows)
}

// FormatDaily implements Formatter.FormatDaily.
func (f *tableFormatter) FormatDaily(w io.Writer, r tracker.DailyReport) error {
	if err := writeHeader(w, "Daily Usage", f.config.Compact); err != nil {
		return err
	}

	if r.Degraded {
		return writeDegraded(w, r.Reason)
	}

	p := f.config.Precision

	header := []string{"Date", "Morning", "Evening", "Night", "Total"}
	if f.config.ShowReadings {
		header = append(header, "Morning Reading", "Evening Reading", "Night Reading")
	}

	rows := make([][]string, 0, len(r.Days))
	for _, day := range r.Days {
		row := []string{
			day.Date,
			formatValue(day.MorningUsage, p),
			formatValue(day.EveningUsage, p),
			formatValue(day.NightUsage, p),
			formatValue(day.Total, p),
		}
		if f.config.ShowReadings {
			row = append(row,
				formatReading(day.Morning, p),
				formatReading(day.Evening, p),
				formatReading(day.Night, p))
		}
		rows = append(rows, row)
	}

	return f.writeTable(w, header, rows)
}

// FormatMonthly implements Formatter.FormatMonthly.
func (f *tableFormatter) FormatMonthly(w io.Writer, r tracker.MonthlyReport) error {
	if err := writeHeader(w, "Monthly Usage", f.config.Compact); err != nil {
		return err
	}

	if r.Degraded {
		return writeDegraded(w, r.Reason)
	}

	rows := make([][]string, 0, len(r.Months))
	for _, m := range r.Months {
		rows = append(rows, []string{m.Month, formatValue(m.Usage, f.config.Precision)})
	}

	return f.writeTable(w, []string{"Month", "Usage"}, rows)
}

// FormatImport implements Formatter.FormatImport.
func (f *tableFormatter) FormatImport(w io.Writer, r tracker.ImportResult) error {
	if err := writeHeader(w, "Import Result", f.config.Compact); err != nil {
		return err
	}

	v, m := r.Validation, r.Migration
	rows := [][]string{
		{"Readings", formatNumber(len(v.AcceptedReadings)), formatNumber(m.InsertedReadings), formatNumber(m.SkippedReadings)},
		{"Top-ups", formatNumber(len(v.AcceptedTopUps)), formatNumber(m.InsertedTopUps), formatNumber(m.SkippedTopUps)},
	}
	if err := f.writeTable(w, []string{"Kind", "Accepted", "Inserted", "Skipped"}, rows); err != nil {
		return err
	}

	if len(v.Rejected) == 0 {
		return nil
	}

	if err := writeHeader(w, "Rejected Records", f.config.Compact); err != nil {
		return err
	}

	rejected := make([][]string, 0, len(v.Rejected))
	for _, rej := range v.Rejected {
		rejected = append(rejected, []string{string(rej.Kind), fmt.Sprintf("%d", rej.Index), rej.Key, rej.Reason})
	}

	return f.writeTable(w, []string{"Kind", "Index", "Key", "Reason"}, rejected)
}

// writeTable writes a formatted table.
func (f *tableFormatter) writeTable(w io.Writer, header []string, rows [][]string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No data")
		return err
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	if err := f.writeRow(w, header, widths); err != nil {
		return err
	}

	if !f.config.Compact {
		separator := make([]string, len(header))
		for i, width := range widths {
			separator[i] = strings.Repeat("-", width)
		}
		if err := f.writeRow(w, separator, widths); err != nil {
			return err
		}
	}

	for _, row := range rows {
		if err := f.writeRow(w, row, widths); err != nil {
			return err
		}
	}

	if !f.config.Compact {
		_, err := fmt.Fprintln(w)
		return err
	}

	return nil
}

// writeRow writes a single table row. The first column is left aligned,
// the others right aligned.
func (f *tableFormatter) writeRow(w io.Writer, cells []string, widths []int) error {
	gap := "  "
	if f.config.Compact {
		gap = " "
	}

	var b strings.Builder
	for i, cell := range cells {
		if i > 0 {
			b.WriteString(gap)
		}
		if i == 0 {
			fmt.Fprintf(&b, "%-*s", widths[i], cell)
		} else {
			fmt.Fprintf(&b, "%*s", widths[i], cell)
		}
	}

	_, err := fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	return err
}
