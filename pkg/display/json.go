package display

import (
	"encoding/json"
	"io"

	"github.com/0xmhha/meter-tracker/pkg/tracker"
)

// jsonFormatter formats output as JSON.
type jsonFormatter struct {
	config Config
}

// FormatDashboard implements Formatter.FormatDashboard.
func (f *jsonFormatter) FormatDashboard(w io.Writer, d tracker.Dashboard) error {
	return f.encode(w, d)
}

// FormatDaily implements Formatter.FormatDaily.
func (f *jsonFormatter) FormatDaily(w io.Writer, r tracker.DailyReport) error {
	return f.encode(w, r)
}

// FormatMonthly implements Formatter.FormatMonthly.
func (f *jsonFormatter) FormatMonthly(w io.Writer, r tracker.MonthlyReport) error {
	return f.encode(w, r)
}

// FormatImport implements Formatter.FormatImport.
func (f *jsonFormatter) FormatImport(w io.Writer, r tracker.ImportResult) error {
	return f.encode(w, r)
}

func (f *jsonFormatter) encode(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	if !f.config.Compact {
		encoder.SetIndent("", "  ")
	}

	return encoder.Encode(v)
}
