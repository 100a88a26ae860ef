// Package display renders tracker results for the terminal.
//
// It supports multiple output formats (table, JSON, simple text) for the
// dashboard summary, the daily breakdown, the monthly report and import
// results.
package display

import (
	"io"

	"github.com/0xmhha/meter-tracker/pkg/tracker"
)

// Format represents an output format.
type Format string

const (
	// FormatTable displays results as aligned tables.
	FormatTable Format = "table"

	// FormatJSON displays results as JSON.
	FormatJSON Format = "json"

	// FormatSimple displays results as one line per item.
	FormatSimple Format = "simple"
)

// Formatter formats and displays tracker results.
type Formatter interface {
	// FormatDashboard formats the summary statistics.
	//
	// Parameters:
	//   - w: Output writer
	//   - d: Dashboard to format
	//
	// Returns error if writing fails.
	FormatDashboard(w io.Writer, d tracker.Dashboard) error

	// FormatDaily formats the per-day, per-period breakdown.
	FormatDaily(w io.Writer, r tracker.DailyReport) error

	// FormatMonthly formats the monthly consumption report.
	FormatMonthly(w io.Writer, r tracker.MonthlyReport) error

	// FormatImport formats the outcome of an import, including rejections.
	FormatImport(w io.Writer, r tracker.ImportResult) error
}

// Config contains formatter configuration.
type Config struct {
	// Format specifies the output format.
	// Default: FormatTable.
	Format Format

	// Precision is the number of decimal places shown for quantities.
	// Default: 2.
	Precision int32

	// ShowReadings adds the selected period readings to the daily table.
	ShowReadings bool

	// Compact enables compact output (less whitespace).
	// Default: false.
	Compact bool
}
