// Package report exports usage reports as XLSX workbooks.
//
// A workbook has three sheets: "summary" with the dashboard statistics,
// "daily" with the per-period breakdown and "monthly" with consumption per
// calendar month. Quantities are written as numbers so spreadsheet formulas
// work on them.
package report

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/0xmhha/meter-tracker/pkg/meter"
	"github.com/0xmhha/meter-tracker/pkg/units"
	"github.com/0xmhha/meter-tracker/pkg/usage"
)

// Sheet names.
const (
	SheetSummary = "summary"
	SheetDaily   = "daily"
	SheetMonthly = "monthly"
)

// Input holds everything a workbook is built from.
type Input struct {
	Summary     usage.Summary
	Months      []usage.MonthlyUsage
	GeneratedAt time.Time
}

// Build renders the workbook. The caller must Close the returned file.
func Build(in Input) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{SheetDaily, SheetMonthly} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	w := &sheetWriter{f: f}
	writeSummary(w, in)
	writeDaily(w, in.Summary.DailyUsage)
	writeMonthly(w, in.Months)

	if w.err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write workbook: %w", w.err)
	}
	return f, nil
}

// Write renders the workbook into w.
func Write(out io.Writer, in Input) error {
	f, err := Build(in)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// WriteFile renders the workbook to path, creating parent directories.
func WriteFile(path string, in Input) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	var buf bytes.Buffer
	if err := Write(&buf, in); err != nil {
		return err
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}

func writeSummary(w *sheetWriter, in Input) {
	s := in.Summary
	rows := [][]interface{}{
		{"Meter Usage Report"},
		{},
		{"Generated", in.GeneratedAt.Format(time.RFC3339)},
		{"Days Counted", s.DaysCounted},
		{"Average Daily Usage", number(s.AverageUsage)},
		{"Peak Usage Day", s.PeakUsageDay.Date},
		{"Peak Usage", number(s.PeakUsageDay.Usage)},
		{"Total Usage", number(s.TotalUsage)},
		{"Tokens Purchased", number(s.TotalTokensPurchased)},
		{"Total Cost", number(s.TotalCost)},
	}
	for i, row := range rows {
		w.row(SheetSummary, i+1, row)
	}
	w.width(SheetSummary, "A", "A", 22)
}

func writeDaily(w *sheetWriter, days []usage.DailyUsage) {
	w.row(SheetDaily, 1, []interface{}{
		"Date", "Morning", "Evening", "Night", "Total",
		"Morning Reading", "Evening Reading", "Night Reading",
	})
	for i, d := range days {
		w.row(SheetDaily, i+2, []interface{}{
			d.Date,
			number(d.MorningUsage),
			number(d.EveningUsage),
			number(d.NightUsage),
			number(d.Total),
			readingValue(d.Morning),
			readingValue(d.Evening),
			readingValue(d.Night),
		})
	}
	w.width(SheetDaily, "A", "H", 16)
}

func writeMonthly(w *sheetWriter, months []usage.MonthlyUsage) {
	w.row(SheetMonthly, 1, []interface{}{"Month", "Usage"})
	for i, m := range months {
		w.row(SheetMonthly, i+2, []interface{}{m.Month, number(m.Usage)})
	}
	w.width(SheetMonthly, "A", "B", 14)
}

// number converts a quantity to a spreadsheet number.
func number(v units.Value) float64 {
	return v.Float64()
}

// readingValue leaves the cell empty when the period had no reading.
func readingValue(r *meter.Reading) interface{} {
	if r == nil {
		return nil
	}
	return number(r.Value)
}

// sheetWriter keeps the first error so rows can be written without checks.
type sheetWriter struct {
	f   *excelize.File
	err error
}

func (w *sheetWriter) row(sheet string, n int, values []interface{}) {
	if w.err != nil || len(values) == 0 {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetSheetRow(sheet, cell, &values)
}

func (w *sheetWriter) width(sheet, from, to string, width float64) {
	if w.err != nil {
		return
	}
	w.err = w.f.SetColWidth(sheet, from, to, width)
}
