package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/0xmhha/meter-tracker/pkg/display"
	"github.com/0xmhha/meter-tracker/pkg/units"
)

// parseTime parses an optional -at value. Empty means now.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q (want RFC 3339, e.g. 2024-01-02T07:30:00+02:00)", s)
	}
	return t, nil
}

// newFormatter builds a formatter from flag values and display settings.
func newFormatter(format string, precision int, showReadings, compact bool) (display.Formatter, error) {
	f, err := display.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return display.New(display.Config{
		Format:       f,
		Precision:    int32(precision),
		ShowReadings: showReadings,
		Compact:      compact,
	}), nil
}

// recordCommand records a meter reading.
type recordCommand struct {
	value      units.Value
	at         time.Time
	configPath string
	out        io.Writer
}

func newRecordCommand(configPath string, args []string) (*recordCommand, error) {
	fs := flag.NewFlagSet("record", flag.ContinueOnError)
	value := fs.String("value", "", "meter reading (required)")
	at := fs.String("at", "", "reading time in RFC 3339 (default: now)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	raw := *value
	if raw == "" && fs.NArg() > 0 {
		raw = fs.Arg(0)
	}
	if raw == "" {
		return nil, fmt.Errorf("record: a reading value is required")
	}

	v, err := units.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}
	t, err := parseTime(*at)
	if err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}

	return &recordCommand{
		value:      v,
		at:         t,
		configPath: configPath,
		out:        os.Stdout,
	}, nil
}

// Execute runs the record command.
func (c *recordCommand) Execute() error {
	ctx := context.Background()

	a, err := newApp(ctx, c.configPath, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	r, err := a.tracker.RecordReading(ctx, c.value, c.at)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Recorded %s (%s) at %s\n",
		r.Value.String(), r.Period, r.Timestamp.Format("2006-01-02 15:04"))
	return nil
}

// topupCommand records a token purchase.
type topupCommand struct {
	units      units.Value
	cost       *units.Value
	at         time.Time
	configPath string
	out        io.Writer
}

func newTopupCommand(configPath string, args []string) (*topupCommand, error) {
	fs := flag.NewFlagSet("topup", flag.ContinueOnError)
	unitsAdded := fs.String("units", "", "units purchased (required)")
	cost := fs.String("cost", "", "amount paid (optional)")
	at := fs.String("at", "", "purchase time in RFC 3339 (default: now)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *unitsAdded == "" {
		return nil, fmt.Errorf("topup: -units is required")
	}

	cmd := &topupCommand{configPath: configPath, out: os.Stdout}

	v, err := units.Parse(*unitsAdded)
	if err != nil {
		return nil, fmt.Errorf("topup: %w", err)
	}
	cmd.units = v

	if *cost != "" {
		c, err := units.Parse(*cost)
		if err != nil {
			return nil, fmt.Errorf("topup: %w", err)
		}
		cmd.cost = &c
	}

	if cmd.at, err = parseTime(*at); err != nil {
		return nil, fmt.Errorf("topup: %w", err)
	}
	return cmd, nil
}

// Execute runs the topup command.
func (c *topupCommand) Execute() error {
	ctx := context.Background()

	a, err := newApp(ctx, c.configPath, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	tu, err := a.tracker.RecordTopUp(ctx, c.units, c.cost, c.at)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Top-up of %s recorded, meter now reads %s\n",
		tu.UnitsAdded.String(), tu.ResultingReading.String())
	return nil
}

// reportCommand prints one of the read-only reports.
type reportCommand struct {
	kind         string
	format       string
	compact      bool
	showReadings bool
	configPath   string
	out          io.Writer
}

// Report kinds.
const (
	reportSummary = "summary"
	reportDaily   = "daily"
	reportMonthly = "monthly"
)

func newReportCommand(kind, configPath string, args []string) (*reportCommand, error) {
	fs := flag.NewFlagSet(kind, flag.ContinueOnError)
	format := fs.String("format", "", "output format (table, json, simple)")
	compact := fs.Bool("compact", false, "compact output")
	var readings *bool
	if kind == reportDaily {
		readings = fs.Bool("readings", false, "show the selected period readings")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cmd := &reportCommand{
		kind:       kind,
		format:     *format,
		compact:    *compact,
		configPath: configPath,
		out:        os.Stdout,
	}
	if readings != nil {
		cmd.showReadings = *readings
	}
	return cmd, nil
}

// Execute runs the report command.
//
// Reports are printed even when the store is unavailable; the formatter
// marks them as degraded.
func (c *reportCommand) Execute() error {
	ctx := context.Background()

	a, err := newApp(ctx, c.configPath, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	format := c.format
	if format == "" {
		format = a.cfg.Display.Format
	}
	f, err := newFormatter(format, a.cfg.Display.Precision, c.showReadings || a.cfg.Display.ShowReadings, c.compact)
	if err != nil {
		return err
	}

	switch c.kind {
	case reportDaily:
		return f.FormatDaily(c.out, a.tracker.Daily(ctx))
	case reportMonthly:
		return f.FormatMonthly(c.out, a.tracker.Monthly(ctx))
	default:
		return f.FormatDashboard(c.out, a.tracker.Dashboard(ctx))
	}
}
