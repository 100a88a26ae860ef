package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/0xmhha/meter-tracker/pkg/influx"
	"github.com/0xmhha/meter-tracker/pkg/logger"
	"github.com/0xmhha/meter-tracker/pkg/report"
)

// exportCommand writes reports out of the terminal: an XLSX workbook and,
// optionally, the daily series to InfluxDB.
type exportCommand struct {
	output     string
	toInflux   bool
	configPath string
	out        io.Writer
}

func newExportCommand(configPath string, args []string) (*exportCommand, error) {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	output := fs.String("o", "", "write an XLSX workbook to this path")
	toInflux := fs.Bool("influx", false, "push the daily breakdown to InfluxDB")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *output == "" && !*toInflux {
		return nil, fmt.Errorf("export: nothing to do, use -o <file.xlsx> and/or -influx")
	}

	return &exportCommand{
		output:     *output,
		toInflux:   *toInflux,
		configPath: configPath,
		out:        os.Stdout,
	}, nil
}

// Execute runs the export command.
//
// Unlike the terminal reports, exports refuse to write degraded data.
func (c *exportCommand) Execute() error {
	ctx := context.Background()

	a, err := newApp(ctx, c.configPath, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	dash := a.tracker.Dashboard(ctx)
	if dash.Degraded {
		return fmt.Errorf("cannot export: %s", dash.Reason)
	}

	if c.output != "" {
		monthly := a.tracker.Monthly(ctx)
		if monthly.Degraded {
			return fmt.Errorf("cannot export: %s", monthly.Reason)
		}

		err := report.WriteFile(c.output, report.Input{
			Summary:     dash.Summary,
			Months:      monthly.Months,
			GeneratedAt: time.Now().In(a.loc),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Report written to %s\n", c.output)
	}

	if c.toInflux {
		if !a.cfg.Influx.Enabled() {
			return fmt.Errorf("export: influx is not configured")
		}

		sink, err := influx.New(ctx, influx.Config{
			URL:    a.cfg.Influx.URL,
			Token:  a.cfg.Influx.Token,
			Org:    a.cfg.Influx.Org,
			Bucket: a.cfg.Influx.Bucket,
		}, a.loc, logger.Component(a.log, "influx"))
		if err != nil {
			return err
		}
		defer sink.Close()

		n, err := sink.WriteDaily(ctx, dash.Summary.DailyUsage)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Pushed %d day(s) to %s\n", n, a.cfg.Influx.Bucket)
	}

	return nil
}
