// Package main provides the meter-tracker CLI application.
//
// Meter Tracker records prepaid electricity meter readings and token
// top-ups, and reports daily, monthly and overall consumption. Readings can
// also be imported from files, followed live from import directories, or
// consumed from Kafka.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
)

// version is set during build time.
var version = "dev"

// executor is a parsed command ready to run.
type executor interface {
	Execute() error
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run parses global flags and dispatches to a command.
func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("meter-tracker", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to configuration file")
	showVersion := fs.Bool("version", false, "show version information")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Fprintf(out, "meter-tracker %s\n", version)
		return nil
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return showUsage(out)
	}

	command, cmdArgs := rest[0], rest[1:]

	if command == "help" {
		return showUsage(out)
	}
	if command == "config" {
		cmd := newConfigCommand(*configPath)
		cmd.out = out
		return cmd.Execute(cmdArgs)
	}

	cmd, err := parseCommand(command, *configPath, cmdArgs, out)
	if err != nil {
		return err
	}
	return cmd.Execute()
}

// parseCommand builds the named command from its arguments.
func parseCommand(name, configPath string, args []string, out io.Writer) (executor, error) {
	switch name {
	case "record":
		cmd, err := newRecordCommand(configPath, args)
		if err != nil {
			return nil, err
		}
		cmd.out = out
		return cmd, nil
	case "topup":
		cmd, err := newTopupCommand(configPath, args)
		if err != nil {
			return nil, err
		}
		cmd.out = out
		return cmd, nil
	case reportSummary, reportDaily, reportMonthly:
		cmd, err := newReportCommand(name, configPath, args)
		if err != nil {
			return nil, err
		}
		cmd.out = out
		return cmd, nil
	case "import":
		cmd, err := newImportCommand(configPath, args)
		if err != nil {
			return nil, err
		}
		cmd.out = out
		return cmd, nil
	case "watch":
		cmd, err := newWatchCommand(configPath, args)
		if err != nil {
			return nil, err
		}
		cmd.out = out
		return cmd, nil
	case "consume":
		return newConsumeCommand(configPath, args)
	case "export":
		cmd, err := newExportCommand(configPath, args)
		if err != nil {
			return nil, err
		}
		cmd.out = out
		return cmd, nil
	default:
		return nil, fmt.Errorf("unknown command: %s", name)
	}
}

// showUsage displays usage information.
func showUsage(out io.Writer) error {
	usage := `Meter Tracker - prepaid electricity meter usage tracker

Usage:
  meter-tracker [flags] <command> [command flags]

Commands:
  record      Record a meter reading
  topup       Record a token purchase
  summary     Show average, peak and total usage
  daily       Show usage per day and period (morning, evening, night)
  monthly     Show usage per calendar month
  import      Import readings from files or import directories
  watch       Import new files as they appear and show a live dashboard
  consume     Import readings from a Kafka topic
  export      Write an XLSX report or push daily usage to InfluxDB
  config      Configuration management (show, path, reset)
  help        Show this help message

Global Flags:
  -config     Path to configuration file
  -version    Show version information

Record Flags:
  -value      Meter reading (or pass it as the first argument)
  -at         Reading time in RFC 3339 (default: now)

Topup Flags:
  -units      Units purchased
  -cost       Amount paid (optional)
  -at         Purchase time in RFC 3339 (default: now)

Report Flags (summary, daily, monthly):
  -format     Output format (table, json, simple)
  -compact    Compact output
  -readings   Show the selected period readings (daily only)

Import Flags:
  -dir        Import directory, repeatable (default: import.dirs)
  -format     Output format for named files

Watch Flags:
  -refresh    Dashboard refresh interval (default: display.refresh_rate)
  -format     Output format (table, simple)
  -history    Keep previous output instead of redrawing

Consume Flags:
  -brokers    Comma-separated broker addresses
  -topic      Topic to consume
  -group      Consumer group id

Export Flags:
  -o          XLSX output path
  -influx     Push the daily breakdown to InfluxDB

Examples:
  # Record this morning's reading
  meter-tracker record 1520.5

  # Record a purchase of 50 units for 3000
  meter-tracker topup -units 50 -cost 3000

  # Show the daily breakdown with the readings used
  meter-tracker daily -readings

  # Import a legacy export document
  meter-tracker import ~/Downloads/meter-export.json

  # Write a spreadsheet report
  meter-tracker export -o report.xlsx
`
	fmt.Fprint(out, usage)
	return nil
}
