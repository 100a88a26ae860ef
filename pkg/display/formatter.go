package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/0xmhha/meter-tracker/pkg/meter"
	"github.com/0xmhha/meter-tracker/pkg/units"
)

// New creates a new formatter based on configuration.
//
// Parameters:
//   - cfg: Formatter configuration
//
// Returns a configured Formatter.
func New(cfg Config) Formatter {
	if cfg.Format == "" {
		cfg.Format = FormatTable
	}
	if cfg.Precision <= 0 {
		cfg.Precision = 2
	}

	switch cfg.Format {
	case FormatJSON:
		return &jsonFormatter{config: cfg}
	case FormatSimple:
		return &simpleFormatter{config: cfg}
	case FormatTable:
		fallthrough
	default:
		return &tableFormatter{config: cfg}
	}
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON, FormatSimple:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or simple)", s)
	}
}

// formatNumber formats a number with thousand separators.
func formatNumber(n int) string {
	s := fmt.Sprintf("%d", n)
	if n < 0 {
		return "-" + groupThousands(s[1:])
	}
	return groupThousands(s)
}

// formatValue formats a quantity with fixed precision and thousand separators.
func formatValue(v units.Value, precision int32) string {
	s := v.StringFixed(precision)

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}

	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	return sign + groupThousands(intPart) + frac
}

// groupThousands inserts commas into a string of digits.
func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	var b strings.Builder
	for i, c := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// formatReading renders the value of an optional reading.
func formatReading(r *meter.Reading, precision int32) string {
	if r == nil {
		return "-"
	}
	return formatValue(r.Value, precision)
}

// writeHeader writes a section header.
func writeHeader(w io.Writer, title string, compact bool) error {
	if compact {
		_, err := fmt.Fprintf(w, "%s\n", title)
		return err
	}

	_, err := fmt.Fprintf(w, "\n%s\n%s\n\n", title, strings.Repeat("=", len(title)))
	return err
}

// writeDegraded writes the notice shown when the store could not be read.
func writeDegraded(w io.Writer, reason string) error {
	if reason == "" {
		reason = "store unavailable"
	}
	_, err := fmt.Fprintf(w, "Data unavailable: %s\n", reason)
	return err
}
