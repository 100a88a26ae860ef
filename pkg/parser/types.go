// Package parser decodes meter import files into raw ingest records.
//
// Two formats are understood:
//
//   - JSONL record streams (*.jsonl), one object per line, each carrying a
//     "type" of "reading" or "topup". Streams are read incrementally from a
//     byte offset so appended lines can be picked up later.
//   - JSON batch documents (*.json) of the form {"readings":[...],"topUps":[...]}.
//
// Decoding is strict about types: numeric fields must be JSON numbers and
// timestamps RFC 3339 strings. A quoted numeral fails the record instead of
// being coerced. Malformed lines are reported with their byte offset and
// skipped; they never fail the whole file.
//
// Example usage:
//
//	p := parser.New(logger.Default())
//	res, err := p.ParseFile("/imports/readings.jsonl", 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, perr := range res.Errors {
//	    fmt.Println(perr)
//	}
//	fmt.Printf("readings: %d, next offset: %d\n", len(res.Batch.Readings), res.Offset)
package parser

import (
	"github.com/0xmhha/meter-tracker/pkg/ingest"
)

// RecordType is the "type" discriminator of a JSONL record.
type RecordType string

const (
	TypeReading RecordType = "reading"
	TypeTopUp   RecordType = "topup"
)

// Record is one decoded JSONL line. Exactly one of Reading and TopUp is set.
type Record struct {
	Type    RecordType
	Reading *ingest.RawReading
	TopUp   *ingest.RawTopUp
}

// Result is the outcome of parsing a file.
type Result struct {
	// Batch holds every record that decoded.
	Batch ingest.Batch

	// Errors lists the lines that did not decode.
	Errors []*ParseError

	// Offset is the position after the last complete line. A trailing line
	// without a newline is left for the next read.
	Offset int64

	// Lines is the number of complete lines read, counted from the start offset.
	Lines int
}
