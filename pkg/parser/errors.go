package parser

import (
	"errors"
	"fmt"
)

// Common errors returned by the parser package.
var (
	// ErrMalformedJSON is returned when a line or document is not valid JSON
	// or a field has the wrong JSON type.
	ErrMalformedJSON = errors.New("malformed JSON")

	// ErrUnknownType is returned when a record's "type" is not reading or topup.
	ErrUnknownType = errors.New("unknown record type")

	// ErrFileTooLarge is returned when a file exceeds the maximum size limit.
	ErrFileTooLarge = errors.New("file size exceeds maximum limit")
)

// ParseError provides context about a parsing failure.
//
// Line counts from where the read started, which is the file start only
// for a read at offset 0. Offset locates the line in the file regardless.
type ParseError struct {
	Line   int    // Line number within the read (1-indexed)
	Offset int64  // Byte offset of the line start in the file
	Data   string // The malformed line (truncated if too long)
	Err    error  // Underlying error
}

func (e *ParseError) Error() string {
	const maxLen = 100
	data := e.Data
	if len(data) > maxLen {
		data = data[:maxLen] + "..."
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error at byte %d (line %d of read): %s: %v", e.Offset, e.Line, data, e.Err)
	}
	return fmt.Sprintf("parse error: %s: %v", data, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
