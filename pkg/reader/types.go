// Package reader provides incremental reading of JSONL import files with
// persisted byte offsets.
//
// Reading and committing are separate steps: Read returns the records found
// after the stored offset, and Commit stores the new offset once the records
// have been imported. A failed import therefore leaves the offset where it
// was and the same lines are read again next time.
//
// Example usage:
//
//	positions, err := reader.OpenBoltPositionStore("~/.config/meter-tracker/import-state.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer positions.Close()
//
//	r, err := reader.New(reader.Config{
//	    PositionStore: positions,
//	    Parser:        parser.New(log),
//	}, log)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	chunk, err := r.Read(ctx, "/imports/readings.jsonl")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if _, err := t.Import(ctx, "file", chunk.Batch); err == nil {
//	    _ = r.Commit(chunk.Path, chunk.Offset)
//	}
package reader

import (
	"context"
	"time"

	"github.com/0xmhha/meter-tracker/pkg/ingest"
	"github.com/0xmhha/meter-tracker/pkg/parser"
)

// PositionStore provides persistence for file read positions.
type PositionStore interface {
	// GetPosition retrieves the last committed offset for a file.
	//
	// Returns 0 if no position is stored (start from beginning).
	GetPosition(path string) (int64, error)

	// SetPosition stores the committed offset for a file.
	SetPosition(path string, offset int64) error

	// Close releases the underlying storage.
	Close() error
}

// Chunk is the new content found in a file since its committed offset.
type Chunk struct {
	// Path is the file that was read.
	Path string

	// Batch holds the decoded records.
	Batch ingest.Batch

	// Errors lists lines that could not be decoded.
	Errors []*parser.ParseError

	// Offset is the position to commit once Batch is imported.
	Offset int64

	// Start is the offset reading began at.
	Start int64
}

// Empty reports whether the chunk carries neither records nor errors.
func (c *Chunk) Empty() bool {
	return c.Batch.Len() == 0 && len(c.Errors) == 0
}

// Reader provides incremental file reading.
type Reader interface {
	// Read returns the records appended to a file since its committed offset.
	//
	// Parameters:
	//   - ctx: Context for cancellation
	//   - path: Absolute path to a JSONL file
	//
	// The stored offset is not changed; call Commit after importing.
	Read(ctx context.Context, path string) (*Chunk, error)

	// ReadFrom reads records from a specific offset.
	//
	// Does not consult or update the stored position.
	ReadFrom(ctx context.Context, path string, offset int64) (*Chunk, error)

	// Commit stores offset as the committed position of path.
	Commit(path string, offset int64) error

	// Reset resets the committed position for a file to the beginning.
	Reset(path string) error

	// Close closes the reader. The position store is left open.
	Close() error
}

// Config contains reader configuration.
type Config struct {
	// PositionStore persists file read positions.
	PositionStore PositionStore

	// Parser decodes JSONL records.
	Parser parser.Parser

	// MaxRetries is the maximum number of retry attempts for transient errors.
	// Default: 3.
	MaxRetries int

	// RetryDelay is the base delay between retry attempts.
	// Uses exponential backoff: delay * 2^attempt.
	// Default: 100ms.
	RetryDelay time.Duration

	// MaxFileSize is the maximum file size to read (safety limit).
	// Default: 100MB.
	MaxFileSize int64
}
