package parser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/0xmhha/meter-tracker/pkg/ingest"
	"github.com/0xmhha/meter-tracker/pkg/logger"
)

const (
	// MaxFileSize is the maximum allowed import file size (100MB).
	// Files larger than this will be rejected to prevent memory exhaustion.
	MaxFileSize = 100 * 1024 * 1024

	// MaxLineLength is the maximum allowed line length (1MB).
	MaxLineLength = 1024 * 1024
)

// Parser decodes import files.
type Parser interface {
	// ParseFile reads a JSONL record stream from the given offset.
	//
	// Parameters:
	//   - path: Path to the JSONL file
	//   - offset: Byte offset to start reading from (0 for beginning)
	//
	// Returns:
	//   - Decoded records, per-line errors and the new offset
	//   - Error if the file cannot be read or is too large
	//
	// Thread-safety: This method is safe to call concurrently with different files.
	ParseFile(path string, offset int64) (*Result, error)

	// ParseLine decodes a single JSONL line.
	//
	// Thread-safety: This method is thread-safe.
	ParseLine(line []byte) (*Record, error)

	// ParseDocument decodes a whole JSON batch document.
	ParseDocument(r io.Reader) (ingest.Batch, error)
}

// jsonParser implements the Parser interface.
type jsonParser struct {
	logger logger.Logger
}

// New creates a new Parser instance.
func New(log logger.Logger) Parser {
	return &jsonParser{logger: log}
}

// ParseFile implements Parser.ParseFile.
func (p *jsonParser) ParseFile(path string, offset int64) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("%w: size=%d, max=%d",
			ErrFileTooLarge, info.Size(), MaxFileSize)
	}

	// #nosec G304: path comes from configured import directories
	f, err := os.Open(path) // nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			p.logger.Warn("failed to close file", "path", path, "error", closeErr)
		}
	}()

	if offset > info.Size() {
		// Truncated or replaced since the last read.
		p.logger.Info("file shrank, reading from start", "path", path, "offset", offset, "size", info.Size())
		offset = 0
	}

	if offset > 0 {
		if _, seekErr := f.Seek(offset, io.SeekStart); seekErr != nil {
			return nil, fmt.Errorf("failed to seek to offset %d: %w", offset, seekErr)
		}
	}

	res := &Result{Offset: offset}
	r := bufio.NewReaderSize(f, 64*1024)

	for {
		line, readErr := r.ReadBytes('\n')

		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return res, fmt.Errorf("read error at byte %d: %w", res.Offset, readErr)
		}
		if readErr != nil || len(line) == 0 || line[len(line)-1] != '\n' {
			// EOF: an unterminated tail is still being written.
			break
		}

		lineStart := res.Offset
		res.Lines++
		res.Offset += int64(len(line))

		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 {
			continue
		}
		if len(trimmed) > MaxLineLength {
			res.Errors = append(res.Errors, &ParseError{Line: res.Lines, Offset: lineStart, Data: string(trimmed[:100]), Err: ErrMalformedJSON})
			continue
		}

		rec, parseErr := p.ParseLine(trimmed)
		if parseErr != nil {
			perr := &ParseError{Line: res.Lines, Offset: lineStart, Data: string(trimmed), Err: parseErr}
			p.logger.Warn("skipping malformed line", "path", path, "offset", lineStart, "line", res.Lines, "error", parseErr)
			res.Errors = append(res.Errors, perr)
			continue
		}

		switch rec.Type {
		case TypeReading:
			res.Batch.Readings = append(res.Batch.Readings, *rec.Reading)
		case TypeTopUp:
			res.Batch.TopUps = append(res.Batch.TopUps, *rec.TopUp)
		}
	}

	return res, nil
}

// envelope reads only the discriminator.
type envelope struct {
	Type *string `json:"type"`
}

// ParseLine implements Parser.ParseLine.
func (p *jsonParser) ParseLine(line []byte) (*Record, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrMalformedJSON)
	}

	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	if env.Type == nil {
		return nil, fmt.Errorf("%w: missing type", ErrUnknownType)
	}

	switch RecordType(*env.Type) {
	case TypeReading:
		var raw ingest.RawReading
		if err := json.Unmarshal(line, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
		}
		return &Record{Type: TypeReading, Reading: &raw}, nil
	case TypeTopUp:
		var raw ingest.RawTopUp
		if err := json.Unmarshal(line, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
		}
		return &Record{Type: TypeTopUp, TopUp: &raw}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, *env.Type)
	}
}

// document is the JSON batch layout. Items are kept raw so one bad item
// does not discard the others.
type document struct {
	Readings []json.RawMessage `json:"readings"`
	TopUps   []json.RawMessage `json:"topUps"`
}

// ParseDocument implements Parser.ParseDocument.
//
// An item that fails to decode keeps its position in the batch with
// DecodeErr set, so the validator rejects it under its document index.
// Items that decode but miss fields are also left to the validator.
func (p *jsonParser) ParseDocument(r io.Reader) (ingest.Batch, error) {
	var doc document
	dec := json.NewDecoder(io.LimitReader(r, MaxFileSize))
	if err := dec.Decode(&doc); err != nil {
		return ingest.Batch{}, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}

	batch := ingest.Batch{
		Readings: make([]ingest.RawReading, 0, len(doc.Readings)),
		TopUps:   make([]ingest.RawTopUp, 0, len(doc.TopUps)),
	}

	for i, item := range doc.Readings {
		var raw ingest.RawReading
		if err := json.Unmarshal(item, &raw); err != nil {
			p.logger.Warn("malformed reading in document", "index", i, "error", err)
			raw = ingest.RawReading{Key: raw.Key, DecodeErr: err}
		}
		batch.Readings = append(batch.Readings, raw)
	}

	for i, item := range doc.TopUps {
		var raw ingest.RawTopUp
		if err := json.Unmarshal(item, &raw); err != nil {
			p.logger.Warn("malformed top-up in document", "index", i, "error", err)
			raw = ingest.RawTopUp{Key: raw.Key, DecodeErr: err}
		}
		batch.TopUps = append(batch.TopUps, raw)
	}

	return batch, nil
}

// ParseDocumentFile opens path and decodes it with p.
func ParseDocumentFile(p Parser, path string) (ingest.Batch, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ingest.Batch{}, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.Size() > MaxFileSize {
		return ingest.Batch{}, fmt.Errorf("%w: size=%d, max=%d", ErrFileTooLarge, info.Size(), MaxFileSize)
	}

	// #nosec G304: path comes from the command line or configured import directories
	f, err := os.Open(path) // nolint:gosec
	if err != nil {
		return ingest.Batch{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return p.ParseDocument(f)
}
