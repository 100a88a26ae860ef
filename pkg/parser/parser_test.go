package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/meter-tracker/pkg/ingest"
	"github.com/0xmhha/meter-tracker/pkg/logger"
	"github.com/0xmhha/meter-tracker/pkg/units"
)

const (
	readingLine = `{"type":"reading","readingKey":"r1","timestamp":"2024-01-15T07:30:00+01:00","value":1520.5,"period":"morning"}`
	topUpLine   = `{"type":"topup","topUpKey":"t1","timestamp":"2024-01-15T09:00:00+01:00","unitsAdded":50,"resultingReading":1570.5,"cost":4500}`
)

func TestParseLine(t *testing.T) {
	p := New(logger.Noop())

	tests := []struct {
		name    string
		line    string
		wantErr error
		check   func(t *testing.T, rec *Record)
	}{
		{
			name: "reading",
			line: readingLine,
			check: func(t *testing.T, rec *Record) {
				require.Equal(t, TypeReading, rec.Type)
				require.NotNil(t, rec.Reading)
				assert.Equal(t, "r1", *rec.Reading.Key)
				assert.Equal(t, "1520.5", rec.Reading.Value.String())
				assert.Equal(t, "morning", *rec.Reading.Period)
				assert.Equal(t, 7, rec.Reading.Timestamp.Hour())
			},
		},
		{
			name: "top-up",
			line: topUpLine,
			check: func(t *testing.T, rec *Record) {
				require.Equal(t, TypeTopUp, rec.Type)
				require.NotNil(t, rec.TopUp)
				assert.Equal(t, 0, rec.TopUp.UnitsAdded.Cmp(units.FromInt(50)))
				require.NotNil(t, rec.TopUp.Cost)
			},
		},
		{
			name: "missing fields decode as nil",
			line: `{"type":"reading","readingKey":"r2"}`,
			check: func(t *testing.T, rec *Record) {
				assert.Nil(t, rec.Reading.Value)
				assert.Nil(t, rec.Reading.Timestamp)
			},
		},
		{name: "empty line", line: "", wantErr: ErrMalformedJSON},
		{name: "invalid json", line: `{"type":"reading"`, wantErr: ErrMalformedJSON},
		{name: "missing type", line: `{"readingKey":"r1"}`, wantErr: ErrUnknownType},
		{name: "unknown type", line: `{"type":"refund"}`, wantErr: ErrUnknownType},
		{
			name:    "quoted numeral is a type mismatch",
			line:    `{"type":"reading","readingKey":"r1","timestamp":"2024-01-15T07:30:00Z","value":"1520.5","period":"morning"}`,
			wantErr: ErrMalformedJSON,
		},
		{
			name:    "numeric key is a type mismatch",
			line:    `{"type":"topup","topUpKey":7,"timestamp":"2024-01-15T07:30:00Z","unitsAdded":1,"resultingReading":2}`,
			wantErr: ErrMalformedJSON,
		},
		{
			name:    "timestamp must be RFC 3339",
			line:    `{"type":"reading","readingKey":"r1","timestamp":"15/01/2024","value":1,"period":"night"}`,
			wantErr: ErrMalformedJSON,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := p.ParseLine([]byte(tt.line))
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			tt.check(t, rec)
		})
	}
}

func TestParseFile(t *testing.T) {
	p := New(logger.Noop())
	dir := t.TempDir()

	t.Run("mixed valid and malformed lines", func(t *testing.T) {
		path := filepath.Join(dir, "mixed.jsonl")
		content := readingLine + "\n" +
			"not json\n" +
			"\n" +
			topUpLine + "\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))

		res, err := p.ParseFile(path, 0)
		require.NoError(t, err)
		assert.Len(t, res.Batch.Readings, 1)
		assert.Len(t, res.Batch.TopUps, 1)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, 2, res.Errors[0].Line)
		assert.Equal(t, int64(len(readingLine)+1), res.Errors[0].Offset)
		assert.Equal(t, int64(len(content)), res.Offset)
		assert.Equal(t, 4, res.Lines)
	})

	t.Run("incremental read", func(t *testing.T) {
		path := filepath.Join(dir, "incremental.jsonl")
		first := readingLine + "\n"
		require.NoError(t, os.WriteFile(path, []byte(first), 0600))

		res, err := p.ParseFile(path, 0)
		require.NoError(t, err)
		require.Len(t, res.Batch.Readings, 1)

		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
		require.NoError(t, err)
		_, err = f.WriteString(topUpLine + "\n")
		require.NoError(t, err)
		require.NoError(t, f.Close())

		res, err = p.ParseFile(path, res.Offset)
		require.NoError(t, err)
		assert.Empty(t, res.Batch.Readings)
		assert.Len(t, res.Batch.TopUps, 1)
	})

	t.Run("errors after a resume carry the file offset", func(t *testing.T) {
		path := filepath.Join(dir, "resumed.jsonl")
		first := readingLine + "\n" + topUpLine + "\n"
		require.NoError(t, os.WriteFile(path, []byte(first), 0600))

		res, err := p.ParseFile(path, 0)
		require.NoError(t, err)
		start := res.Offset

		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
		require.NoError(t, err)
		_, err = f.WriteString(readingLine + "\n" + "not json\n")
		require.NoError(t, err)
		require.NoError(t, f.Close())

		res, err = p.ParseFile(path, start)
		require.NoError(t, err)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, 2, res.Errors[0].Line)
		wantOffset := start + int64(len(readingLine)+1)
		assert.Equal(t, wantOffset, res.Errors[0].Offset)
		assert.Contains(t, res.Errors[0].Error(), fmt.Sprintf("byte %d", wantOffset))
	})

	t.Run("unterminated tail is left for later", func(t *testing.T) {
		path := filepath.Join(dir, "partial.jsonl")
		content := readingLine + "\n" + `{"type":"topup","topUpKey":"t`
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))

		res, err := p.ParseFile(path, 0)
		require.NoError(t, err)
		assert.Len(t, res.Batch.Readings, 1)
		assert.Empty(t, res.Errors)
		assert.Equal(t, int64(len(readingLine)+1), res.Offset)
	})

	t.Run("offset past end restarts", func(t *testing.T) {
		path := filepath.Join(dir, "truncated.jsonl")
		require.NoError(t, os.WriteFile(path, []byte(readingLine+"\n"), 0600))

		res, err := p.ParseFile(path, 10_000)
		require.NoError(t, err)
		assert.Len(t, res.Batch.Readings, 1)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := p.ParseFile(filepath.Join(dir, "nope.jsonl"), 0)
		assert.Error(t, err)
	})
}

func TestParseDocument(t *testing.T) {
	p := New(logger.Noop())

	doc := `{
		"readings": [
			{"readingKey":"r1","timestamp":"2024-01-15T07:30:00Z","value":100,"period":"morning"},
			{"readingKey":"r2","timestamp":"2024-01-15T13:30:00Z","value":"90","period":"evening"},
			{"readingKey":"r3"}
		],
		"topUps": [
			{"topUpKey":"t1","timestamp":"2024-01-15T09:00:00Z","unitsAdded":50,"resultingReading":150}
		]
	}`

	batch, err := p.ParseDocument(strings.NewReader(doc))
	require.NoError(t, err)

	// r2 has a quoted value and keeps its slot with the decode error;
	// r3 is left for the validator.
	require.Len(t, batch.Readings, 3)
	assert.Equal(t, "r1", *batch.Readings[0].Key)
	assert.NoError(t, batch.Readings[0].DecodeErr)
	assert.Error(t, batch.Readings[1].DecodeErr)
	assert.Nil(t, batch.Readings[1].Value)
	assert.Equal(t, "r3", *batch.Readings[2].Key)
	assert.NoError(t, batch.Readings[2].DecodeErr)
	assert.Len(t, batch.TopUps, 1)

	res := ingest.ValidateAndStage(batch.Readings, batch.TopUps)
	require.Len(t, res.Rejected, 2)
	assert.Equal(t, 1, res.Rejected[0].Index)
	assert.Contains(t, res.Rejected[0].Reason, ingest.ErrMalformedItem.Error())
	assert.Equal(t, 2, res.Rejected[1].Index)
	assert.Equal(t, ingest.ErrMissingTimestamp.Error(), res.Rejected[1].Reason)

	_, err = p.ParseDocument(strings.NewReader(`[1,2,3]`))
	assert.True(t, errors.Is(err, ErrMalformedJSON))
}

func TestParseDocumentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"readings":[],"topUps":[]}`), 0600))

	batch, err := ParseDocumentFile(New(logger.Noop()), path)
	require.NoError(t, err)
	assert.Equal(t, 0, batch.Len())
}

func TestParseErrorMessage(t *testing.T) {
	err := &ParseError{Line: 3, Offset: 512, Data: strings.Repeat("x", 150), Err: ErrMalformedJSON}

	msg := err.Error()
	assert.Contains(t, msg, "byte 512")
	assert.Contains(t, msg, "line 3")
	assert.Contains(t, msg, "...")
	assert.True(t, errors.Is(err, ErrMalformedJSON))
}
