// Package importer keeps the store in step with import directories.
//
// An Importer discovers import files, feeds new content to a Sink (normally
// the tracker) and then watches the directories for further changes.
// Line-oriented files are read incrementally: the byte offset is committed
// only after the sink accepts the batch, so a failed import is retried on
// the next change. Export documents are re-imported whole; the store's
// insert-if-absent semantics make that idempotent.
//
// Example usage:
//
//	imp, err := importer.New(importer.Config{Dirs: cfg.Import.Dirs}, t, rdr, p, disc, w, log)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer imp.Close()
//
//	if err := imp.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	for u := range imp.Updates() {
//	    fmt.Printf("%s: %d inserted\n", u.Path, u.Inserted)
//	}
package importer

import (
	"context"
	"time"

	"github.com/0xmhha/meter-tracker/pkg/ingest"
	"github.com/0xmhha/meter-tracker/pkg/tracker"
)

// DefaultSource labels batches read from import files.
const DefaultSource = "file"

// Sink receives validated import batches.
type Sink interface {
	Import(ctx context.Context, source string, batch ingest.Batch) (tracker.ImportResult, error)
}

// Config holds importer configuration.
type Config struct {
	// Dirs are the import directories to scan and watch.
	Dirs []string

	// Source labels batches passed to the sink. Default: "file".
	Source string

	// RescanInterval triggers a full rescan in addition to watcher events.
	// Zero disables periodic rescans.
	RescanInterval time.Duration
}

// Importer imports files from the configured directories.
type Importer interface {
	// ImportAll scans every directory once and imports new content.
	//
	// Returns the totals over all files. Per-file failures are logged and
	// counted, not returned.
	ImportAll(ctx context.Context) (Totals, error)

	// ImportPath imports new content from a single file.
	ImportPath(ctx context.Context, path string) (FileResult, error)

	// Start runs an initial ImportAll and then follows watcher events in
	// the background until ctx is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop halts background processing.
	Stop() error

	// Updates returns a channel that receives one Update per imported file.
	Updates() <-chan Update

	// Close stops the importer and closes the Updates channel.
	Close() error
}

// FileResult describes one import of one file.
type FileResult struct {
	// Path is the imported file.
	Path string

	// Records is the number of decoded records passed to the sink.
	Records int

	// ParseErrors is the number of lines or items that could not be decoded.
	ParseErrors int

	// Inserted and Skipped come from the store migration.
	Inserted int
	Skipped  int

	// Rejected is the number of records the validator refused.
	Rejected int

	// Offset is the committed position for line-oriented files.
	Offset int64
}

// Totals aggregates FileResults.
type Totals struct {
	Files       int
	Failed      int
	Records     int
	ParseErrors int
	Inserted    int
	Skipped     int
	Rejected    int
}

// Add folds a file result into the totals.
func (t *Totals) Add(r FileResult) {
	t.Files++
	t.Records += r.Records
	t.ParseErrors += r.ParseErrors
	t.Inserted += r.Inserted
	t.Skipped += r.Skipped
	t.Rejected += r.Rejected
}

// Update is sent after each file import attempt.
type Update struct {
	Timestamp time.Time
	FileResult
	Err error
}
