// Package watcher notifies when meter import files change on disk.
//
// It wraps fsnotify, filters events down to import file extensions and
// coalesces bursts of writes to the same file into a single event. New
// subdirectories created under a watched root are picked up as they appear.
//
// Example usage:
//
//	w, err := watcher.New(watcher.Config{
//	    DebounceInterval: 250 * time.Millisecond,
//	}, logger.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Close()
//
//	if err := w.Start(ctx, []string{"~/.config/meter-tracker/imports"}); err != nil {
//	    log.Fatal(err)
//	}
//
//	for event := range w.Events() {
//	    fmt.Printf("%s %s\n", event.Op, event.Path)
//	}
package watcher

import (
	"context"
	"time"
)

// Op describes a file operation type.
type Op uint32

// File operation types.
const (
	OpCreate Op = 1 << iota // File created
	OpWrite                 // File modified
	OpRemove                // File deleted
	OpRename                // File renamed/moved
	OpChmod                 // File permissions changed
)

// String returns a human-readable operation name.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	case OpRename:
		return "RENAME"
	case OpChmod:
		return "CHMOD"
	default:
		return "UNKNOWN"
	}
}

// Event is a debounced change to an import file.
type Event struct {
	// Path is the path of the file that changed.
	Path string

	// Op is the last operation seen for the file within the debounce window.
	Op Op

	// Timestamp is when the operation was observed.
	Timestamp time.Time
}

// Watcher provides file system monitoring.
type Watcher interface {
	// Start begins watching the specified directories and their subdirectories.
	//
	// Parameters:
	//   - ctx: Context for cancellation
	//   - paths: Directories to watch, ~ is expanded
	//
	// Returns ErrInvalidPath when none of the paths exist.
	//
	// Event processing runs in a background goroutine until ctx is
	// cancelled or Stop is called.
	Start(ctx context.Context, paths []string) error

	// Stop halts event processing. The watcher cannot be restarted.
	Stop() error

	// Events returns the channel of debounced file events.
	// The channel is closed by Close.
	Events() <-chan Event

	// Errors returns the channel of non-fatal watcher errors.
	// The channel is closed by Close.
	Errors() <-chan error

	// Close stops the watcher and releases resources.
	Close() error
}

// Config contains watcher configuration.
type Config struct {
	// DebounceInterval is the time to wait before emitting an event.
	// Multiple events for the same file within this interval are coalesced.
	// Default: 100ms.
	DebounceInterval time.Duration

	// Extensions lists the file extensions that produce events, compared
	// case-insensitively. Default: .jsonl and .json.
	Extensions []string

	// CircuitBreakerThreshold is the number of fsnotify errors after which
	// ErrCircuitBreakerOpen is reported instead of the raw error.
	// Default: 5.
	CircuitBreakerThreshold int

	// BufferSize is the capacity of the events channel. Events are dropped
	// with a warning when the consumer falls behind. Default: 100.
	BufferSize int
}
