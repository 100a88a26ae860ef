package importer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/0xmhha/meter-tracker/pkg/discovery"
	"github.com/0xmhha/meter-tracker/pkg/logger"
	"github.com/0xmhha/meter-tracker/pkg/parser"
	"github.com/0xmhha/meter-tracker/pkg/reader"
	"github.com/0xmhha/meter-tracker/pkg/watcher"
)

// importer implements the Importer interface.
type importer struct {
	config    Config
	logger    logger.Logger
	sink      Sink
	reader    reader.Reader
	parser    parser.Parser
	discovery discovery.Discoverer
	watcher   watcher.Watcher

	mu       sync.RWMutex
	running  bool
	closed   bool
	stopChan chan struct{}

	// importMu serializes imports triggered by events and rescans.
	importMu sync.Mutex

	updates chan Update
}

// New creates a new importer.
//
// Parameters:
//   - cfg: Importer configuration
//   - sink: Receiver of decoded batches, usually *tracker.Tracker
//   - r: Incremental reader for line-oriented files
//   - p: Parser for export documents
//   - disc: Import file discovery
//   - w: File watcher, may be nil when Start is never called
//   - log: Logger instance
//
// Returns:
//   - Configured Importer
//   - Error if a required dependency is missing
func New(cfg Config, sink Sink, r reader.Reader, p parser.Parser, disc discovery.Discoverer, w watcher.Watcher, log logger.Logger) (Importer, error) {
	if sink == nil || r == nil || p == nil || disc == nil {
		return nil, fmt.Errorf("importer requires sink, reader, parser and discovery")
	}

	if cfg.Source == "" {
		cfg.Source = DefaultSource
	}

	log.Debug("importer created",
		"dirs", cfg.Dirs,
		"rescan_interval", cfg.RescanInterval)

	return &importer{
		config:    cfg,
		logger:    log,
		sink:      sink,
		reader:    r,
		parser:    p,
		discovery: disc,
		watcher:   w,
		stopChan:  make(chan struct{}),
		updates:   make(chan Update, 32),
	}, nil
}

// ImportAll implements Importer.ImportAll.
func (m *importer) ImportAll(ctx context.Context) (Totals, error) {
	var totals Totals

	files, err := m.discovery.Discover()
	if err != nil {
		return totals, fmt.Errorf("failed to discover import files: %w", err)
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return totals, err
		}

		res, err := m.ImportPath(ctx, f.Path)
		if err != nil {
			totals.Failed++
			m.logger.Warn("failed to import file",
				"path", f.Path,
				"error", err)
			continue
		}
		totals.Add(res)
	}

	m.logger.Info("import scan complete",
		"files", totals.Files,
		"failed", totals.Failed,
		"inserted", totals.Inserted,
		"skipped", totals.Skipped,
		"rejected", totals.Rejected,
		"parse_errors", totals.ParseErrors)

	return totals, nil
}

// ImportPath implements Importer.ImportPath.
func (m *importer) ImportPath(ctx context.Context, path string) (FileResult, error) {
	m.importMu.Lock()
	defer m.importMu.Unlock()

	var (
		res FileResult
		err error
	)

	format, ok := discovery.FormatOf(path)
	switch {
	case !ok:
		return FileResult{Path: path}, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	case format == discovery.FormatLines:
		res, err = m.importLines(ctx, path)
	default:
		res, err = m.importDocument(ctx, path)
	}

	m.emit(Update{Timestamp: time.Now(), FileResult: res, Err: err})
	return res, err
}

// importLines imports the uncommitted tail of a JSONL file and commits the
// new offset once the sink has accepted it.
func (m *importer) importLines(ctx context.Context, path string) (FileResult, error) {
	res := FileResult{Path: path}

	chunk, err := m.reader.Read(ctx, path)
	if err != nil {
		return res, fmt.Errorf("failed to read %s: %w", path, err)
	}
	res.Offset = chunk.Start

	for _, perr := range chunk.Errors {
		m.logger.Warn("skipping malformed import line",
			"path", path,
			"offset", perr.Offset,
			"line", perr.Line,
			"error", perr.Err)
	}
	res.ParseErrors = len(chunk.Errors)

	if chunk.Batch.Len() > 0 {
		out, err := m.sink.Import(ctx, m.config.Source, chunk.Batch)
		if err != nil {
			return res, err
		}
		res.Records = chunk.Batch.Len()
		res.Inserted = out.Migration.Inserted()
		res.Skipped = out.Migration.Skipped()
		res.Rejected = len(out.Validation.Rejected)
	}

	if chunk.Offset != chunk.Start {
		if err := m.reader.Commit(chunk.Path, chunk.Offset); err != nil {
			return res, err
		}
	}
	res.Offset = chunk.Offset

	m.logger.Debug("imported file tail",
		"path", path,
		"from", chunk.Start,
		"to", chunk.Offset,
		"records", res.Records)

	return res, nil
}

// importDocument imports a whole export document.
func (m *importer) importDocument(ctx context.Context, path string) (FileResult, error) {
	res := FileResult{Path: path}

	batch, err := parser.ParseDocumentFile(m.parser, path)
	if err != nil {
		return res, err
	}

	if batch.Len() == 0 {
		return res, nil
	}

	out, err := m.sink.Import(ctx, m.config.Source, batch)
	if err != nil {
		return res, err
	}

	res.Records = batch.Len()
	res.Inserted = out.Migration.Inserted()
	res.Skipped = out.Migration.Skipped()
	res.Rejected = len(out.Validation.Rejected)
	return res, nil
}

// Start implements Importer.Start.
func (m *importer) Start(ctx context.Context) (err error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrImporterClosed
	}
	if m.running {
		m.mu.Unlock()
		return ErrImporterRunning
	}
	m.running = true
	m.stopChan = make(chan struct{})
	stop := m.stopChan
	m.mu.Unlock()

	defer func() {
		if err != nil {
			m.mu.Lock()
			m.running = false
			m.mu.Unlock()
		}
	}()

	if len(m.config.Dirs) == 0 {
		return ErrNoDirs
	}

	if _, err := m.ImportAll(ctx); err != nil {
		return fmt.Errorf("initial import failed: %w", err)
	}

	if m.watcher != nil {
		if err := m.watcher.Start(ctx, m.config.Dirs); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		go m.processEvents(ctx, stop)
	}

	if m.config.RescanInterval > 0 {
		go m.periodicRescan(ctx, stop)
	}

	m.logger.Info("importer started", "dirs", m.config.Dirs)
	return nil
}

// Stop implements Importer.Stop.
func (m *importer) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrImporterClosed
	}
	if !m.running {
		return ErrImporterNotRunning
	}

	close(m.stopChan)
	m.running = false

	if m.watcher != nil {
		if err := m.watcher.Stop(); err != nil {
			m.logger.Warn("failed to stop watcher", "error", err)
		}
	}

	m.logger.Info("importer stopped")
	return nil
}

// Updates implements Importer.Updates.
func (m *importer) Updates() <-chan Update {
	return m.updates
}

// Close implements Importer.Close.
func (m *importer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	if m.running {
		close(m.stopChan)
		m.running = false
	}

	close(m.updates)

	m.logger.Debug("importer closed")
	return nil
}

// processEvents handles file change events from the watcher.
func (m *importer) processEvents(ctx context.Context, stop <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return

		case <-stop:
			return

		case event, ok := <-m.watcher.Events():
			if !ok {
				return
			}
			m.handleFileChange(ctx, event)

		case err, ok := <-m.watcher.Errors():
			if !ok {
				return
			}
			m.logger.Error("watcher error", "error", err)
		}
	}
}

// handleFileChange imports changed files and forgets the offset of removed ones.
func (m *importer) handleFileChange(ctx context.Context, event watcher.Event) {
	m.logger.Debug("import file change detected",
		"path", event.Path,
		"op", event.Op)

	switch event.Op {
	case watcher.OpRemove, watcher.OpRename:
		if format, ok := discovery.FormatOf(event.Path); ok && format == discovery.FormatLines {
			if err := m.reader.Reset(event.Path); err != nil {
				m.logger.Warn("failed to reset import offset",
					"path", event.Path,
					"error", err)
			}
		}
	case watcher.OpChmod:
		// No content change.
	default:
		if _, err := m.ImportPath(ctx, event.Path); err != nil {
			m.logger.Warn("failed to import changed file",
				"path", event.Path,
				"error", err)
		}
	}
}

// periodicRescan imports everything on a fixed interval.
func (m *importer) periodicRescan(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(m.config.RescanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if _, err := m.ImportAll(ctx); err != nil {
				m.logger.Warn("periodic rescan failed", "error", err)
			}
		}
	}
}

// emit sends an update unless the importer is closed or nobody is reading.
func (m *importer) emit(u Update) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return
	}

	select {
	case m.updates <- u:
	default:
		m.logger.Debug("updates channel full, dropping update", "path", u.Path)
	}
}
