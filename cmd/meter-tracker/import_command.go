package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/0xmhha/meter-tracker/pkg/discovery"
	"github.com/0xmhha/meter-tracker/pkg/importer"
	"github.com/0xmhha/meter-tracker/pkg/ingest"
	"github.com/0xmhha/meter-tracker/pkg/logger"
	"github.com/0xmhha/meter-tracker/pkg/parser"
	"github.com/0xmhha/meter-tracker/pkg/reader"
	"github.com/0xmhha/meter-tracker/pkg/watcher"
)

// importCommand imports files into the store.
//
// Without arguments it scans the configured import directories and picks
// up where the previous run stopped. Files named on the command line are
// imported whole and their validation result is printed.
type importCommand struct {
	dirs       []string
	files      []string
	format     string
	configPath string
	out        io.Writer
}

// stringList collects a repeatable flag.
type stringList []string

func (s *stringList) String() string     { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error { *s = append(*s, v); return nil }

func newImportCommand(configPath string, args []string) (*importCommand, error) {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	var dirs stringList
	fs.Var(&dirs, "dir", "import directory (repeatable, default: import.dirs)")
	format := fs.String("format", "", "output format for file imports (table, json, simple)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return &importCommand{
		dirs:       dirs,
		files:      fs.Args(),
		format:     *format,
		configPath: configPath,
		out:        os.Stdout,
	}, nil
}

// Execute runs the import command.
func (c *importCommand) Execute() error {
	ctx := context.Background()

	a, err := newApp(ctx, c.configPath, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.requireStore(); err != nil {
		return err
	}

	if len(c.files) > 0 {
		return c.importFiles(ctx, a)
	}
	return c.importDirs(ctx, a)
}

// importFiles imports each named file from the start.
func (c *importCommand) importFiles(ctx context.Context, a *app) error {
	format := c.format
	if format == "" {
		format = a.cfg.Display.Format
	}
	f, err := newFormatter(format, a.cfg.Display.Precision, false, false)
	if err != nil {
		return err
	}

	p := parser.New(logger.Component(a.log, "parser"))

	for _, path := range c.files {
		batch, err := readImportFile(p, path)
		if err != nil {
			return err
		}

		res, err := a.tracker.Import(ctx, importer.DefaultSource, batch)
		if err != nil {
			return fmt.Errorf("failed to import %s: %w", path, err)
		}

		fmt.Fprintf(c.out, "%s\n", path)
		if err := f.FormatImport(c.out, res); err != nil {
			return err
		}
	}
	return nil
}

// readImportFile decodes a whole file by its extension.
func readImportFile(p parser.Parser, path string) (ingest.Batch, error) {
	format, ok := discovery.FormatOf(path)
	if !ok {
		return ingest.Batch{}, fmt.Errorf("%w: %s", importer.ErrUnsupportedFile, filepath.Base(path))
	}

	if format == discovery.FormatDocument {
		return parser.ParseDocumentFile(p, path)
	}

	res, err := p.ParseFile(path, 0)
	if err != nil {
		return ingest.Batch{}, err
	}
	for _, perr := range res.Errors {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, perr)
	}
	return res.Batch, nil
}

// importDirs imports new content from the import directories.
func (c *importCommand) importDirs(ctx context.Context, a *app) error {
	dirs := c.dirs
	if len(dirs) == 0 {
		dirs = a.cfg.Import.Dirs
	}

	imp, cleanup, err := newImporter(a, dirs, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	totals, err := imp.ImportAll(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Imported %d file(s): %d records, %d inserted, %d skipped, %d rejected, %d parse errors\n",
		totals.Files, totals.Records, totals.Inserted, totals.Skipped, totals.Rejected, totals.ParseErrors)
	if totals.Failed > 0 {
		return fmt.Errorf("%d file(s) failed to import", totals.Failed)
	}
	return nil
}

// newImporter wires the file import pipeline. w may be nil for one-shot
// imports. The returned cleanup closes everything newImporter opened.
func newImporter(a *app, dirs []string, w watcher.Watcher) (importer.Importer, func(), error) {
	log := logger.Component(a.log, "importer")

	positions, err := reader.OpenBoltPositionStore(a.cfg.Storage.StatePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open import state: %w", err)
	}

	p := parser.New(logger.Component(a.log, "parser"))

	r, err := reader.New(reader.Config{
		PositionStore: positions,
		Parser:        p,
	}, logger.Component(a.log, "reader"))
	if err != nil {
		positions.Close()
		return nil, nil, fmt.Errorf("failed to initialize reader: %w", err)
	}

	disc := discovery.New(dirs, logger.Component(a.log, "discovery"))

	imp, err := importer.New(importer.Config{
		Dirs:           dirs,
		RescanInterval: a.cfg.Import.RescanInterval,
	}, a.tracker, r, p, disc, w, log)
	if err != nil {
		r.Close()
		positions.Close()
		return nil, nil, fmt.Errorf("failed to initialize importer: %w", err)
	}

	cleanup := func() {
		if err := imp.Close(); err != nil {
			log.Error("failed to close importer", "error", err)
		}
		if err := r.Close(); err != nil {
			log.Error("failed to close reader", "error", err)
		}
		if err := positions.Close(); err != nil {
			log.Error("failed to close import state", "error", err)
		}
	}
	return imp, cleanup, nil
}
