package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/0xmhha/meter-tracker/pkg/display"
	"github.com/0xmhha/meter-tracker/pkg/importer"
	"github.com/0xmhha/meter-tracker/pkg/influx"
	"github.com/0xmhha/meter-tracker/pkg/logger"
	"github.com/0xmhha/meter-tracker/pkg/watcher"
)

const defaultTermWidth = 80

// watchCommand imports files as they change and keeps the dashboard on
// screen.
type watchCommand struct {
	refresh    time.Duration
	format     string
	history    bool
	configPath string
	out        io.Writer
}

func newWatchCommand(configPath string, args []string) (*watchCommand, error) {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	refresh := fs.Duration("refresh", 0, "dashboard refresh interval (default: display.refresh_rate)")
	format := fs.String("format", "table", "output format (table, simple)")
	history := fs.Bool("history", false, "keep previous output instead of redrawing")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *format == string(display.FormatJSON) {
		return nil, fmt.Errorf("watch: json output is not supported, use summary -format json")
	}

	return &watchCommand{
		refresh:    *refresh,
		format:     *format,
		history:    *history,
		configPath: configPath,
		out:        os.Stdout,
	}, nil
}

// Execute runs the watch command until interrupted.
func (c *watchCommand) Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Only errors are logged so log lines do not break the redraw.
	a, err := newApp(ctx, c.configPath, appOptions{logLevel: "error", withMetrics: true})
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.requireStore(); err != nil {
		return err
	}
	a.serveMetrics(ctx)

	w, err := watcher.New(watcher.Config{
		DebounceInterval: a.cfg.Import.Debounce,
	}, logger.Component(a.log, "watcher"))
	if err != nil {
		return fmt.Errorf("failed to initialize watcher: %w", err)
	}
	defer func() {
		if err := w.Close(); err != nil {
			a.log.Error("failed to close watcher", "error", err)
		}
	}()

	imp, cleanup, err := newImporter(a, a.cfg.Import.Dirs, w)
	if err != nil {
		return err
	}
	defer cleanup()

	sink := c.openInflux(ctx, a)
	if sink != nil {
		defer sink.Close()
	}

	f, err := newFormatter(c.format, a.cfg.Display.Precision, false, true)
	if err != nil {
		return err
	}

	refresh := c.refresh
	if refresh <= 0 {
		refresh = a.cfg.Display.RefreshRate
	}

	if err := imp.Start(ctx); err != nil {
		return fmt.Errorf("failed to start importer: %w", err)
	}

	s := &screen{
		out:    c.out,
		redraw: !c.history && isTerminal(c.out),
		width:  terminalWidth(c.out),
	}

	ticker := time.NewTicker(refresh)
	defer ticker.Stop()

	var last *importer.Update
	c.render(ctx, a, f, s, last)

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			fmt.Fprintln(c.out, "Stopping watch...")
			return nil

		case u, ok := <-imp.Updates():
			if !ok {
				return nil
			}
			last = &u
			if sink != nil && u.Err == nil && u.Inserted > 0 {
				c.pushDaily(ctx, a, sink)
			}
			c.render(ctx, a, f, s, last)

		case <-ticker.C:
			c.render(ctx, a, f, s, last)
		}
	}
}

// openInflux connects the daily usage sink when configured. A failed
// connection is logged and watching continues without it.
func (c *watchCommand) openInflux(ctx context.Context, a *app) *influx.Sink {
	if !a.cfg.Influx.Enabled() {
		return nil
	}

	sink, err := influx.New(ctx, influx.Config{
		URL:    a.cfg.Influx.URL,
		Token:  a.cfg.Influx.Token,
		Org:    a.cfg.Influx.Org,
		Bucket: a.cfg.Influx.Bucket,
	}, a.loc, logger.Component(a.log, "influx"))
	if err != nil {
		a.log.Error("influx sink disabled", "error", err)
		return nil
	}
	return sink
}

func (c *watchCommand) pushDaily(ctx context.Context, a *app, sink *influx.Sink) {
	daily := a.tracker.Daily(ctx)
	if daily.Degraded {
		return
	}
	if _, err := sink.WriteDaily(ctx, daily.Days); err != nil {
		a.log.Error("failed to push daily usage", "error", err)
	}
}

func (c *watchCommand) render(ctx context.Context, a *app, f display.Formatter, s *screen, last *importer.Update) {
	s.begin()

	fmt.Fprintf(c.out, "Meter Tracker - %s - Press Ctrl+C to stop\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(c.out, "Watching: %s\n", strings.Join(a.cfg.Import.Dirs, ", "))
	s.rule()

	if err := f.FormatDashboard(c.out, a.tracker.Dashboard(ctx)); err != nil {
		a.log.Error("failed to render dashboard", "error", err)
	}

	if last != nil {
		s.rule()
		if last.Err != nil {
			fmt.Fprintf(c.out, "Last import %s: %s failed: %v\n",
				last.Timestamp.Format("15:04:05"), last.Path, last.Err)
		} else {
			fmt.Fprintf(c.out, "Last import %s: %s (+%d inserted, %d skipped, %d rejected)\n",
				last.Timestamp.Format("15:04:05"), last.Path, last.Inserted, last.Skipped, last.Rejected)
		}
	}
}

// screen draws full-screen frames on a terminal and plain appended output
// elsewhere.
type screen struct {
	out    io.Writer
	redraw bool
	width  int
}

func (s *screen) begin() {
	if s.redraw {
		fmt.Fprint(s.out, "\033[2J\033[H")
		return
	}
	fmt.Fprintln(s.out)
}

func (s *screen) rule() {
	fmt.Fprintln(s.out, strings.Repeat("-", s.width))
}

// fdWriter is satisfied by *os.File.
type fdWriter interface {
	Fd() uintptr
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(fdWriter)
	return ok && term.IsTerminal(int(f.Fd()))
}

func terminalWidth(w io.Writer) int {
	f, ok := w.(fdWriter)
	if !ok {
		return defaultTermWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return defaultTermWidth
	}
	return width
}
