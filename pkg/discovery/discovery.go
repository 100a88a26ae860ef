// Package discovery finds meter import files under configured directories.
//
// Two formats are recognized: newline-delimited records (*.jsonl), which are
// read incrementally, and whole export documents (*.json), which are read in
// one pass.
//
// Example usage:
//
//	d := discovery.New([]string{"~/.config/meter-tracker/imports"}, logger.Default())
//	files, err := d.Discover()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, f := range files {
//	    fmt.Printf("%s (%s, %d bytes)\n", f.Path, f.Format, f.Size)
//	}
package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Logger defines the logging interface used by the discovery package.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Format identifies how an import file is laid out.
type Format string

const (
	// FormatLines is one JSON record per line.
	FormatLines Format = "jsonl"

	// FormatDocument is a single export document with readings and topUps arrays.
	FormatDocument Format = "json"
)

// ImportFile represents a discovered import file.
type ImportFile struct {
	// Path is the absolute path to the file.
	Path string

	// Dir is the configured import directory the file was found under.
	Dir string

	// Format is derived from the file extension.
	Format Format

	// Size is the file size in bytes.
	Size int64

	// ModTime is the last modification time.
	ModTime int64 // Unix timestamp
}

// Discoverer provides methods for discovering import files.
type Discoverer interface {
	// Discover scans all configured directories.
	//
	// Returns:
	//   - Import files sorted by path
	//   - Error if a directory exists but cannot be read
	//
	// Missing directories are skipped with a warning.
	Discover() ([]ImportFile, error)

	// DiscoverDir scans a single directory.
	//
	// Parameters:
	//   - dir: Absolute or relative path, ~ is expanded
	//
	// Returns:
	//   - Import files sorted by path
	//   - ErrDirNotFound if the directory does not exist
	DiscoverDir(dir string) ([]ImportFile, error)
}

// discoverer implements the Discoverer interface.
type discoverer struct {
	baseDirs []string
	logger   Logger
}

// New creates a new Discoverer instance.
//
// Parameters:
//   - baseDirs: Import directories to scan
//   - logger: Logger instance for diagnostic messages
//
// Returns a configured Discoverer.
func New(baseDirs []string, logger Logger) Discoverer {
	return &discoverer{
		baseDirs: baseDirs,
		logger:   logger,
	}
}

// Discover implements Discoverer.Discover.
func (d *discoverer) Discover() ([]ImportFile, error) {
	var all []ImportFile

	for _, baseDir := range d.baseDirs {
		files, err := d.DiscoverDir(baseDir)
		if err != nil {
			if errors.Is(err, ErrDirNotFound) {
				d.logger.Warn("directory not found, skipping", "path", ExpandHome(baseDir))
				continue
			}
			return nil, err
		}
		all = append(all, files...)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Path < all[j].Path })

	d.logger.Info("discovery complete", "total_files", len(all))
	return all, nil
}

// DiscoverDir implements Discoverer.DiscoverDir.
func (d *discoverer) DiscoverDir(dir string) ([]ImportFile, error) {
	expanded := ExpandHome(dir)

	abs, err := filepath.Abs(expanded)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPath, expanded)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDirNotFound, abs)
		}
		return nil, fmt.Errorf("failed to stat directory %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidPath, abs)
	}

	files := make([]ImportFile, 0, 8)

	walkErr := filepath.WalkDir(abs, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			d.logger.Warn("failed to scan path", "path", path, "error", err)
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if entry.IsDir() {
			if path != abs && strings.HasPrefix(entry.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}

		format, ok := FormatOf(path)
		if !ok {
			return nil
		}

		fi, err := entry.Info()
		if err != nil {
			d.logger.Warn("failed to get file info", "path", path, "error", err)
			return nil
		}

		files = append(files, ImportFile{
			Path:    path,
			Dir:     abs,
			Format:  format,
			Size:    fi.Size(),
			ModTime: fi.ModTime().Unix(),
		})
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("failed to scan directory %s: %w", abs, walkErr)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	d.logger.Debug("scanned import directory",
		"path", abs,
		"files_found", len(files))

	return files, nil
}

// FormatOf reports the import format implied by a file name.
// Hidden files are never import files.
func FormatOf(path string) (Format, bool) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return "", false
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".jsonl":
		return FormatLines, true
	case ".json":
		return FormatDocument, true
	default:
		return "", false
	}
}

// ExpandHome expands ~ in file paths to the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	return filepath.Join(homeDir, path[2:])
}
