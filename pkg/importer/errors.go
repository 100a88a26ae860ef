package importer

import "errors"

var (
	// ErrImporterClosed is returned when operations are attempted on a closed importer.
	ErrImporterClosed = errors.New("importer is closed")

	// ErrImporterRunning is returned when trying to start an already running importer.
	ErrImporterRunning = errors.New("importer is already running")

	// ErrImporterNotRunning is returned when trying to stop a non-running importer.
	ErrImporterNotRunning = errors.New("importer is not running")

	// ErrNoDirs is returned when no import directory is configured.
	ErrNoDirs = errors.New("no import directories configured")

	// ErrUnsupportedFile is returned for paths that are not import files.
	ErrUnsupportedFile = errors.New("unsupported import file")
)
