package config

import "errors"

// Common errors returned by the config package.
var (
	// ErrInvalidLocation is returned when the time zone cannot be loaded.
	ErrInvalidLocation = errors.New("invalid location: must be Local or an IANA time zone name")

	// ErrInvalidBackend is returned when the storage backend is not recognized.
	ErrInvalidBackend = errors.New("invalid storage backend: must be bolt, postgres, or memory")

	// ErrNoDBPath is returned when the bolt backend has no database path.
	ErrNoDBPath = errors.New("no database path specified")

	// ErrNoPostgresDSN is returned when the postgres backend has no DSN.
	ErrNoPostgresDSN = errors.New("no postgres DSN specified")

	// ErrInvalidTimeout is returned when the storage timeout is <= 0.
	ErrInvalidTimeout = errors.New("invalid storage timeout: must be > 0")

	// ErrNoStatePath is returned when no import state path is configured.
	ErrNoStatePath = errors.New("no import state path specified")

	// ErrInvalidDebounce is returned when the import debounce is <= 0.
	ErrInvalidDebounce = errors.New("invalid import debounce: must be > 0")

	// ErrInvalidRescanInterval is returned when the rescan interval is negative.
	ErrInvalidRescanInterval = errors.New("invalid rescan interval: must be >= 0")

	// ErrInvalidDisplayFormat is returned when the display format is not recognized.
	ErrInvalidDisplayFormat = errors.New("invalid display format: must be table, json, or simple")

	// ErrInvalidPrecision is returned when precision is outside 0..6.
	ErrInvalidPrecision = errors.New("invalid display precision: must be between 0 and 6")

	// ErrInvalidRefreshRate is returned when refresh rate is <= 0.
	ErrInvalidRefreshRate = errors.New("invalid refresh rate: must be > 0")

	// ErrInvalidLogLevel is returned when log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level: must be debug, info, warn, or error")

	// ErrInvalidLogFormat is returned when log format is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrIncompleteInflux is returned when an Influx URL is set without org or bucket.
	ErrIncompleteInflux = errors.New("influx url requires org and bucket")

	// ErrIncompleteKafka is returned when brokers are set without topic or group.
	ErrIncompleteKafka = errors.New("kafka brokers require topic and group_id")

	// ErrInvalidKafkaBatch is returned when batch size or flush interval is <= 0.
	ErrInvalidKafkaBatch = errors.New("invalid kafka batching: batch_size and flush_interval must be > 0")

	// ErrConfigNotFound is returned when config file is not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidYAML is returned when config file has invalid YAML syntax.
	ErrInvalidYAML = errors.New("invalid YAML syntax in config file")
)
