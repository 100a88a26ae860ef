// Package config provides configuration management for meter-tracker.
//
// Configuration is loaded from multiple sources with the following precedence:
// 1. Command-line flags (highest priority, applied by the caller)
// 2. Environment variables
// 3. Configuration file
// 4. Default values (lowest priority)
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("database: %s\n", cfg.Storage.DBPath)
package config

import (
	"strings"
	"time"
)

// Config represents the complete application configuration.
//
// Invariants:
// - Location names a loadable time zone
// - Storage.Backend is bolt, postgres or memory, with its path or DSN set
// - Durations are > 0
// - Influx and Kafka sections are either empty or complete.
type Config struct {
	// Location is the IANA zone that decides the period of new readings.
	// "Local" uses the system zone.
	Location string `yaml:"location"`

	// Storage settings
	Storage StorageConfig `yaml:"storage"`

	// Import settings
	Import ImportConfig `yaml:"import"`

	// Display settings
	Display DisplayConfig `yaml:"display"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`

	// Metrics settings
	Metrics MetricsConfig `yaml:"metrics"`

	// Influx settings
	Influx InfluxConfig `yaml:"influx"`

	// Kafka settings
	Kafka KafkaConfig `yaml:"kafka"`
}

// StorageConfig contains storage-related settings.
type StorageConfig struct {
	// Backend is bolt, postgres or memory.
	Backend string `yaml:"backend"`

	// Path to the bbolt database file
	DBPath string `yaml:"db_path"`

	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string `yaml:"postgres_dsn"`

	// Timeout bounds opening the store.
	Timeout time.Duration `yaml:"timeout"`

	// StatePath is the bbolt file holding import file offsets.
	StatePath string `yaml:"state_path"`
}

// ImportConfig contains import directory settings.
type ImportConfig struct {
	// Dirs are scanned by import and watched by watch.
	Dirs []string `yaml:"dirs"`

	// Debounce coalesces bursts of writes to one file.
	Debounce time.Duration `yaml:"debounce"`

	// RescanInterval forces a full scan while watching. 0 disables it.
	RescanInterval time.Duration `yaml:"rescan_interval"`
}

// DisplayConfig contains display-related settings.
type DisplayConfig struct {
	// Default output format (table, json, simple)
	Format string `yaml:"format"`

	// Decimal places shown for quantities
	Precision int `yaml:"precision"`

	// Show the selected readings in the daily table
	ShowReadings bool `yaml:"show_readings"`

	// Dashboard refresh rate while watching
	RefreshRate time.Duration `yaml:"refresh_rate"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level"`

	// Log output destination (stdout, stderr, file path)
	Output string `yaml:"output"`

	// Log format (text, json)
	Format string `yaml:"format"`
}

// MetricsConfig contains Prometheus exposition settings.
type MetricsConfig struct {
	// Listen is the address for the /metrics endpoint. Empty disables it.
	Listen string `yaml:"listen"`
}

// InfluxConfig contains the daily usage sink settings.
type InfluxConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// Enabled reports whether the Influx sink is configured.
func (c InfluxConfig) Enabled() bool {
	return c.URL != ""
}

// KafkaConfig contains the consumer group import settings.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`

	// Version is the Kafka protocol version, e.g. 2.8.0.
	Version string `yaml:"version"`

	// BatchSize is the number of records imported per batch.
	BatchSize int `yaml:"batch_size"`

	// FlushInterval imports a partial batch after this long.
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// Enabled reports whether the Kafka consumer is configured.
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// Validate checks if the configuration satisfies all invariants.
//
// Returns the first violated invariant as one of the package's sentinel
// errors.
//
// Thread-safety: This method is read-only and thread-safe.
func (c *Config) Validate() error {
	if _, err := c.TimeLocation(); err != nil {
		return err
	}

	switch c.Storage.Backend {
	case "bolt":
		if c.Storage.DBPath == "" {
			return ErrNoDBPath
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return ErrNoPostgresDSN
		}
	case "memory":
	default:
		return ErrInvalidBackend
	}

	if c.Storage.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Storage.StatePath == "" {
		return ErrNoStatePath
	}

	if c.Import.Debounce <= 0 {
		return ErrInvalidDebounce
	}
	if c.Import.RescanInterval < 0 {
		return ErrInvalidRescanInterval
	}

	validFormats := map[string]bool{
		"table":  true,
		"json":   true,
		"simple": true,
	}
	if !validFormats[c.Display.Format] {
		return ErrInvalidDisplayFormat
	}
	if c.Display.Precision < 0 || c.Display.Precision > 6 {
		return ErrInvalidPrecision
	}
	if c.Display.RefreshRate <= 0 {
		return ErrInvalidRefreshRate
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return ErrInvalidLogFormat
	}

	if c.Influx.Enabled() && (c.Influx.Org == "" || c.Influx.Bucket == "") {
		return ErrIncompleteInflux
	}

	if c.Kafka.Enabled() {
		if c.Kafka.Topic == "" || c.Kafka.GroupID == "" {
			return ErrIncompleteKafka
		}
		if c.Kafka.BatchSize <= 0 || c.Kafka.FlushInterval <= 0 {
			return ErrInvalidKafkaBatch
		}
	}

	return nil
}

// TimeLocation resolves Location.
func (c *Config) TimeLocation() (*time.Location, error) {
	switch strings.TrimSpace(c.Location) {
	case "", "Local", "local":
		return time.Local, nil
	default:
		loc, err := time.LoadLocation(strings.TrimSpace(c.Location))
		if err != nil {
			return nil, ErrInvalidLocation
		}
		return loc, nil
	}
}

// Default returns a configuration with sensible default values.
func Default() *Config {
	return &Config{
		Location: "Local",
		Storage: StorageConfig{
			Backend:   "bolt",
			DBPath:    defaultPath("meter.db"),
			Timeout:   5 * time.Second,
			StatePath: defaultPath("import-state.db"),
		},
		Import: ImportConfig{
			Dirs:     []string{defaultPath("imports")},
			Debounce: 250 * time.Millisecond,
		},
		Display: DisplayConfig{
			Format:      "table",
			Precision:   2,
			RefreshRate: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
			Format: "text",
		},
		Kafka: KafkaConfig{
			GroupID:       "meter-tracker",
			Version:       "2.8.0",
			BatchSize:     100,
			FlushInterval: time.Second,
		},
	}
}
