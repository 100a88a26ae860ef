package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file and default values.
const (
	EnvConfig    = "METER_TRACKER_CONFIG"
	EnvDB        = "METER_TRACKER_DB"
	EnvBackend   = "METER_TRACKER_BACKEND"
	EnvPGDSN     = "METER_TRACKER_PG_DSN"
	EnvTZ        = "METER_TRACKER_TZ"
	EnvLogLevel  = "METER_TRACKER_LOG_LEVEL"
	EnvImportDir = "METER_TRACKER_IMPORT_DIR"
)

// Loader provides methods for loading configuration from various sources.
type Loader interface {
	// Load loads configuration with the following precedence:
	// 1. Environment variables
	// 2. Configuration file
	// 3. Default values
	//
	// Returns the merged configuration or an error if validation fails.
	Load() (*Config, error)

	// LoadFromFile reads a configuration file on top of the defaults
	// without applying environment overrides or validation.
	LoadFromFile(path string) (*Config, error)

	// Path returns the file Load reads, or "" when none exists.
	Path() string
}

// loader implements the Loader interface.
type loader struct {
	configPath string
}

// NewLoader creates a new configuration loader.
//
// If configPath is empty, METER_TRACKER_CONFIG is used, and then the first
// existing file of:
// 1. ./config.yaml (current directory)
// 2. ~/.config/meter-tracker/config.yaml.
func NewLoader(configPath string) Loader {
	if configPath == "" {
		configPath = os.Getenv(EnvConfig)
	}

	return &loader{
		configPath: configPath,
	}
}

// Load implements Loader.Load.
func (l *loader) Load() (*Config, error) {
	cfg := Default()

	if path := l.Path(); path != "" {
		fileCfg, err := l.LoadFromFile(path)
		if err != nil {
			// An explicit path must load; a discovered one is best effort.
			if l.configPath != "" {
				return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
			}
		} else {
			cfg = fileCfg
		}
	}

	cfg = applyEnvVars(cfg)
	normalize(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile implements Loader.LoadFromFile.
//
// Keys absent from the file keep their default values.
func (l *loader) LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return cfg, nil
}

// Path implements Loader.Path.
func (l *loader) Path() string {
	if l.configPath != "" {
		return l.configPath
	}
	return findConfigFile()
}

// findConfigFile searches for a config file in standard locations.
//
// Returns empty string if no config file is found.
func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		DefaultConfigPath(),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// applyEnvVars applies environment variable overrides to the configuration.
//
// Supported environment variables:
//   - METER_TRACKER_DB: Path to the bolt database file
//   - METER_TRACKER_BACKEND: Storage backend
//   - METER_TRACKER_PG_DSN: Postgres connection string
//   - METER_TRACKER_TZ: Time zone for new readings
//   - METER_TRACKER_LOG_LEVEL: Log level
//   - METER_TRACKER_IMPORT_DIR: Comma-separated import directories
func applyEnvVars(cfg *Config) *Config {
	result := *cfg

	if dbPath := os.Getenv(EnvDB); dbPath != "" {
		result.Storage.DBPath = dbPath
	}

	if backend := os.Getenv(EnvBackend); backend != "" {
		result.Storage.Backend = backend
	}

	if dsn := os.Getenv(EnvPGDSN); dsn != "" {
		result.Storage.PostgresDSN = dsn
	}

	if tz := os.Getenv(EnvTZ); tz != "" {
		result.Location = tz
	}

	if logLevel := os.Getenv(EnvLogLevel); logLevel != "" {
		result.Logging.Level = logLevel
	}

	if envDirs := os.Getenv(EnvImportDir); envDirs != "" {
		result.Import.Dirs = splitList(envDirs)
	}

	return &result
}

// normalize lowercases enumerated values so validation is case-insensitive.
func normalize(cfg *Config) {
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	cfg.Display.Format = strings.ToLower(strings.TrimSpace(cfg.Display.Format))
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	cfg.Logging.Format = strings.ToLower(strings.TrimSpace(cfg.Logging.Format))
}

// splitList splits a comma-separated list, dropping empty entries.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load is a convenience function that creates a loader and loads configuration.
//
// Equivalent to:
//
//	loader := NewLoader("")
//	return loader.Load()
func Load() (*Config, error) {
	return NewLoader("").Load()
}

// LoadFromFile is a convenience function that loads configuration from a file.
//
// Equivalent to:
//
//	loader := NewLoader(path)
//	return loader.Load()
func LoadFromFile(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// Save writes the configuration to a YAML file.
//
// Creates parent directories if they don't exist.
// File is created with 0600 permissions (read/write for owner only).
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
