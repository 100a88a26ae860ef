package config

import (
	"os"
	"path/filepath"
)

// appDir is the per-user directory holding config, data and import state.
const appDir = "meter-tracker"

// defaultPath returns name inside ~/.config/meter-tracker, or inside the
// current directory when the home directory is unknown.
func defaultPath(name string) string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", name)
	}

	return filepath.Join(homeDir, ".config", appDir, name)
}

// DefaultConfigPath returns the default configuration file path.
//
// Returns: ~/.config/meter-tracker/config.yaml.
func DefaultConfigPath() string {
	return defaultPath("config.yaml")
}
