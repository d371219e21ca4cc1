package app

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	EnvConfigPath = "WIKIWATCH_CONFIG_PATH"
	EnvHome       = "WIKIWATCH_HOME"
)

// Defaults are the paths used when no flag overrides them.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
}

// GetDefaults resolves default paths, checking environment variables first:
//   - WIKIWATCH_CONFIG_PATH: config file (default ~/.config/wikiwatch.toml)
//   - WIKIWATCH_HOME: data directory (default ~/.local/share/wikiwatch)
func GetDefaults() (Defaults, error) {
	configPath, err := fromEnvOrHome(EnvConfigPath, ".config", "wikiwatch.toml")
	if err != nil {
		return Defaults{}, err
	}
	baseDir, err := fromEnvOrHome(EnvHome, ".local", "share", "wikiwatch")
	if err != nil {
		return Defaults{}, err
	}

	return Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
	}, nil
}

// fromEnvOrHome returns $env when set, otherwise a path under the home directory.
func fromEnvOrHome(env string, elem ...string) (string, error) {
	if v := os.Getenv(env); v != "" {
		return v, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, elem...)...), nil
}
