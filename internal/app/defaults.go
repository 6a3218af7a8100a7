package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - DRIVE_CONFIG_PATH: config file location (default: ~/.config/drive.toml)
//   - DRIVE_HOME: base directory for drive data (default: ~/.local/share/drive)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path":  configPath,
		"base_dir":     baseDir,
		"storage_root": filepath.Join(baseDir, "storage"),
		"log_dir":      filepath.Join(baseDir, "log"),
	}, nil
}

// getConfigPath returns the config file path, checking DRIVE_CONFIG_PATH env var first,
// then falling back to the default ~/.config/drive.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("DRIVE_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "drive.toml"), nil
}

// getBaseDir returns the base directory for drive data, checking DRIVE_HOME env var first,
// then falling back to the XDG default ~/.local/share/drive.
func getBaseDir() (string, error) {
	if path := os.Getenv("DRIVE_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "drive"), nil
}
