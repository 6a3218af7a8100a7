package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for drive.
type Config struct {
	BaseDir       string              `toml:"base_dir"`
	StorageRoot   string              `toml:"storage_root"`
	LogDir        string              `toml:"log_dir"`
	Database      DatabaseConfig      `toml:"database"`
	Filesystem    FilesystemConfig    `toml:"filesystem"`
	Notifications NotificationsConfig `toml:"notifications"`
	Metrics       MetricsConfig       `toml:"metrics"`
}

// FilesystemConfig holds filesystem-related settings.
type FilesystemConfig struct {
	// Exclude lists glob patterns of paths left out of folder archives.
	// A pattern without '/' matches any single path segment.
	Exclude []string `toml:"exclude"`
}

// DatabaseConfig represents configuration for the metadata database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// NotificationsConfig controls event delivery.
type NotificationsConfig struct {
	// Buffer is the number of events queued before new ones are dropped.
	Buffer int `toml:"buffer"`
}

// MetricsConfig controls operation metrics export.
type MetricsConfig struct {
	// TextfilePath, when set, receives the metrics in Prometheus text format
	// each time the app closes.
	TextfilePath string `toml:"textfile_path,omitempty"`
}

// DefaultExclude keeps trash roots and in-flight uploads out of archives.
var DefaultExclude = []string{".trash", ".tmp-*"}

// DefaultNotificationBuffer is used when notifications.buffer is not positive.
const DefaultNotificationBuffer = 64

// NewConfig creates a new Config with everything placed under baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:     baseDir,
		StorageRoot: filepath.Join(baseDir, "storage"),
		LogDir:      filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Filesystem: FilesystemConfig{
			Exclude: append([]string(nil), DefaultExclude...),
		},
		Notifications: NotificationsConfig{
			Buffer: DefaultNotificationBuffer,
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Validate reports settings the app cannot start with.
func (c *Config) Validate() error {
	if c.StorageRoot == "" {
		return fmt.Errorf("storage_root is required")
	}
	if !filepath.IsAbs(c.StorageRoot) {
		return fmt.Errorf("storage_root must be absolute: %s", c.StorageRoot)
	}
	if c.LogDir == "" {
		return fmt.Errorf("log_dir is required")
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
