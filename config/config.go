// Package config provides configuration loading for autoinspect.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the complete autoinspect configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Archive ArchiveConfig `yaml:"archive"`
	Photos  PhotosConfig  `yaml:"photos"`
	Legacy  LegacyConfig  `yaml:"legacy"`
}

// StorageConfig selects the inspection datastore backend.
type StorageConfig struct {
	// Driver is memory, sqlite, or postgres (default: sqlite)
	Driver string `yaml:"driver"`
	// SQLitePath is the embedded database file (default: ./autoinspect.db)
	SQLitePath string `yaml:"sqlite_path"`
	// PostgresDSN is used when driver is postgres
	PostgresDSN string `yaml:"postgres_dsn"`
}

// ArchiveConfig selects where generated report artifacts are written.
type ArchiveConfig struct {
	// Driver is fs, s3, or memory (default: fs)
	Driver string `yaml:"driver"`
	// Root is the report directory when driver is fs (default: ./reports)
	Root string `yaml:"root"`
}

// PhotosConfig bounds photo payloads.
type PhotosConfig struct {
	// MaxPayloadBytes is the per-photo decoded size ceiling (default: 5 MiB)
	MaxPayloadBytes int64 `yaml:"max_payload_bytes"`
}

// LegacyConfig locates the pre-datastore flat-list file.
type LegacyConfig struct {
	// StorePath is the legacy inspection list file checked on startup
	StorePath string `yaml:"store_path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver:     "sqlite",
			SQLitePath: "autoinspect.db",
		},
		Archive: ArchiveConfig{
			Driver: "fs",
			Root:   "reports",
		},
		Photos: PhotosConfig{
			MaxPayloadBytes: 5 * 1024 * 1024,
		},
		Legacy: LegacyConfig{
			StorePath: "autoinspect_inspections.json",
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("storage.driver must be memory, sqlite, or postgres")
	}
	switch c.Archive.Driver {
	case "fs", "s3", "memory":
	default:
		return fmt.Errorf("archive.driver must be fs, s3, or memory")
	}
	if c.Photos.MaxPayloadBytes <= 0 {
		return fmt.Errorf("photos.max_payload_bytes must be positive")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for
// non-zero values).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Storage.Driver != "" {
		c.Storage.Driver = other.Storage.Driver
	}
	if other.Storage.SQLitePath != "" {
		c.Storage.SQLitePath = other.Storage.SQLitePath
	}
	if other.Storage.PostgresDSN != "" {
		c.Storage.PostgresDSN = other.Storage.PostgresDSN
	}

	if other.Archive.Driver != "" {
		c.Archive.Driver = other.Archive.Driver
	}
	if other.Archive.Root != "" {
		c.Archive.Root = other.Archive.Root
	}

	if other.Photos.MaxPayloadBytes != 0 {
		c.Photos.MaxPayloadBytes = other.Photos.MaxPayloadBytes
	}

	if other.Legacy.StorePath != "" {
		c.Legacy.StorePath = other.Legacy.StorePath
	}
}
