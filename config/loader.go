package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

const (
	// ProjectConfigFile is the name of the working-directory config file
	ProjectConfigFile = "autoinspect.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/autoinspect"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
)

// Loader handles configuration loading with layered precedence.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new configuration loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/autoinspect/config.yaml)
// 3. Working-directory config (autoinspect.yaml)
// 4. Environment variables
func (l *Loader) Load() (*Config, error) {
	config := DefaultConfig()

	userConfigPath := l.userConfigPath()
	if userConfig, err := LoadFromFile(userConfigPath); err == nil {
		l.logger.Debug("Loaded user config", slog.String("path", userConfigPath))
		config.Merge(userConfig)
	} else if !os.IsNotExist(err) {
		l.logger.Warn("Failed to load user config", slog.String("path", userConfigPath), slog.String("error", err.Error()))
	}

	if _, err := os.Stat(ProjectConfigFile); err == nil {
		if projectConfig, err := LoadFromFile(ProjectConfigFile); err == nil {
			l.logger.Debug("Loaded working-directory config", slog.String("path", ProjectConfigFile))
			config.Merge(projectConfig)
		} else {
			l.logger.Warn("Failed to load working-directory config", slog.String("path", ProjectConfigFile), slog.String("error", err.Error()))
		}
	}

	config.Merge(fromEnv())

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// EnsureUserConfig creates the user config file with defaults if it doesn't exist.
func (l *Loader) EnsureUserConfig() error {
	userConfigPath := l.userConfigPath()

	if _, err := os.Stat(userConfigPath); err == nil {
		return nil
	}

	config := DefaultConfig()
	if err := config.SaveToFile(userConfigPath); err != nil {
		return err
	}

	l.logger.Info("Created default user config", slog.String("path", userConfigPath))
	return nil
}

// userConfigPath returns the path to the user config file.
func (l *Loader) userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// fromEnv builds an overlay config from environment variables.
func fromEnv() *Config {
	overlay := &Config{
		Storage: StorageConfig{
			Driver:      os.Getenv("AUTOINSPECT_STORAGE_DRIVER"),
			SQLitePath:  os.Getenv("AUTOINSPECT_SQLITE_PATH"),
			PostgresDSN: os.Getenv("AUTOINSPECT_POSTGRES_DSN"),
		},
		Archive: ArchiveConfig{
			Driver: os.Getenv("AUTOINSPECT_ARCHIVE_DRIVER"),
			Root:   os.Getenv("AUTOINSPECT_ARCHIVE_FS_ROOT"),
		},
		Legacy: LegacyConfig{
			StorePath: os.Getenv("AUTOINSPECT_LEGACY_STORE_PATH"),
		},
	}
	if raw := os.Getenv("AUTOINSPECT_MAX_PHOTO_BYTES"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			overlay.Photos.MaxPayloadBytes = v
		}
	}
	return overlay
}
