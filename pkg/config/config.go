// Package config loads the memory engine's configuration from a hooks.json
// file on the search path (., ~/.claude-cortex/, /etc/claude-cortex/),
// falling back to documented defaults when no file is present.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete engine configuration, per spec.md §6.
type Config struct {
	Project  string         `mapstructure:"project"`
	Database DatabaseConfig `mapstructure:"database"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Decay    DecayConfig    `mapstructure:"decay"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DatabaseConfig holds storage-layer configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LimitsConfig holds capacity and safety limits.
type LimitsConfig struct {
	MaxShortTerm          int           `mapstructure:"max_short_term"`
	MaxLongTerm           int           `mapstructure:"max_long_term"`
	ConsolidationInterval time.Duration `mapstructure:"consolidation_interval"`
	BulkDeleteSafety      int           `mapstructure:"bulk_delete_safety"`
}

// DecayConfig holds decay/salience tuning knobs.
type DecayConfig struct {
	BaseDecayRate      float64 `mapstructure:"base_decay_rate"`
	SalienceThreshold  float64 `mapstructure:"salience_threshold"`
	MergeSimThreshold  float64 `mapstructure:"merge_similarity_threshold"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns the documented defaults (spec.md §6).
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	configDir := filepath.Join(homeDir, ".claude-cortex")

	return &Config{
		Project: "*",
		Database: DatabaseConfig{
			Path: filepath.Join(configDir, "memories.db"),
		},
		Limits: LimitsConfig{
			MaxShortTerm:          250,
			MaxLongTerm:           5000,
			ConsolidationInterval: 4 * time.Hour,
			BulkDeleteSafety:      50,
		},
		Decay: DecayConfig{
			BaseDecayRate:     0.995,
			SalienceThreshold: 0.6,
			MergeSimThreshold: 0.25,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from hooks.json (JSON only) with fallback
// to defaults, searching ./, ~/.claude-cortex/, and /etc/claude-cortex/.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("hooks")
	v.SetConfigType("json")

	homeDir, _ := os.UserHomeDir()
	configDir := filepath.Join(homeDir, ".claude-cortex")

	v.AddConfigPath(".")
	v.AddConfigPath(configDir)
	v.AddConfigPath("/etc/claude-cortex")

	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("project", "*")
	v.SetDefault("database.path", filepath.Join(configDir, "memories.db"))

	v.SetDefault("limits.max_short_term", 250)
	v.SetDefault("limits.max_long_term", 5000)
	v.SetDefault("limits.consolidation_interval", "4h")
	v.SetDefault("limits.bulk_delete_safety", 50)

	v.SetDefault("decay.base_decay_rate", 0.995)
	v.SetDefault("decay.salience_threshold", 0.6)
	v.SetDefault("decay.merge_similarity_threshold", 0.25)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Validate checks configuration for obviously invalid values.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Limits.MaxShortTerm <= 0 {
		return fmt.Errorf("limits.max_short_term must be > 0")
	}
	if c.Limits.MaxLongTerm <= 0 {
		return fmt.Errorf("limits.max_long_term must be > 0")
	}
	if c.Limits.BulkDeleteSafety <= 0 {
		return fmt.Errorf("limits.bulk_delete_safety must be > 0")
	}
	if c.Decay.BaseDecayRate <= 0 || c.Decay.BaseDecayRate >= 1 {
		return fmt.Errorf("decay.base_decay_rate must be between 0 and 1")
	}
	if c.Decay.SalienceThreshold < 0 || c.Decay.SalienceThreshold > 1 {
		return fmt.Errorf("decay.salience_threshold must be between 0 and 1")
	}
	if c.Decay.MergeSimThreshold < 0 || c.Decay.MergeSimThreshold > 1 {
		return fmt.Errorf("decay.merge_similarity_threshold must be between 0 and 1")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"console": true, "json": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: console, json")
	}
	return nil
}

// EnsureConfigDir creates the directory holding the database file.
func (c *Config) EnsureConfigDir() error {
	dir := filepath.Dir(c.Database.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}

// ConfigDir returns the default configuration directory.
func ConfigDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".claude-cortex")
}

// LegacyConfigDir returns the legacy configuration directory honored if the
// new one does not exist yet (spec.md §4.1 "Legacy path fallback").
func LegacyConfigDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".claude-memory")
}

// ResolveDatabasePath returns the database path to use, transparently
// falling back to the legacy directory's database if the configured
// directory doesn't exist yet but the legacy one does.
func ResolveDatabasePath(configured string) string {
	if configured != "" {
		if _, err := os.Stat(filepath.Dir(configured)); err == nil {
			return configured
		}
	}
	if _, err := os.Stat(LegacyConfigDir()); err == nil {
		return filepath.Join(LegacyConfigDir(), "memories.db")
	}
	return configured
}
