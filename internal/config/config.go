// Package config loads CLI configuration from a YAML file and the
// environment.
//
// Precedence, highest first: environment variables with the DEVTAB_
// prefix, then config.yaml in the data directory, then defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config carries everything the commands need to assemble the app.
type Config struct {
	// Remote store access. Empty RemoteURL or UserID means offline mode.
	RemoteURL   string `mapstructure:"remote_url"`
	RemoteToken string `mapstructure:"remote_token"`
	UserID      string `mapstructure:"user_id"`

	// DataDir holds the SQLite store, the config file, and logs.
	DataDir string `mapstructure:"data_dir"`

	// SaveMode is "debounced" or "manual".
	SaveMode         string        `mapstructure:"save_mode"`
	DebounceInterval time.Duration `mapstructure:"debounce_interval"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`

	// Free tier ceilings. Zero values fall back to the defaults.
	MaxTasks        int `mapstructure:"max_tasks"`
	MaxWorkspaces   int `mapstructure:"max_workspaces"`
	MaxReadsPerDay  int `mapstructure:"max_reads_per_day"`
	MaxWritesPerDay int `mapstructure:"max_writes_per_day"`

	DashboardPort int    `mapstructure:"dashboard_port"`
	LogFile       string `mapstructure:"log_file"`
}

// DefaultDataDir returns ~/.devtab, falling back to .devtab in the
// working directory when the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".devtab"
	}
	return filepath.Join(home, ".devtab")
}

// Load reads config.yaml from dataDir (if present) and the environment.
// Pass "" to use the default data directory.
func Load(dataDir string) (*Config, error) {
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dataDir)

	v.SetEnvPrefix("DEVTAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default registered or viper will not surface
	// env-only values through Unmarshal.
	v.SetDefault("remote_url", "")
	v.SetDefault("remote_token", "")
	v.SetDefault("user_id", "")
	v.SetDefault("max_tasks", 0)
	v.SetDefault("max_workspaces", 0)
	v.SetDefault("max_reads_per_day", 0)
	v.SetDefault("max_writes_per_day", 0)
	v.SetDefault("data_dir", dataDir)
	v.SetDefault("save_mode", "debounced")
	v.SetDefault("debounce_interval", 1200*time.Millisecond)
	v.SetDefault("cache_ttl", 5*time.Minute)
	v.SetDefault("dashboard_port", 8080)
	v.SetDefault("log_file", filepath.Join(dataDir, "devtab.log"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &cfg, nil
}

// StorePath returns the SQLite database location inside the data dir.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "devtab.db")
}

// Offline reports whether remote sync is disabled.
func (c *Config) Offline() bool {
	return c.RemoteURL == "" || c.UserID == ""
}
