// Package config manages service configuration loaded from an optional TOML
// file (xmemory.toml) with environment overrides.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds all service settings.
type Config struct {
	Server ServerConfig `toml:"server"`
	Data   DataConfig   `toml:"data"`
	Log    LogConfig    `toml:"log"`
	Sync   SyncConfig   `toml:"sync"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Listen string `toml:"listen"`
}

// DataConfig controls where the database lives.
type DataConfig struct {
	Dir string `toml:"dir"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// SyncConfig controls sync-time behavior.
type SyncConfig struct {
	// RetentionOnSync runs the version retention sweep after every
	// successful sync and restore.
	RetentionOnSync bool `toml:"retention_on_sync"`
}

// Default returns sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{Listen: ":8090"},
		Data:   DataConfig{Dir: "./data"},
		Log:    LogConfig{Level: "info"},
		Sync:   SyncConfig{RetentionOnSync: true},
	}
}

// Load reads configuration from path (missing file is fine), then applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv overlays XMEMORY_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("XMEMORY_LISTEN"); v != "" {
		cfg.Server.Listen = v
	}
	if v := os.Getenv("XMEMORY_DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv("XMEMORY_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}
