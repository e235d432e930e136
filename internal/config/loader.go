// Package config provides configuration management for tavernaplayer.
//
// This file contains config loading functionality including:
// - XDG config path detection
// - TOML file parsing
// - Environment variable overrides
// - Validation
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	tperrors "github.com/chazuruo/tavernaplayer/internal/errors"
)

// DefaultPath returns ~/.config/tavernaplayer/config.toml, or an empty
// string when the home directory is unknown.
func DefaultPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config", "tavernaplayer", "config.toml")
}

// DetectConfigPath searches for a config file using XDG standard paths.
// Returns the first config file found, or empty string if none exists.
//
// Search order:
// 1. $XDG_CONFIG_HOME/tavernaplayer/config.toml
// 2. ~/.config/tavernaplayer/config.toml
func DetectConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configPath := filepath.Join(xdg, "tavernaplayer", "config.toml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}

	configPath := DefaultPath()
	if configPath == "" {
		return ""
	}
	if _, err := os.Stat(configPath); err == nil {
		return configPath
	}

	return ""
}

// Load loads a config from the specified path.
// If the file doesn't exist, returns an error.
// After loading, applies environment variable overrides and validates.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &tperrors.ConfigError{Path: path, Err: tperrors.ErrNotFound}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &tperrors.ConfigError{Path: path, Err: fmt.Errorf("failed to read config file: %w", err)}
	}

	// Start with defaults
	cfg := DefaultConfig()

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, &tperrors.ConfigError{Path: path, Err: fmt.Errorf("failed to parse config file: %w", err)}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, &tperrors.ConfigError{Path: path, Err: fmt.Errorf("config validation failed: %w", err)}
	}

	return cfg, nil
}

// LoadWithDefaults loads the file at path when given, otherwise the first
// file found by DetectConfigPath. If no config file is found, returns a
// config with default values and environment overrides applied.
func LoadWithDefaults(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}

	configPath := DetectConfigPath()
	if configPath == "" {
		cfg := DefaultConfig()
		applyEnvOverrides(cfg)

		// Defaults leave portal.url empty on purpose; callers validate
		// once flags have been applied.
		return cfg, nil
	}

	return Load(configPath)
}

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables follow the pattern: TAVERNA_<SECTION>_<FIELD>
//
// Examples:
// - TAVERNA_PORTAL_URL overrides [portal].url
// - TAVERNA_PORTAL_USERNAME overrides [portal].username
// - TAVERNA_RUN_POLL_INTERVAL overrides [run].poll_interval
//
// Boolean fields: use "true"/"false" strings
func applyEnvOverrides(c *Config) {
	applyString := func(key string, target *string) {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			*target = val
		}
	}

	applyBool := func(key string, target *bool) {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			switch strings.ToLower(val) {
			case "true", "1", "yes", "on":
				*target = true
			case "false", "0", "no", "off":
				*target = false
			}
		}
	}

	applyDuration := func(key string, target *Duration) {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			if d, err := time.ParseDuration(val); err == nil {
				target.Duration = d
			}
		}
	}

	// Portal section
	applyString("TAVERNA_PORTAL_URL", &c.Portal.URL)
	applyString("TAVERNA_PORTAL_USERNAME", &c.Portal.Username)
	applyString("TAVERNA_PORTAL_PASSWORD_ENV", &c.Portal.PasswordEnv)

	// Run section
	applyDuration("TAVERNA_RUN_POLL_INTERVAL", &c.Run.PollInterval)
	applyDuration("TAVERNA_RUN_TIMEOUT", &c.Run.Timeout)
	applyBool("TAVERNA_RUN_EMBED", &c.Run.Embed)
	applyString("TAVERNA_RUN_INDEX_PATH", &c.Run.IndexPath)

	// Output section
	applyString("TAVERNA_OUTPUT_FORMAT", &c.Output.Format)
	applyString("TAVERNA_OUTPUT_DIR", &c.Output.Dir)

	// TUI section
	applyBool("TAVERNA_TUI_ENABLED", &c.TUI.Enabled)

	expandPath(c)
}

// expandPath expands ~ to the home directory in configured paths.
func expandPath(c *Config) {
	for _, p := range []*string{&c.Output.Dir, &c.Run.IndexPath} {
		if strings.HasPrefix(*p, "~/") || *p == "~" {
			homeDir, err := os.UserHomeDir()
			if err == nil {
				*p = filepath.Join(homeDir, strings.TrimPrefix(*p, "~"))
			}
		}
	}
}
