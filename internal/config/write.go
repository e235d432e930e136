package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	tperrors "github.com/chazuruo/tavernaplayer/internal/errors"
)

// Write stores cfg at path as TOML. The file is readable only by its owner
// because [portal] may hold a password. Existing files are replaced.
func Write(path string, cfg *Config) error {
	if cfg == nil {
		return &tperrors.ConfigError{Path: path, Err: fmt.Errorf("%w: nil config", tperrors.ErrInvalid)}
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return &tperrors.ConfigError{Path: path, Err: fmt.Errorf("encoding config: %w", err)}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &tperrors.ConfigError{Path: path, Err: fmt.Errorf("creating config directory: %w", err)}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return &tperrors.ConfigError{Path: path, Err: fmt.Errorf("writing config file: %w", err)}
	}
	return nil
}
