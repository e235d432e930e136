package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	tperrors "github.com/chazuruo/tavernaplayer/internal/errors"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Portal.URL = "https://portal.example.org/player"
	cfg.Portal.Username = "alice"
	return cfg
}

// TestDefaultConfig tests that DefaultConfig returns expected values.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Portal.URL != "" {
		t.Errorf("expected portal.url to be empty, got %q", cfg.Portal.URL)
	}
	if cfg.Portal.PasswordEnv != "TAVERNA_PASSWORD" {
		t.Errorf("expected portal.password_env to be 'TAVERNA_PASSWORD', got %q", cfg.Portal.PasswordEnv)
	}
	if cfg.Run.PollInterval.Duration != 5*time.Second {
		t.Errorf("expected run.poll_interval to be 5s, got %s", cfg.Run.PollInterval)
	}
	if cfg.Run.Timeout.Duration != 0 {
		t.Errorf("expected run.timeout to be 0, got %s", cfg.Run.Timeout)
	}
	if cfg.Output.Format != "table" {
		t.Errorf("expected output.format to be 'table', got %q", cfg.Output.Format)
	}
	if !cfg.TUI.Enabled {
		t.Error("expected tui.enabled to be true")
	}
}

// TestValidate tests each validation rule.
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "empty url",
			mutate:  func(c *Config) { c.Portal.URL = "" },
			wantErr: "portal.url cannot be empty",
		},
		{
			name:    "relative url",
			mutate:  func(c *Config) { c.Portal.URL = "/player" },
			wantErr: "portal.url must be an absolute http or https URL",
		},
		{
			name:    "unsupported scheme",
			mutate:  func(c *Config) { c.Portal.URL = "ftp://portal.example.org" },
			wantErr: "portal.url must be an absolute http or https URL",
		},
		{
			name:    "empty username",
			mutate:  func(c *Config) { c.Portal.Username = "" },
			wantErr: "portal.username cannot be empty",
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.Run.PollInterval = Duration{0} },
			wantErr: "run.poll_interval must be > 0",
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.Run.Timeout = Duration{-time.Second} },
			wantErr: "run.timeout must be >= 0",
		},
		{
			name:    "bad format",
			mutate:  func(c *Config) { c.Output.Format = "xml" },
			wantErr: "output.format must be one of",
		},
		{
			name:   "yaml format",
			mutate: func(c *Config) { c.Output.Format = "yaml" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() returned error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
			if !errors.Is(err, tperrors.ErrInvalid) {
				t.Errorf("expected error to wrap ErrInvalid, got %v", err)
			}
		})
	}
}

// TestResolvePassword tests the password fallback to the environment.
func TestResolvePassword(t *testing.T) {
	t.Setenv("TEST_TAVERNA_SECRET", "from-env")

	cfg := validConfig()
	cfg.Portal.PasswordEnv = "TEST_TAVERNA_SECRET"
	if got := cfg.ResolvePassword(); got != "from-env" {
		t.Errorf("expected password from env, got %q", got)
	}

	cfg.Portal.Password = "inline"
	if got := cfg.ResolvePassword(); got != "inline" {
		t.Errorf("expected inline password to win, got %q", got)
	}

	cfg.Portal.Password = ""
	cfg.Portal.PasswordEnv = ""
	if got := cfg.ResolvePassword(); got != "" {
		t.Errorf("expected empty password, got %q", got)
	}
}

// TestDuration_Text tests that durations read and write as strings.
func TestDuration_Text(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("2m30s")); err != nil {
		t.Fatalf("UnmarshalText() returned error: %v", err)
	}
	if d.Duration != 150*time.Second {
		t.Errorf("expected 150s, got %s", d)
	}

	text, err := d.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() returned error: %v", err)
	}
	if string(text) != "2m30s" {
		t.Errorf("expected '2m30s', got %q", text)
	}

	if err := d.UnmarshalText([]byte("soon")); err == nil {
		t.Error("expected error for invalid duration")
	}
}
