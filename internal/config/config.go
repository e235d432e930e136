// Package config provides configuration management for tavernaplayer.
//
// The configuration is stored in TOML format and supports validation
// and default values for all fields.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	tperrors "github.com/chazuruo/tavernaplayer/internal/errors"
)

// Config is the top-level configuration struct for tavernaplayer.
type Config struct {
	Portal PortalConfig `toml:"portal"`
	Run    RunConfig    `toml:"run"`
	Output OutputConfig `toml:"output"`
	TUI    TUIConfig    `toml:"tui"`
}

// PortalConfig contains the portal location and credentials.
type PortalConfig struct {
	// URL is the base URL of the Taverna Player portal.
	URL string `toml:"url"`

	// Username is the basic-auth user name.
	Username string `toml:"username"`

	// Password is the basic-auth password. Prefer PasswordEnv.
	Password string `toml:"password"`

	// PasswordEnv names an environment variable holding the password.
	// It is consulted only when Password is empty.
	PasswordEnv string `toml:"password_env"`
}

// RunConfig contains run lifecycle settings.
type RunConfig struct {
	// PollInterval is the wait between run state polls (e.g., "5s").
	PollInterval Duration `toml:"poll_interval"`

	// Timeout bounds how long the CLI waits for a run. Zero waits forever.
	// The remote run is abandoned, not cancelled, when it expires.
	Timeout Duration `toml:"timeout"`

	// Embed controls whether the embedded viewer fragment is printed when a
	// run starts.
	Embed bool `toml:"embed"`

	// IndexPath is the local record of started runs. Empty uses the
	// default state location.
	IndexPath string `toml:"index_path"`
}

// OutputConfig contains result output settings.
type OutputConfig struct {
	// Format is the default output format.
	// Valid values: "table", "json", "yaml", "md".
	Format string `toml:"format"`

	// Dir is a directory to write decoded outputs into (optional).
	Dir string `toml:"dir"`
}

// TUIConfig contains terminal UI settings.
type TUIConfig struct {
	// Enabled controls whether to use the TUI (when false, falls back to CLI).
	Enabled bool `toml:"enabled"`
}

// Duration is a time.Duration that reads and writes as a TOML string.
type Duration struct {
	time.Duration
}

// UnmarshalText parses strings such as "5s" or "2m30s".
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText writes the duration in time.Duration string form.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultConfig returns a Config with all default values set.
func DefaultConfig() *Config {
	return &Config{
		Portal: PortalConfig{
			URL:         "",
			Username:    "",
			Password:    "",
			PasswordEnv: "TAVERNA_PASSWORD",
		},
		Run: RunConfig{
			PollInterval: Duration{5 * time.Second},
			Timeout:      Duration{0},
			Embed:        false,
		},
		Output: OutputConfig{
			Format: "table",
			Dir:    "",
		},
		TUI: TUIConfig{
			Enabled: true,
		},
	}
}

// ResolvePassword returns the configured password, falling back to the
// environment variable named by PasswordEnv.
func (c *Config) ResolvePassword() string {
	if c.Portal.Password != "" {
		return c.Portal.Password
	}
	if c.Portal.PasswordEnv != "" {
		return os.Getenv(c.Portal.PasswordEnv)
	}
	return ""
}

// Validate checks the configuration for valid values.
// Returns a nil error if the config is valid, or an error describing the problem.
func (c *Config) Validate() error {
	// Validate Portal section
	if c.Portal.URL == "" {
		return invalid("portal.url cannot be empty")
	}
	u, err := url.Parse(c.Portal.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("portal.url must be an absolute http or https URL; got %q", c.Portal.URL)
	}
	if c.Portal.Username == "" {
		return invalid("portal.username cannot be empty")
	}

	// Validate Run section
	if c.Run.PollInterval.Duration <= 0 {
		return invalid("run.poll_interval must be > 0; got %s", c.Run.PollInterval)
	}
	if c.Run.Timeout.Duration < 0 {
		return invalid("run.timeout must be >= 0; got %s", c.Run.Timeout)
	}

	// Validate Output section
	validFormats := map[string]bool{
		"table": true,
		"json":  true,
		"yaml":  true,
		"md":    true,
	}
	if !validFormats[c.Output.Format] {
		return invalid("output.format must be one of: table, json, yaml, md; got %q", c.Output.Format)
	}

	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", tperrors.ErrInvalid, fmt.Sprintf(format, args...))
}
