// Package cli provides global state and utilities for CLI commands.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/chazuruo/tavernaplayer/internal/config"
	tperrors "github.com/chazuruo/tavernaplayer/internal/errors"
	"github.com/chazuruo/tavernaplayer/internal/portal"
)

var (
	// NoTUI indicates that TUI/interactive mode should be disabled.
	// This is set by the global --no-tui flag.
	NoTUI bool

	// Verbose enables debug logging of portal requests on stderr.
	Verbose bool

	// ConfigPath overrides config file detection. Set by --config.
	ConfigPath string

	// noTUIMutex protects NoTUI for concurrent access.
	noTUIMutex sync.RWMutex
)

// AddGlobalFlags adds global flags to a command.
func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVar(&NoTUI, "no-tui", false,
		"disable TUI/interactive mode; use plain text output and never prompt")
	cmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "v", false,
		"log portal requests to stderr")
	cmd.PersistentFlags().StringVar(&ConfigPath, "config", "",
		"config file path (default: ~/.config/tavernaplayer/config.toml)")
}

// IsNoTUI returns true if TUI mode is disabled.
func IsNoTUI() bool {
	noTUIMutex.RLock()
	defer noTUIMutex.RUnlock()
	return NoTUI
}

// SetNoTUI sets the TUI mode.
func SetNoTUI(v bool) {
	noTUIMutex.Lock()
	defer noTUIMutex.Unlock()
	NoTUI = v
}

// newLogger returns the CLI logger: warnings by default, debug with --verbose.
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// PortalOptions are the connection settings shared by portal commands.
// Empty fields fall back to the config file.
type PortalOptions struct {
	ConfigPath string
	URL        string
	Username   string
}

func addPortalFlags(cmd *cobra.Command, opts *PortalOptions) {
	cmd.Flags().StringVar(&opts.URL, "url", "", "portal URL (overrides config)")
	cmd.Flags().StringVar(&opts.Username, "username", "", "portal username (overrides config)")
}

// resolveConfigPath applies the global --config flag.
func (o *PortalOptions) resolveConfigPath() {
	if o.ConfigPath == "" {
		o.ConfigPath = ConfigPath
	}
}

const setupHint = "Run 'tavernaplayer init' or pass --url and --username"

// connect loads the configuration and creates a portal client.
func (o *PortalOptions) connect(extra ...portal.Option) (*config.Config, *portal.Client, error) {
	o.resolveConfigPath()

	cfg, err := config.LoadWithDefaults(o.ConfigPath)
	if tperrors.IsNotFound(err) {
		return nil, nil, fmt.Errorf("%w\n%s", err, setupHint)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if o.URL != "" {
		cfg.Portal.URL = o.URL
	}
	if o.Username != "" {
		cfg.Portal.Username = o.Username
	}
	if !cfg.TUI.Enabled {
		SetNoTUI(true)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w\n%s", err, setupHint)
	}

	password := cfg.ResolvePassword()
	if password == "" && !IsNoTUI() {
		if err := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title(fmt.Sprintf("Password for %s", cfg.Portal.Username)).
					EchoMode(huh.EchoModePassword).
					Value(&password),
			),
		).Run(); err != nil {
			return nil, nil, fmt.Errorf("form error: %w", err)
		}
	}
	if password == "" {
		return nil, nil, fmt.Errorf("no password: set %s or portal.password", cfg.Portal.PasswordEnv)
	}

	opts := []portal.Option{
		portal.WithLogger(newLogger(os.Stderr)),
		portal.WithPollInterval(cfg.Run.PollInterval.Duration),
	}
	client, err := portal.New(cfg.Portal.URL, cfg.Portal.Username, password, append(opts, extra...)...)
	if err != nil {
		return nil, nil, err
	}
	return cfg, client, nil
}
