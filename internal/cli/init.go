package cli

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/chazuruo/tavernaplayer/internal/config"
)

// InitOptions contains the options for the init command.
type InitOptions struct {
	ConfigPath string

	// Scriptable/flag options for --no-tui mode
	URL          string
	Username     string
	PasswordEnv  string
	PollInterval time.Duration
	Format       string
	Embed        bool
	Force        bool

	Out io.Writer
}

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	opts := &InitOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize tavernaplayer configuration",
		Long: `Initialize tavernaplayer configuration.

The init command guides you through setting up the connection to a
Taverna Player portal:
- Portal URL and username
- The environment variable holding your password
- Poll interval and default output format

The password itself is never written to the config file.
Use --no-tui with flags for scripted setup.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Out = cmd.OutOrStdout()
			return runInit(opts)
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "", "portal URL, e.g. https://portal.example.org")
	cmd.Flags().StringVar(&opts.Username, "username", "", "portal username")
	cmd.Flags().StringVar(&opts.PasswordEnv, "password-env", "", "environment variable holding the password (default TAVERNA_PASSWORD)")
	cmd.Flags().DurationVar(&opts.PollInterval, "poll-interval", 0, "time between run state checks (default 5s)")
	cmd.Flags().StringVar(&opts.Format, "format", "", "default result format (table, json, yaml, md)")
	cmd.Flags().BoolVar(&opts.Embed, "embed", false, "print the run page iframe when a run starts")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing config file")

	return cmd
}

func runInit(opts *InitOptions) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	path := getConfigPath(opts.ConfigPath)
	if _, err := os.Stat(path); err == nil && !opts.Force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
	}

	// Check if --no-tui mode
	if IsNoTUI() {
		return runInitNonInteractive(opts, path)
	}

	// Interactive TUI mode
	return runInitInteractive(opts, path)
}

// runInitInteractive runs the init wizard with TUI.
func runInitInteractive(opts *InitOptions, path string) error {
	cfg := config.DefaultConfig()

	portalURL := opts.URL
	username := opts.Username
	passwordEnv := cfg.Portal.PasswordEnv
	pollInterval := cfg.Run.PollInterval.String()
	format := cfg.Output.Format

	// Step 1: Portal connection
	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Portal URL").
				Description("Base URL of the Taverna Player portal").
				Value(&portalURL).Placeholder("https://portal.example.org").
				Validate(validatePortalURL),
			huh.NewInput().
				Title("Username").
				Value(&username).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("username cannot be empty")
					}
					return nil
				}),
			huh.NewInput().
				Title("Password variable").
				Description("Environment variable that holds your portal password").
				Value(&passwordEnv).Placeholder(cfg.Portal.PasswordEnv),
		),
	).Run(); err != nil {
		return fmt.Errorf("form error: %w", err)
	}

	// Step 2: Run defaults
	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Poll interval").
				Description("How often to check whether a run has finished").
				Options(
					huh.NewOption("1 second", "1s"),
					huh.NewOption("5 seconds", "5s"),
					huh.NewOption("30 seconds", "30s"),
				).
				Value(&pollInterval),
			huh.NewSelect[string]().
				Title("Result format").
				Options(
					huh.NewOption("Table", "table"),
					huh.NewOption("Markdown report", "md"),
					huh.NewOption("JSON", "json"),
					huh.NewOption("YAML", "yaml"),
				).
				Value(&format),
		),
	).Run(); err != nil {
		return fmt.Errorf("form error: %w", err)
	}

	interval, err := time.ParseDuration(pollInterval)
	if err != nil {
		return fmt.Errorf("invalid poll interval: %w", err)
	}

	opts.URL = portalURL
	opts.Username = username
	opts.PasswordEnv = passwordEnv
	opts.PollInterval = interval
	opts.Format = format

	finalCfg, err := writeInitConfig(opts, path)
	if err != nil {
		return err
	}

	// Summary
	fmt.Fprintln(opts.Out, "\n✓ Configuration written successfully!")
	fmt.Fprintf(opts.Out, "  Config:   %s\n", path)
	fmt.Fprintf(opts.Out, "  Portal:   %s\n", finalCfg.Portal.URL)
	fmt.Fprintf(opts.Out, "  Username: %s\n", finalCfg.Portal.Username)
	fmt.Fprintf(opts.Out, "\nExport %s, then try 'tavernaplayer ping' to verify.\n", finalCfg.Portal.PasswordEnv)

	return nil
}

// runInitNonInteractive runs init in non-TUI mode using flags.
func runInitNonInteractive(opts *InitOptions, path string) error {
	if opts.URL == "" {
		return fmt.Errorf("--url is required in non-interactive mode")
	}
	if opts.Username == "" {
		return fmt.Errorf("--username is required in non-interactive mode")
	}

	if _, err := writeInitConfig(opts, path); err != nil {
		return err
	}

	fmt.Fprintf(opts.Out, "Configuration written to: %s\n", path)
	return nil
}

// writeInitConfig builds the config from opts, validates it and writes it.
func writeInitConfig(opts *InitOptions, path string) (*config.Config, error) {
	cfg := buildConfig(config.DefaultConfig(), opts)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if err := config.Write(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to write config: %w", err)
	}
	return cfg, nil
}

// buildConfig applies the wizard or flag values to base.
func buildConfig(base *config.Config, opts *InitOptions) *config.Config {
	cfg := *base // copy defaults

	cfg.Portal.URL = opts.URL
	cfg.Portal.Username = opts.Username
	if opts.PasswordEnv != "" {
		cfg.Portal.PasswordEnv = opts.PasswordEnv
	}
	if opts.PollInterval > 0 {
		cfg.Run.PollInterval = config.Duration{Duration: opts.PollInterval}
	}
	if opts.Format != "" {
		cfg.Output.Format = opts.Format
	}
	cfg.Run.Embed = opts.Embed

	return &cfg
}

func validatePortalURL(s string) error {
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("enter an absolute http or https URL")
	}
	return nil
}

// getConfigPath returns the config file path.
func getConfigPath(override string) string {
	if override != "" {
		return override
	}
	if ConfigPath != "" {
		return ConfigPath
	}
	return config.DefaultPath()
}
