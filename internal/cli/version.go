package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version  string `json:"version" yaml:"version"`
	Commit   string `json:"commit" yaml:"commit"`
	Date     string `json:"date" yaml:"date"`
	BuiltBy  string `json:"built_by,omitempty" yaml:"built_by,omitempty"`
	Go       string `json:"go_version" yaml:"go_version"`
	Platform string `json:"platform" yaml:"platform"`
}

// VersionOptions contains the options for the version command.
type VersionOptions struct {
	Short  bool
	Format string
	Out    io.Writer
}

// NewVersionCommand creates the version command for a binary built with the
// given ldflags values.
func NewVersionCommand(version, commit, date, builtBy string) *cobra.Command {
	opts := &VersionOptions{}
	info := newBuildInfo(version, commit, date, builtBy)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show build information",
		Long: `Show the tavernaplayer version, commit, build date and platform.

Examples:
  tavernaplayer version
  tavernaplayer version --short
  tavernaplayer version --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Out = cmd.OutOrStdout()
			return runVersion(opts, info)
		},
	}

	cmd.Flags().BoolVar(&opts.Short, "short", false, "print only the version number")
	cmd.Flags().StringVar(&opts.Format, "format", "table", "output format (table, json, yaml)")

	return cmd
}

func newBuildInfo(version, commit, date, builtBy string) BuildInfo {
	if builtBy == "unknown" {
		builtBy = ""
	}
	return BuildInfo{
		Version:  version,
		Commit:   commit,
		Date:     date,
		BuiltBy:  builtBy,
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func runVersion(opts *VersionOptions, info BuildInfo) error {
	if opts.Short {
		fmt.Fprintln(opts.Out, info.Version)
		return nil
	}

	switch OutputFormat(opts.Format) {
	case FormatJSON:
		return printJSON(opts.Out, info)
	case FormatYAML:
		return printYAML(opts.Out, info)
	case FormatTable, "":
	default:
		return fmt.Errorf("invalid format: %s (must be table, json, or yaml)", opts.Format)
	}

	fmt.Fprintf(opts.Out, "tavernaplayer %s (%s)\n", info.Version, info.Platform)
	tbl := newTable(opts.Out, "FIELD", "VALUE")
	tbl.AddRow("commit", info.Commit)
	tbl.AddRow("built", info.Date)
	tbl.AddRow("built by", orDash(info.BuiltBy))
	tbl.AddRow("go", info.Go)
	tbl.Print()
	return nil
}
