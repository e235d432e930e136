package main

import (
	"fmt"
	"os"

	"github.com/chazuruo/tavernaplayer/internal/cli"
	"github.com/spf13/cobra"
)

// Version is set at build time using ldflags
var Version = "dev"

// Commit is set at build time using ldflags
var Commit = "unknown"

// Date is set at build time using ldflags
var Date = "unknown"

// BuiltBy is set at build time using ldflags
var BuiltBy = "unknown"

func main() {
	rootCmd := &cobra.Command{
		Use:   "tavernaplayer",
		Short: "Run workflows on a Taverna Player portal",
		Long: `tavernaplayer runs workflows on a remote Taverna Player portal: it lists
the catalog, creates runs with your input values, waits for them to finish
and downloads their outputs.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	// Add global flags
	cli.AddGlobalFlags(rootCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Add subcommands
	rootCmd.AddCommand(cli.NewInitCommand())
	rootCmd.AddCommand(cli.NewPingCommand())
	rootCmd.AddCommand(cli.NewWorkflowsCommand())
	rootCmd.AddCommand(cli.NewTemplateCommand())
	rootCmd.AddCommand(cli.NewRunCommand())
	rootCmd.AddCommand(cli.NewResultsCommand())
	rootCmd.AddCommand(cli.NewRunsCommand())
	rootCmd.AddCommand(cli.NewEmbedCommand())
	rootCmd.AddCommand(cli.NewVersionCommand(Version, Commit, Date, BuiltBy))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
