package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chazuruo/tavernaplayer/internal/index"
)

// ResultsOptions contains the options for the results command.
type ResultsOptions struct {
	PortalOptions
	ReportOptions
	RunID string
}

// NewResultsCommand creates the command that collects results of an
// existing run.
func NewResultsCommand() *cobra.Command {
	opts := &ResultsOptions{}

	cmd := &cobra.Command{
		Use:   "results [run-id]",
		Short: "Wait for an existing run and show its outputs",
		Long: `Attach to a run already created on the portal, for example one started
with 'run --detach', wait for it to finish, and show its outputs.
Without a run id the most recent run recorded for the portal is used.

Examples:
  tavernaplayer results
  tavernaplayer results 10
  tavernaplayer results 10 --output-dir ./results --format yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.RunID = args[0]
			}
			opts.bind(cmd)
			return runResults(cmd.Context(), opts)
		},
	}

	addPortalFlags(cmd, &opts.PortalOptions)
	addReportFlags(cmd, &opts.ReportOptions)

	return cmd
}

func runResults(ctx context.Context, opts *ResultsOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, client, err := opts.connect()
	if err != nil {
		return err
	}
	opts.applyConfig(cfg)

	runID := opts.RunID
	if runID == "" {
		idx, err := index.Load(opts.IndexPath)
		if err != nil {
			return err
		}
		latest := idx.Latest(client.BaseURL())
		if latest == nil {
			return fmt.Errorf("no runs recorded for %s; pass a run id", client.BaseURL())
		}
		runID = latest.RunID
		fmt.Fprintf(opts.ErrOut, "Using run %s (%s)\n", latest.RunID, latest.Name)
	}

	run, err := client.Run(runID)
	if err != nil {
		return fmt.Errorf("invalid run id: %w", err)
	}

	return waitAndReport(ctx, client, run, opts.ReportOptions)
}
