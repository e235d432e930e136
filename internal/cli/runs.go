package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/chazuruo/tavernaplayer/internal/config"
	"github.com/chazuruo/tavernaplayer/internal/index"
	"github.com/chazuruo/tavernaplayer/internal/portal"
)

// RunsOptions contains the options for the runs command.
type RunsOptions struct {
	PortalOptions
	All    bool
	Limit  int
	Format string
	Out    io.Writer
}

// NewRunsCommand creates the command listing runs started from this machine.
func NewRunsCommand() *cobra.Command {
	opts := &RunsOptions{}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs started from this machine",
		Long: `List the runs recorded locally by 'tavernaplayer run', newest first,
with their last known state. Only runs on the configured portal are shown
unless --all is set.

Examples:
  tavernaplayer runs
  tavernaplayer runs --all --limit 5
  tavernaplayer runs --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Out = cmd.OutOrStdout()
			return runRuns(opts)
		},
	}

	addPortalFlags(cmd, &opts.PortalOptions)
	cmd.Flags().BoolVar(&opts.All, "all", false, "show runs on every portal")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to show (0 for all)")
	cmd.Flags().StringVar(&opts.Format, "format", "table", "output format (table, json, yaml)")

	return cmd
}

func runRuns(opts *RunsOptions) error {
	opts.resolveConfigPath()

	cfg, err := config.LoadWithDefaults(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	idx, err := index.Load(runIndexPath(cfg))
	if err != nil {
		return err
	}

	portalURL := ""
	if !opts.All {
		portalURL = cfg.Portal.URL
		if opts.URL != "" {
			portalURL = opts.URL
		}
	}
	runs := idx.List(portalURL, opts.Limit)
	if runs == nil {
		runs = []index.Entry{}
	}

	switch OutputFormat(opts.Format) {
	case FormatTable:
		if len(runs) == 0 {
			fmt.Fprintln(opts.Out, "No runs recorded.")
			return nil
		}
		tbl := newTable(opts.Out, "RUN", "WORKFLOW", "NAME", "STATE", "STARTED")
		for _, r := range runs {
			tbl.AddRow(r.RunID, workflowLabel(r), r.Name, r.State, formatTimeAgo(r.CreatedAt))
		}
		tbl.Print()
		return nil
	case FormatJSON:
		return printJSON(opts.Out, runs)
	case FormatYAML:
		return printYAML(opts.Out, runs)
	default:
		return fmt.Errorf("invalid format: %s (must be table, json, or yaml)", opts.Format)
	}
}

func workflowLabel(e index.Entry) string {
	if e.WorkflowTitle == "" {
		return fmt.Sprint(e.WorkflowID)
	}
	return fmt.Sprintf("%d %s", e.WorkflowID, e.WorkflowTitle)
}

// formatTimeAgo formats a time as "X ago" for recent times, or a date.
func formatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}

// runIndexPath returns the configured run index location.
func runIndexPath(cfg *config.Config) string {
	if cfg.Run.IndexPath != "" {
		return cfg.Run.IndexPath
	}
	return index.DefaultPath()
}

// recordRun adds a newly created run to the local index. Failures are
// reported on w and do not fail the command.
func recordRun(w io.Writer, path string, client *portal.Client, wf *portal.Workflow, run *portal.Run) {
	updateIndex(w, path, func(idx *index.Index) {
		idx.Add(index.Entry{
			RunID:         run.ID.String(),
			Portal:        client.BaseURL(),
			WorkflowID:    wf.ID,
			WorkflowTitle: wf.Title,
			Name:          run.Name,
			State:         string(portal.StatePending),
			CreatedAt:     time.Now().UTC(),
		})
		idx.Prune(index.DefaultLimit)
	})
}

// recordState stores the last observed state of a recorded run.
func recordState(w io.Writer, path string, client *portal.Client, run *portal.Run) {
	if path == "" || run.State == "" {
		return
	}
	updateIndex(w, path, func(idx *index.Index) {
		idx.SetState(client.BaseURL(), run.ID.String(), string(run.State), time.Now().UTC())
	})
}

func updateIndex(w io.Writer, path string, update func(idx *index.Index)) {
	idx, err := index.Load(path)
	if err == nil {
		update(idx)
		err = idx.Save(path)
	}
	if err != nil {
		fmt.Fprintf(w, "Warning: could not update run index: %v\n", err)
	}
}
