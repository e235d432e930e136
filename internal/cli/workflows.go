package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazuruo/tavernaplayer/internal/portal"
)

// WorkflowsOptions contains the options for the workflows command.
type WorkflowsOptions struct {
	PortalOptions
	Category string
	Format   string
	Out      io.Writer
}

// NewWorkflowsCommand creates the command for listing the portal catalog.
func NewWorkflowsCommand() *cobra.Command {
	opts := &WorkflowsOptions{}

	cmd := &cobra.Command{
		Use:     "workflows",
		Aliases: []string{"ls"},
		Short:   "List the workflows available on the portal",
		Long: `List every workflow in the portal catalog, ordered by id.

Examples:
  tavernaplayer workflows                      # List all workflows in a table
  tavernaplayer workflows --category Workflow  # Only one category
  tavernaplayer workflows --format json        # JSON output`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Out = cmd.OutOrStdout()
			return runWorkflows(cmd.Context(), opts)
		},
	}

	addPortalFlags(cmd, &opts.PortalOptions)
	cmd.Flags().StringVar(&opts.Category, "category", "", "only show workflows in this category")
	cmd.Flags().StringVar(&opts.Format, "format", "table", "output format (table, json, yaml)")

	return cmd
}

func runWorkflows(ctx context.Context, opts *WorkflowsOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	_, client, err := opts.connect()
	if err != nil {
		return err
	}

	workflows, err := client.Workflows(ctx)
	if err != nil {
		return fmt.Errorf("failed to list workflows: %w", err)
	}

	descriptors := make([]portal.Descriptor, 0, len(workflows))
	for _, wf := range workflows {
		if opts.Category != "" && !strings.EqualFold(wf.Category, opts.Category) {
			continue
		}
		descriptors = append(descriptors, wf.Descriptor)
	}

	switch OutputFormat(opts.Format) {
	case FormatTable:
		printWorkflowTable(opts.Out, descriptors)
		return nil
	case FormatJSON:
		return printJSON(opts.Out, descriptors)
	case FormatYAML:
		return printYAML(opts.Out, descriptors)
	default:
		return fmt.Errorf("invalid format: %s (must be table, json, or yaml)", opts.Format)
	}
}

// printWorkflowTable prints catalog entries with a total.
func printWorkflowTable(w io.Writer, descriptors []portal.Descriptor) {
	if len(descriptors) == 0 {
		fmt.Fprintln(w, "No workflows found.")
		return
	}

	tbl := newTable(w, "ID", "CATEGORY", "TITLE", "DESCRIPTION")
	for _, d := range descriptors {
		tbl.AddRow(d.ID, d.Category, orDash(d.Title), orDash(truncate(d.Description, 60)))
	}
	tbl.Print()

	fmt.Fprintf(w, "\nTotal: %d workflow(s)\n", len(descriptors))
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// truncate shortens s to the first line, at most n runes.
func truncate(s string, n int) string {
	s, _, _ = strings.Cut(strings.TrimSpace(s), "\n")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
