package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/chazuruo/tavernaplayer/internal/portal"
)

// TemplateOptions contains the options for the template command.
type TemplateOptions struct {
	PortalOptions
	WorkflowID int
	Format     string
	Out        io.Writer
}

// NewTemplateCommand creates the command for showing a workflow's input ports.
func NewTemplateCommand() *cobra.Command {
	opts := &TemplateOptions{}

	cmd := &cobra.Command{
		Use:   "template <workflow-id>",
		Short: "Show the input ports of a workflow",
		Long: `Fetch the run template of a workflow and show its input ports
with their default values. Ports without a default must be supplied
when running the workflow.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseWorkflowID(args[0])
			if err != nil {
				return err
			}
			opts.WorkflowID = id
			opts.Out = cmd.OutOrStdout()
			return runTemplate(cmd.Context(), opts)
		},
	}

	addPortalFlags(cmd, &opts.PortalOptions)
	cmd.Flags().StringVar(&opts.Format, "format", "table", "output format (table, json, yaml)")

	return cmd
}

func runTemplate(ctx context.Context, opts *TemplateOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	_, client, err := opts.connect()
	if err != nil {
		return err
	}

	tmpl, err := client.RunTemplate(ctx, opts.WorkflowID)
	if err != nil {
		return fmt.Errorf("failed to fetch template: %w", err)
	}
	ports := tmpl.Ports()

	switch OutputFormat(opts.Format) {
	case FormatTable:
		printPortTable(opts.Out, opts.WorkflowID, ports)
		return nil
	case FormatJSON:
		return printJSON(opts.Out, ports)
	case FormatYAML:
		return printYAML(opts.Out, ports)
	default:
		return fmt.Errorf("invalid format: %s (must be table, json, or yaml)", opts.Format)
	}
}

func printPortTable(w io.Writer, workflowID int, ports []portal.Port) {
	if len(ports) == 0 {
		fmt.Fprintf(w, "Workflow %d has no input ports.\n", workflowID)
		return
	}

	tbl := newTable(w, "PORT", "DEFAULT")
	for _, p := range ports {
		def := faintStyle.Render("(required)")
		if p.HasDefault {
			def = fmt.Sprint(p.Default)
		}
		tbl.AddRow(p.Name, def)
	}
	tbl.Print()
}

// parseWorkflowID parses a positive workflow id argument.
func parseWorkflowID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid workflow id %q: must be a positive integer", arg)
	}
	return id, nil
}
