package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chazuruo/tavernaplayer/internal/portal"
	"github.com/chazuruo/tavernaplayer/internal/tui"
)

// RunOptions contains the options for the run command.
type RunOptions struct {
	PortalOptions
	ReportOptions
	WorkflowID int
	Name       string
	Inputs     []string
	InputsFile string
	Embed      bool
	Detach     bool
}

// NewRunCommand creates the run command for running workflows on the portal.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run [workflow-id]",
		Short: "Run a workflow on the portal and collect its results",
		Long: `Create a run of a workflow, wait for it to finish, and show its outputs.

Input values come from --inputs-file (YAML mapping of port to value) and
--input port=value flags; flags win. Ports with a default may be omitted.
Ports without a default are prompted for unless --no-tui is set.

Without a workflow id an interactive picker over the catalog is shown.

Examples:
  tavernaplayer run 12 --input species=Mola_mola
  tavernaplayer run 12 --inputs-file inputs.yaml --output-dir ./results
  tavernaplayer run 12 --detach                    # Start and print the run id
  tavernaplayer run --no-tui 12 --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				id, err := parseWorkflowID(args[0])
				if err != nil {
					return err
				}
				opts.WorkflowID = id
			}
			opts.bind(cmd)
			return runRun(cmd.Context(), opts)
		},
	}

	addPortalFlags(cmd, &opts.PortalOptions)
	addReportFlags(cmd, &opts.ReportOptions)
	cmd.Flags().StringVarP(&opts.Name, "name", "n", "", "run name (default: derived from the workflow title)")
	cmd.Flags().StringArrayVarP(&opts.Inputs, "input", "i", nil, "input value as port=value (repeatable)")
	cmd.Flags().StringVar(&opts.InputsFile, "inputs-file", "", "YAML file mapping input ports to values")
	cmd.Flags().BoolVar(&opts.Embed, "embed", false, "print the HTML fragment embedding the run page")
	cmd.Flags().BoolVar(&opts.Detach, "detach", false, "start the run and exit without waiting")

	return cmd
}

func runRun(ctx context.Context, opts *RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, client, err := opts.connect()
	if err != nil {
		return err
	}
	opts.applyConfig(cfg)

	inputs, err := loadInputs(opts.InputsFile, opts.Inputs)
	if err != nil {
		return err
	}

	if opts.WorkflowID == 0 {
		if IsNoTUI() {
			return fmt.Errorf("workflow id is required when --no-tui is set")
		}
		id, ok, err := pickWorkflow(ctx, client)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(opts.ErrOut, "Cancelled.")
			return nil
		}
		opts.WorkflowID = id
	}

	wf, err := client.Workflow(ctx, opts.WorkflowID)
	if err != nil {
		return err
	}

	tmpl, err := wf.RunTemplate(ctx)
	if err != nil {
		return err
	}
	if missing := tmpl.Missing(inputs); len(missing) > 0 && !IsNoTUI() {
		if err := promptInputs(wf, missing, inputs); err != nil {
			return err
		}
	}

	name := opts.Name
	if name == "" {
		name = DefaultRunName(wf.Title)
	}

	run, err := client.StartRun(ctx, wf.ID, name, inputs)
	if err != nil {
		return err
	}
	fmt.Fprintf(opts.ErrOut, "Started run %s (%s) of workflow %d\n", run.ID, name, wf.ID)
	recordRun(opts.ErrOut, opts.IndexPath, client, wf, run)

	if opts.Embed || cfg.Run.Embed {
		fmt.Fprintln(opts.Out, client.EmbedHTML(run))
	}

	if opts.Detach {
		fmt.Fprintf(opts.ErrOut, "Collect results with: tavernaplayer results %s\n", run.ID)
		return nil
	}

	return waitAndReport(ctx, client, run, opts.ReportOptions)
}

// loadInputs merges the inputs file with port=value flags. Flags win.
func loadInputs(path string, pairs []string) (map[string]any, error) {
	inputs := make(map[string]any)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read inputs file: %w", err)
		}
		if err := yaml.Unmarshal(data, &inputs); err != nil {
			return nil, fmt.Errorf("failed to parse inputs file %s: %w", path, err)
		}
		if inputs == nil {
			inputs = make(map[string]any)
		}
	}

	for _, pair := range pairs {
		port, value, ok := strings.Cut(pair, "=")
		port = strings.TrimSpace(port)
		if !ok || port == "" {
			return nil, fmt.Errorf("invalid input %q: expected port=value", pair)
		}
		inputs[port] = value
	}

	return inputs, nil
}

// pickWorkflow shows the catalog picker. ok is false when the user quit.
func pickWorkflow(ctx context.Context, client *portal.Client) (int, bool, error) {
	workflows, err := client.Workflows(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("failed to list workflows: %w", err)
	}
	if len(workflows) == 0 {
		return 0, false, errors.New("the portal has no workflows")
	}

	descriptors := make([]portal.Descriptor, len(workflows))
	for i, wf := range workflows {
		descriptors[i] = wf.Descriptor
	}

	final, err := tea.NewProgram(tui.NewWorkflowPicker(descriptors)).Run()
	if err != nil {
		return 0, false, fmt.Errorf("running workflow picker: %w", err)
	}
	picker := final.(tui.WorkflowPickerModel)
	if picker.DidQuit() || !picker.DidConfirm() || picker.Selected() == nil {
		return 0, false, nil
	}
	return picker.Selected().ID, true, nil
}

// promptInputs asks for the given ports and stores the answers in inputs.
func promptInputs(wf *portal.Workflow, ports []string, inputs map[string]any) error {
	values := make([]string, len(ports))
	fields := make([]huh.Field, len(ports))
	for i, port := range ports {
		fields[i] = huh.NewInput().
			Title(port).
			Description(fmt.Sprintf("Input for %s", wf.Title)).
			Value(&values[i]).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("%s has no default and needs a value", port)
				}
				return nil
			})
	}

	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return fmt.Errorf("form error: %w", err)
	}

	for i, port := range ports {
		inputs[port] = values[i]
	}
	return nil
}
