package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/chazuruo/tavernaplayer/internal/bundle"
	"github.com/chazuruo/tavernaplayer/internal/config"
	tperrors "github.com/chazuruo/tavernaplayer/internal/errors"
	"github.com/chazuruo/tavernaplayer/internal/export"
	"github.com/chazuruo/tavernaplayer/internal/portal"
	"github.com/chazuruo/tavernaplayer/internal/tui"
)

// ReportOptions control how a run is awaited and how its results are shown.
// Unset fields take their values from the config.
type ReportOptions struct {
	Timeout   time.Duration
	Format    string
	FormatSet bool
	OutputDir string
	Template  string
	IndexPath string
	Out       io.Writer
	ErrOut    io.Writer
}

func addReportFlags(cmd *cobra.Command, opts *ReportOptions) {
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "stop waiting after this long (default: run.timeout, 0 waits forever)")
	cmd.Flags().StringVar(&opts.Format, "format", "table", "result format (table, json, yaml, md)")
	cmd.Flags().StringVarP(&opts.OutputDir, "output-dir", "o", "", "write decoded outputs under this directory")
	cmd.Flags().StringVar(&opts.Template, "template", "", "custom Go template for md output")
}

// bind attaches the command's writers and records which flags were set.
func (o *ReportOptions) bind(cmd *cobra.Command) {
	o.Out = cmd.OutOrStdout()
	o.ErrOut = cmd.ErrOrStderr()
	o.FormatSet = cmd.Flags().Changed("format")
}

// applyConfig fills unset report settings from cfg.
func (o *ReportOptions) applyConfig(cfg *config.Config) {
	if o.Timeout == 0 {
		o.Timeout = cfg.Run.Timeout.Duration
	}
	if !o.FormatSet && cfg.Output.Format != "" {
		o.Format = cfg.Output.Format
	}
	if o.Format == "" {
		o.Format = string(FormatTable)
	}
	if o.OutputDir == "" {
		o.OutputDir = cfg.Output.Dir
	}
	if o.IndexPath == "" {
		o.IndexPath = runIndexPath(cfg)
	}
	if o.Out == nil {
		o.Out = io.Discard
	}
	if o.ErrOut == nil {
		o.ErrOut = io.Discard
	}
}

// waitAndReport waits for run to finish and prints its results. Giving up
// on the wait never cancels the remote run.
func waitAndReport(ctx context.Context, client *portal.Client, run *portal.Run, opts ReportOptions) error {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	wait := func(ctx context.Context) error {
		return client.WaitForResults(ctx, run)
	}

	var err error
	if IsNoTUI() {
		fmt.Fprintf(opts.ErrOut, "Waiting for run %s...\n", run.ID)
		err = wait(ctx)
	} else {
		err = tui.RunWait(ctx, fmt.Sprintf("Waiting for run %s", run.ID), wait)
	}

	if run.State.Terminal() {
		recordState(opts.ErrOut, opts.IndexPath, client, run)
	}

	resume := fmt.Sprintf("tavernaplayer results %s", run.ID)
	switch {
	case err == nil:
	case errors.Is(err, tui.ErrAbandoned):
		fmt.Fprintf(opts.ErrOut, "Stopped waiting. Collect results later with: %s\n", resume)
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("timed out waiting for run %s; it continues on the portal (%s)", run.ID, resume)
	case tperrors.IsRunCancelled(err):
		fmt.Fprintln(opts.ErrOut, stateLine(run))
		return err
	default:
		return fmt.Errorf("failed to collect results of run %s: %w", run.ID, err)
	}

	outputs, err := run.Outputs(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(opts.ErrOut, stateLine(run))

	if opts.OutputDir != "" {
		written, err := export.WriteTree(opts.OutputDir, outputs)
		if err != nil {
			return fmt.Errorf("failed to write outputs: %w", err)
		}
		fmt.Fprintf(opts.ErrOut, "Wrote %d file(s) to %s\n", len(written), opts.OutputDir)
	}

	return printResults(opts, run, outputs)
}

// printResults renders the finished run in the requested format.
func printResults(opts ReportOptions, run *portal.Run, outputs bundle.Outputs) error {
	doc := export.NewDocument(run, outputs)

	if OutputFormat(opts.Format) == FormatTable {
		if len(doc.Outputs) == 0 {
			fmt.Fprintln(opts.Out, "The run produced no outputs.")
			return nil
		}
		tbl := newTable(opts.Out, "PORT", "VALUE")
		for _, port := range outputs.Ports() {
			tbl.AddRow(port, export.Summary(doc.Outputs[port]))
		}
		tbl.Print()
		return nil
	}

	exporter, err := export.NewExporter(export.Options{
		Format:         export.Format(opts.Format),
		CustomTemplate: opts.Template,
	})
	if err != nil {
		return err
	}
	rendered, err := exporter.Export(doc)
	if err != nil {
		return err
	}
	fmt.Fprint(opts.Out, rendered)
	return nil
}
