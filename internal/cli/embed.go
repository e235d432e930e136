package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// EmbedOptions contains the options for the embed command.
type EmbedOptions struct {
	PortalOptions
	RunID string
	Out   io.Writer
}

// NewEmbedCommand creates the command that prints the embedding fragment
// for a run page.
func NewEmbedCommand() *cobra.Command {
	opts := &EmbedOptions{}

	cmd := &cobra.Command{
		Use:   "embed <run-id>",
		Short: "Print the HTML iframe that embeds a run page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.RunID = args[0]
			opts.Out = cmd.OutOrStdout()
			return runEmbed(opts)
		},
	}

	addPortalFlags(cmd, &opts.PortalOptions)

	return cmd
}

func runEmbed(opts *EmbedOptions) error {
	_, client, err := opts.connect()
	if err != nil {
		return err
	}

	run, err := client.Run(opts.RunID)
	if err != nil {
		return fmt.Errorf("invalid run id: %w", err)
	}

	fmt.Fprintln(opts.Out, client.EmbedHTML(run))
	return nil
}
