package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// PingOptions contains the options for the ping command.
type PingOptions struct {
	PortalOptions
	Out io.Writer
}

// NewPingCommand creates the command that checks the portal is reachable.
func NewPingCommand() *cobra.Command {
	opts := &PingOptions{}

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the portal is reachable with the configured credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Out = cmd.OutOrStdout()
			return runPing(cmd.Context(), opts)
		},
	}

	addPortalFlags(cmd, &opts.PortalOptions)

	return cmd
}

func runPing(ctx context.Context, opts *PingOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	_, client, err := opts.connect()
	if err != nil {
		return err
	}

	if err := client.CheckURL(ctx); err != nil {
		return err
	}

	fmt.Fprintln(opts.Out, successStyle.Render("✓ portal reachable at "+client.BaseURL()))
	return nil
}
