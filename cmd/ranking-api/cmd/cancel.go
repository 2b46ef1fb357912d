package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCancelCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel [job_id]",
		Short: "Stop a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			if err := c.Cancel(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("cancel job: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for job %s\n", args[0])
			return nil
		},
	}
}
