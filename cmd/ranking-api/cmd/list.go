package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd(opts *clientOptions) *cobra.Command {
	var status, niche string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := opts.client()
			jobs, err := c.List(cmd.Context(), status, niche)
			if err != nil {
				return fmt.Errorf("list jobs: %w", err)
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs found")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tNICHE\tITEMS\tCREATED\tMESSAGE")
			for _, j := range jobs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
					j.ID, j.Status, j.Request.Niche, j.Request.ItemCount,
					j.CreatedAt.Local().Format("2006-01-02 15:04:05"), j.Message)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only jobs in this status")
	cmd.Flags().StringVar(&niche, "niche", "", "only jobs for this niche")
	return cmd
}
