package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahmethakanbesel/ranking-api/internal/client"
	"github.com/ahmethakanbesel/ranking-api/internal/job"
)

func newSubmitCmd(opts *clientOptions) *cobra.Command {
	var (
		in   client.SubmitInput
		wait bool
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a ranking video job",
		Long:  `Submit a job that discovers clips for a niche, ranks them and compiles a countdown video. With --wait the command follows the job until it finishes and exits non-zero if it fails.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if in.Niche == "" {
				return fmt.Errorf("--niche is required")
			}
			c := opts.client()

			id, err := c.Submit(cmd.Context(), in)
			if err != nil {
				return fmt.Errorf("submit job: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job submitted: %s\n", id)
			if !wait {
				return nil
			}

			snap, err := c.Wait(cmd.Context(), id, opts.pollInterval(), func(s *job.Snapshot) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", statusIcon(s.Status), s.Message)
			})
			if err != nil {
				return fmt.Errorf("wait for job: %w", err)
			}
			printSnapshot(cmd.OutOrStdout(), snap)
			if snap.Status == job.StatusError {
				return fmt.Errorf("job %s failed", id)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Niche, "niche", "", "topic to search for (required)")
	cmd.Flags().IntVar(&in.ItemCount, "count", 0, "number of ranked clips (server default when omitted)")
	cmd.Flags().StringVar(&in.Title, "title", "", "video title (generated when omitted)")
	cmd.Flags().StringVar(&in.Description, "description", "", "video description (generated when omitted)")
	cmd.Flags().BoolVar(&in.AutoPublish, "publish", false, "upload the finished video")
	cmd.Flags().BoolVar(&wait, "wait", false, "follow the job until it finishes")
	return cmd
}
