package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahmethakanbesel/ranking-api/internal/job"
)

func newStatusCmd(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status [job_id]",
		Short: "Show the state of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			snap, err := c.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get job: %w", err)
			}
			printSnapshot(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

func statusIcon(s job.Status) string {
	switch s {
	case job.StatusCompleted:
		return colorGreen + "✓" + colorReset
	case job.StatusError:
		return colorRed + "✗" + colorReset
	case job.StatusProcessing:
		return colorYellow + "⏳" + colorReset
	case job.StatusPending:
		return colorCyan + "◯" + colorReset
	default:
		return "•"
	}
}

func colorizeStatus(s job.Status) string {
	var color string
	switch s {
	case job.StatusCompleted:
		color = colorGreen
	case job.StatusError:
		color = colorRed
	case job.StatusProcessing:
		color = colorYellow
	case job.StatusPending:
		color = colorCyan
	default:
		return string(s)
	}
	return statusIcon(s) + " " + color + string(s) + colorReset
}

func printSnapshot(w io.Writer, s *job.Snapshot) {
	fmt.Fprintf(w, "%s %sJob Details%s\n", statusIcon(s.Status), colorBold, colorReset)
	fmt.Fprintln(w, "──────────────────────────────")
	field(w, "ID", s.ID)
	field(w, "Status", colorizeStatus(s.Status))
	field(w, "Message", s.Message)
	field(w, "Niche", s.Request.Niche)
	field(w, "Items", fmt.Sprintf("%d", s.Request.ItemCount))
	if s.ResultURL != "" {
		field(w, "Result", s.ResultURL)
	}
	if s.Metadata != nil {
		field(w, "Title", s.Metadata.Title)
		if len(s.Metadata.Tags) > 0 {
			field(w, "Tags", strings.Join(s.Metadata.Tags, ", "))
		}
	}
	field(w, "Created", formatTime(s.CreatedAt))
	if s.Status.Terminal() {
		field(w, "Finished", fmt.Sprintf("%s %s(%s)%s",
			formatTime(s.UpdatedAt), colorCyan, formatDuration(s.UpdatedAt.Sub(s.CreatedAt)), colorReset))
	}
}

func field(w io.Writer, name, value string) {
	fmt.Fprintf(w, "%s%-10s%s %s\n", colorDim, name+":", colorReset, value)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("Mon, 02 Jan 2006 15:04:05 MST")
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
