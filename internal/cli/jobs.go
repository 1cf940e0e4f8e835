package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newJobsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and cancel asynchronous runs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List jobs from this session",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			list := app.Jobs.List()

			if output.IsJSON() {
				return output.JSON(list)
			}

			color.Cyan("⚙️  Jobs")
			if len(list) == 0 {
				output.Warning("No jobs in this session")
				return nil
			}

			table := NewTable(output, "ID", "Kind", "Status", "Duration", "Error")
			for _, job := range list {
				duration := ""
				if !job.StartedAt.IsZero() && !job.FinishedAt.IsZero() {
					duration = formatDuration(job.FinishedAt.Sub(job.StartedAt))
				}
				table.AddRow(job.ID, job.Kind, output.StatusBadge(job.Status), duration, job.Error)
			}
			table.Render()
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			job, err := app.Jobs.Get(args[0])
			if err != nil && app.Store != nil {
				// Jobs from earlier sessions live only in the store.
				job, err = app.Store.GetJob(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(job)
			}

			output.Printf("ID:       %s\n", job.ID)
			output.Printf("Kind:     %s\n", job.Kind)
			output.Printf("Status:   %s\n", output.StatusBadge(job.Status))
			output.Printf("Created:  %s\n", job.CreatedAt.Format("2006-01-02 15:04:05"))
			if !job.StartedAt.IsZero() {
				output.Printf("Started:  %s\n", job.StartedAt.Format("2006-01-02 15:04:05"))
			}
			if !job.FinishedAt.IsZero() {
				output.Printf("Finished: %s\n", job.FinishedAt.Format("2006-01-02 15:04:05"))
			}
			if job.Error != "" {
				output.Error("Error:    %s", job.Error)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Jobs.Cancel(args[0]); err != nil {
				return err
			}
			output.Success("✓ Cancellation requested for %s", args[0])
			return nil
		},
	})

	return cmd
}
