package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *daemonClient) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, sectionHeader("Easel daemon", shouldColorize(out)))
				fmt.Fprintf(out, "Running:   %t\n", status.Running)
				fmt.Fprintf(out, "PID:       %d\n", status.PID)
				fmt.Fprintf(out, "Queue DB:  %s\n", status.QueueDBPath)
				fmt.Fprintf(out, "Lock file: %s\n", status.LockFilePath)
				fmt.Fprintf(out, "Admission: %s\n", enabledText(status.Engine.Enabled))
				if status.Engine.Paused {
					fmt.Fprintln(out, "Processing is paused")
				}
				if status.Engine.ProcessingID != "" {
					fmt.Fprintf(out, "Processing: %s\n", status.Engine.ProcessingID)
				}
				if rows := buildQueueStatusRows(status.Engine.QueueStats); len(rows) > 0 {
					fmt.Fprintln(out, renderTable(
						[]string{"Status", "Count"},
						rows,
						[]columnAlignment{alignLeft, alignRight},
					))
				}
				return nil
			})
		},
	}
}

func enabledText(enabled bool) string {
	if enabled {
		return "queue"
	}
	return "direct"
}
