package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the generation queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueCancelCommand(ctx))
	queueCmd.AddCommand(newQueuePauseCommand(ctx))
	queueCmd.AddCommand(newQueueResumeCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueEnableCommand(ctx))
	queueCmd.AddCommand(newQueueDisableCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *daemonClient) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				rows := buildQueueStatusRows(status.Engine.QueueStats)
				if len(rows) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Status", "Count"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
				if status.Engine.ProcessingID != "" {
					fmt.Fprintf(out, "Processing: %s\n", status.Engine.ProcessingID)
				}
				if status.Engine.Paused {
					fmt.Fprintln(out, "Queue processing is paused")
				}
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *daemonClient) error {
				resp, err := client.QueueList(listStatuses)
				if err != nil {
					return err
				}
				if len(resp.Items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Pos", "Provider", "Type", "Prompt", "Status", "Credits", "Created"},
					buildQueueListRows(resp.Items),
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by queue status (repeatable)")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one queue item in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *daemonClient) error {
				resp, err := client.QueueItem(args[0])
				if err != nil {
					return err
				}
				item := resp.Item
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, sectionHeader("Queue item "+item.ID, shouldColorize(out)))
				fmt.Fprintf(out, "Status:    %s\n", item.Status)
				fmt.Fprintf(out, "Provider:  %s\n", item.Provider)
				fmt.Fprintf(out, "Type:      %s\n", item.GenerationType)
				if item.Model != "" {
					fmt.Fprintf(out, "Model:     %s\n", item.Model)
				}
				if item.Prompt != "" {
					fmt.Fprintf(out, "Prompt:    %s\n", item.Prompt)
				}
				fmt.Fprintf(out, "Credits:   %d\n", item.CreditsCost)
				if item.ErrorMessage != "" {
					fmt.Fprintf(out, "Error:     %s\n", item.ErrorMessage)
				}
				if item.HistoryID != "" {
					fmt.Fprintf(out, "History:   %s\n", item.HistoryID)
				}
				if item.CreatedAt != "" {
					fmt.Fprintf(out, "Created:   %s\n", formatQueueTime(item.CreatedAt))
				}
				if item.StartedAt != "" {
					fmt.Fprintf(out, "Started:   %s\n", formatQueueTime(item.StartedAt))
				}
				if item.CompletedAt != "" {
					fmt.Fprintf(out, "Completed: %s\n", formatQueueTime(item.CompletedAt))
				}
				return nil
			})
		},
	}
}

func newQueueCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a queued or processing generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *daemonClient) error {
				if err := client.Cancel(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancelled %s\n", args[0])
				return nil
			})
		},
	}
}

func newQueuePauseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause queue processing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *daemonClient) error {
				if err := client.Pause(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Queue processing paused")
				return nil
			})
		},
	}
}

func newQueueResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume queue processing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *daemonClient) error {
				if err := client.Resume(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Queue processing resumed")
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove completed items from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *daemonClient) error {
				cleared, err := client.ClearCompleted()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d completed item(s)\n", cleared)
				return nil
			})
		},
	}
}

func newQueueEnableCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "enable",
		Short: "Enable the queue: admit and process generations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *daemonClient) error {
				if err := client.SetEnabled(true); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Queue enabled")
				return nil
			})
		},
	}
}

func newQueueDisableCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "disable",
		Short: "Disable the queue: new generations go directly to providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *daemonClient) error {
				if err := client.SetEnabled(false); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Queue disabled; queued items are held")
				return nil
			})
		},
	}
}
