package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"scenecast/internal/api"
	"scenecast/internal/taskqueue"
)

func newQueuesCommand(ctx *commandContext) *cobra.Command {
	queuesCmd := &cobra.Command{
		Use:     "queues",
		Aliases: []string{"queue"},
		Short:   "Inspect and administer the engine task queues",
	}

	queuesCmd.AddCommand(newQueuesStatusCommand(ctx))
	queuesCmd.AddCommand(newQueuesCeilingCommand(ctx))
	queuesCmd.AddCommand(newQueuesClearCommand(ctx))
	queuesCmd.AddCommand(newQueuesCancelCommand(ctx))
	queuesCmd.AddCommand(newQueuesHistoryCommand(ctx))
	queuesCmd.AddCommand(newQueuesResetStatsCommand(ctx))

	return queuesCmd
}

func newQueuesStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status [queue]",
		Short: "Show queue counters",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				var statuses []taskqueue.Status
				if len(args) == 1 {
					status, err := client.Queue(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					statuses = []taskqueue.Status{status}
				} else {
					var err error
					if statuses, err = client.Queues(cmd.Context()); err != nil {
						return err
					}
				}
				if jsonOutput {
					return writeJSON(cmd, statuses)
				}
				printTable(cmd.OutOrStdout(), "No queues", queueStatusHeaders, buildQueueStatusRows(statuses), queueStatusAligns)
				return nil
			})
		},
	}
	addJSONFlag(cmd, &jsonOutput)
	return cmd
}

func newQueuesCeilingCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ceiling <queue> <n>",
		Short: "Change a queue's concurrency ceiling",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ceiling, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("ceiling must be an integer: %w", err)
			}
			return ctx.withClient(func(client *api.Client) error {
				status, err := client.SetCeiling(cmd.Context(), args[0], ceiling)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queue %s ceiling set to %d (%d active, %d queued)\n",
					status.Name, status.Ceiling, status.Active, status.Pending)
				return nil
			})
		},
	}
}

func newQueuesClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <queue>",
		Short: "Cancel every task still waiting in a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				count, err := client.CancelPending(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cancelled %d pending task(s) on %s\n", count, args[0])
				return nil
			})
		},
	}
}

func newQueuesCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <queue> <task-id>",
		Short: "Cancel one pending task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				if err := client.CancelTask(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task %s cancelled on %s\n", args[1], args[0])
				return nil
			})
		},
	}
}

func newQueuesHistoryCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "history <queue>",
		Short: "Show recently settled tasks, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				history, err := client.History(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, history)
				}
				printTable(cmd.OutOrStdout(), "No settled tasks",
					[]string{"Task", "Outcome", "Wait", "Run", "Settled", "Error"},
					buildHistoryRows(history),
					[]text.Align{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
				)
				return nil
			})
		},
	}
	addJSONFlag(cmd, &jsonOutput)
	return cmd
}

func newQueuesResetStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-stats <queue>",
		Short: "Zero a queue's processed and failed counters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				status, err := client.ResetStats(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queue %s stats reset\n", status.Name)
				return nil
			})
		},
	}
}
