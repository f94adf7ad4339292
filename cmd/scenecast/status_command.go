package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"scenecast/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, status)
				}
				renderDaemonStatus(cmd.OutOrStdout(), status, shouldColorize(cmd.OutOrStdout()))
				return nil
			})
		},
	}
	addJSONFlag(cmd, &jsonOutput)
	return cmd
}

func renderDaemonStatus(w io.Writer, status api.DaemonStatus, colorize bool) {
	writeSectionHeader(w, "Daemon", colorize)
	fmt.Fprintln(w, renderStatusLine("Running", passKind(status.Running), fmt.Sprintf("pid %d", status.PID), colorize))
	if !status.StartedAt.IsZero() {
		fmt.Fprintln(w, renderStatusLine("Started", statusInfo, status.StartedAt.Local().Format("2006-01-02 15:04:05"), colorize))
	}
	dbDetail := status.DatabasePath
	if status.Database.Error != "" {
		dbDetail = status.Database.Error
	}
	fmt.Fprintln(w, renderStatusLine("Database", passKind(status.Database.Healthy()), dbDetail, colorize))
	fmt.Fprintln(w)

	writeSectionHeader(w, "Preflight", colorize)
	for _, result := range status.Preflight {
		fmt.Fprintln(w, renderStatusLine(result.Name, passKind(result.Passed), result.Detail, colorize))
	}
	for _, dep := range status.Dependencies {
		kind := statusOK
		detail := dep.Command
		if dep.Path != "" {
			detail = dep.Path
		}
		if !dep.Available {
			kind = statusError
			if dep.Optional {
				kind = statusWarn
			}
			detail = dep.Detail
		}
		fmt.Fprintln(w, renderStatusLine(dep.Name, kind, detail, colorize))
	}
	fmt.Fprintln(w)

	writeSectionHeader(w, "Jobs", colorize)
	rows := make([][]string, 0, len(status.Jobs))
	for _, name := range api.StatusNames(status.Jobs) {
		rows = append(rows, []string{name, strconv.Itoa(status.Jobs[name])})
	}
	printTable(w, "No jobs", []string{"Status", "Count"}, rows, []text.Align{alignLeft, alignRight})
	fmt.Fprintln(w)

	writeSectionHeader(w, "Queues", colorize)
	printTable(w, "No queues", queueStatusHeaders, buildQueueStatusRows(status.Queues), queueStatusAligns)
}
