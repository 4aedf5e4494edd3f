package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiClient) error {
				status, err := client.Status()
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				fmt.Fprintln(out, renderSectionHeader("Daemon", colorize))
				fmt.Fprintln(out, renderStatusLine("Running", boolKind(status.Running), yesNo(status.Running), colorize))
				fmt.Fprintln(out, renderStatusLine("PID", statusInfo, strconv.Itoa(status.PID), colorize))
				fmt.Fprintln(out, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
				fmt.Fprintln(out, renderStatusLine("Storage", statusInfo, status.StorageProvider, colorize))
				fmt.Fprintln(out, renderStatusLine("Photos", statusInfo, strconv.Itoa(status.PhotoCount), colorize))

				fmt.Fprintln(out, renderSectionHeader("Workflow", colorize))
				fmt.Fprintln(out, renderStatusLine("Workers", boolKind(status.Workflow.Running), yesNo(status.Workflow.Running), colorize))
				if status.Workflow.LastError != "" {
					fmt.Fprintln(out, renderStatusLine("Last error", statusError, status.Workflow.LastError, colorize))
				}

				rows := queueStatsRows(status.Workflow.QueueStats)
				if len(rows) == 0 {
					fmt.Fprintln(out, renderStatusLine("Queue", statusInfo, "empty", colorize))
					return nil
				}
				fmt.Fprintln(out, renderTable([]string{"Status", "Count"}, rows, 1))
				return nil
			})
		},
	}
}

func queueStatsRows(stats map[string]int) [][]string {
	keys := make([]string, 0, len(stats))
	for key, count := range stats {
		if count > 0 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{displayStatus(key), strconv.Itoa(stats[key])})
	}
	return rows
}

func boolKind(ok bool) statusKind {
	if ok {
		return statusOK
	}
	return statusWarn
}

func yesNo(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}
