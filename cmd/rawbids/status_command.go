package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"rawbids/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var showAll bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queued sessions and their pipeline state",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			items, err := store.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			summary, err := store.Summary(cmd.Context())
			if err != nil {
				return fmt.Errorf("summarize queue: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "Queue is empty; run `rawbids run` to discover sessions.")
				return nil
			}

			rows := make([][]string, 0, len(items))
			for _, item := range items {
				if !showAll && item.Status == queue.StatusCompleted {
					continue
				}
				rows = append(rows, []string{
					fmt.Sprintf("%d", item.ID),
					item.SubjectID,
					item.SessionLabel,
					item.SessionTask,
					string(item.Status),
					truncate(item.ErrorMessage, 60),
				})
			}
			if len(rows) > 0 {
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Subject", "Session", "Task", "Status", "Error"},
					rows, 0))
			}

			fmt.Fprintf(out, "\n%d total: %d pending, %d processing, %d completed, %d failed\n",
				summary.Total, summary.Pending, summary.Processing, summary.Completed, summary.Failed)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&showAll, "all", "a", false, "Include completed sessions in the listing")
	return cmd
}

func truncate(value string, max int) string {
	value = strings.TrimSpace(value)
	if len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}
