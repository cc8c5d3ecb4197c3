package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"rawbids/internal/deps"
	"rawbids/internal/workflow"
)

const timeRound = 100 * time.Millisecond

func newRunCommand(ctx *commandContext) *cobra.Command {
	var retryFailed bool
	var skipDepsCheck bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Discover sessions and process them into rawdata",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cfg, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if !skipDepsCheck {
				statuses := deps.CheckBinaries(deps.Required(cfg))
				if missing := deps.MissingRequired(statuses); len(missing) > 0 {
					return fmt.Errorf("missing required tools: %s (run `rawbids deps` for details)",
						strings.Join(missing, ", "))
				}
			}

			logger, err := ctx.newLogger(cfg)
			if err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}

			if retryFailed {
				reset, err := store.RetryFailed(cmd.Context())
				if err != nil {
					return fmt.Errorf("reset failed sessions: %w", err)
				}
				if reset > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d failed session(s)\n", reset)
				}
			}

			manager := workflow.NewManager(cfg, store, logger)
			summary, err := manager.Run(cmd.Context())
			if err != nil {
				return err
			}

			printRunSummary(cmd, summary)
			return nil
		},
	}

	cmd.Flags().BoolVar(&retryFailed, "retry", false, "Requeue previously failed sessions before running")
	cmd.Flags().BoolVar(&skipDepsCheck, "skip-deps-check", false, "Skip the external tool availability check")
	return cmd
}

func printRunSummary(cmd *cobra.Command, summary *workflow.RunSummary) {
	out := cmd.OutOrStdout()
	rows := [][]string{
		{"Discovered", fmt.Sprintf("%d", summary.Discovered)},
		{"Newly queued", fmt.Sprintf("%d", summary.Enqueued)},
		{"Completed", fmt.Sprintf("%d", summary.Completed)},
		{"Failed", fmt.Sprintf("%d", summary.Failed)},
		{"Skipped", fmt.Sprintf("%d", summary.Skipped)},
		{"Elapsed", summary.Elapsed.Round(timeRound).String()},
	}
	fmt.Fprintln(out, renderTable([]string{"Metric", "Value"}, rows, 1))

	if len(summary.Failures) > 0 {
		colorize := shouldColorize(out)
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader("Failures", colorize) {
			fmt.Fprintln(out, line)
		}
		for _, failure := range summary.Failures {
			session, message, _ := strings.Cut(failure, ": ")
			fmt.Fprintln(out, renderStatusLine(session, statusError, message, colorize))
		}
	}
}
