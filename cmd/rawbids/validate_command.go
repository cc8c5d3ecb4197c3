package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rawbids/internal/sourcedata"
)

// validate inspects the source tree without writing anything, so operators
// can catch naming problems before a full run.
func newValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check source sessions without converting anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			refs, discoveryDiags, err := sourcedata.Discover(cfg.Paths.SourceDir)
			if err != nil {
				return fmt.Errorf("discover sessions: %w", err)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			rows := make([][]string, 0, len(refs))
			var problems []string
			for _, ref := range refs {
				report, err := sourcedata.ValidateSession(ref)
				if err != nil {
					return fmt.Errorf("inspect %s: %w", ref.Path, err)
				}
				state := "ok"
				diags := report.Diagnostics
				if report.Passed {
					manifest, err := sourcedata.Classify(ref)
					if err != nil {
						return fmt.Errorf("classify %s: %w", ref.Path, err)
					}
					diags = append(diags, manifest.Diagnostics...)
					if !manifest.HasImaging() {
						state = "behavioral only"
					}
				} else {
					state = "invalid"
				}
				rows = append(rows, []string{
					ref.SubjectID, ref.SessionLabel, ref.SessionTask, state,
					fmt.Sprintf("%d", len(diags)),
				})
				for _, diag := range diags {
					problems = append(problems, fmt.Sprintf("%s/%s: %s", ref.SubjectID, ref.SessionLabel, diag))
				}
			}

			if len(rows) == 0 {
				fmt.Fprintf(out, "No sessions found under %s\n", cfg.Paths.SourceDir)
			} else {
				fmt.Fprintln(out, renderTable(
					[]string{"Subject", "Session", "Task", "State", "Diagnostics"},
					rows, 4))
			}

			if len(discoveryDiags)+len(problems) > 0 {
				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Diagnostics", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, diag := range discoveryDiags {
					fmt.Fprintln(out, renderStatusLine("sourcedata", statusWarn, diag, colorize))
				}
				for _, problem := range problems {
					fmt.Fprintln(out, renderStatusLine("session", statusWarn, problem, colorize))
				}
			}
			return nil
		},
	}
}
