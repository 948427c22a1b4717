package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gdw-platform/gdw-audit/internal/render"
	"github.com/gdw-platform/gdw-audit/internal/reportdiff"
)

func newDiffCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diff-report BASELINE CANDIDATE",
		Short: "Compare two stored audit reports section by section",
		Long:  "Reads two report JSON files, as written by the file sink, and shows which sections diverge.",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			baseline, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read baseline: %w", err)
			}
			candidate, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read candidate: %w", err)
			}

			result, err := reportdiff.Compare(baseline, candidate)
			if err != nil {
				return err
			}

			if a.output == "json" {
				err = a.printJSON(result)
			} else {
				err = render.Diff(a.stdout, result)
			}
			if err != nil {
				return err
			}
			if !result.AllMatch {
				a.logger.Warn("divergence detected", "summary", result.Summary)
				return errVerdict
			}
			return nil
		},
	}
}
