package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gdw-platform/gdw-audit/internal/connectors"
	"github.com/gdw-platform/gdw-audit/internal/domain"
	"github.com/gdw-platform/gdw-audit/internal/policy"
	"github.com/gdw-platform/gdw-audit/internal/reconcile"
	"github.com/gdw-platform/gdw-audit/internal/render"
	"github.com/gdw-platform/gdw-audit/internal/temporal/activities"
)

// localResult is the JSON shape of a run.
type localResult struct {
	Table    string               `json:"table"`
	Report   domain.AuditReport   `json:"report"`
	Decision domain.AuditDecision `json:"decision"`
	Warnings []string             `json:"warnings,omitempty"`
	Sinks    int                  `json:"persisted_sinks"`
}

func newRunCmd(a *app) *cobra.Command {
	var (
		persist  bool
		fixtures string
	)

	cmd := &cobra.Command{
		Use:   "run TABLE",
		Short: "Audit one registry table in-process, without Temporal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reg, err := a.registry()
			if err != nil {
				return err
			}
			entry, ok := reg.Lookup(args[0])
			if !ok {
				return fmt.Errorf("registry has no table %q", args[0])
			}

			cfg := a.cfg
			if fixtures != "" {
				cfg.FixturesDir = fixtures
			}
			res, err := connectors.Build(ctx, cfg, reg, a.logger)
			if err != nil {
				return err
			}
			defer res.Close()

			engine := reconcile.NewEngine(a.logger, nil)
			engine.Workers = cfg.Workers
			acts := &activities.Activities{
				Fetcher: res.Router,
				Sink:    res.Sinks,
				Engine:  engine,
				Logger:  a.logger,
			}

			out, err := acts.AuditTable(ctx, activities.AuditTableInput{Entry: entry, Environment: cfg.Environment})
			if err != nil {
				return err
			}

			thresholds := domain.DefaultThresholds()
			if entry.Thresholds != nil {
				thresholds = *entry.Thresholds
			}
			decision := policy.NewEvaluator(thresholds).Evaluate(out.Report)

			result := localResult{Table: entry.Name, Report: out.Report, Decision: decision, Warnings: out.Warnings}
			if persist {
				p, err := acts.PersistReport(ctx, activities.PersistReportInput{Report: out.Report, Decision: decision})
				if err != nil {
					return err
				}
				result.Sinks = p.Sinks
			}

			if a.output == "json" {
				if err := a.printJSON(result); err != nil {
					return err
				}
			} else {
				if err := render.Report(a.stdout, out.Report, &decision); err != nil {
					return err
				}
				for _, w := range out.Warnings {
					fmt.Fprintf(a.stdout, "warning: %s\n", w)
				}
				if persist {
					fmt.Fprintf(a.stdout, "persisted to %d sink(s)\n", result.Sinks)
				}
			}

			if decision.Verdict == domain.VerdictFail {
				return errVerdict
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&persist, "persist", false, "write the report to the configured sinks")
	cmd.Flags().StringVar(&fixtures, "fixtures", "", "fixtures directory for stub mode (default $FIXTURES_DIR)")
	return cmd
}
