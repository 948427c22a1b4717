package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gdw-platform/gdw-audit/internal/domain"
	"github.com/gdw-platform/gdw-audit/internal/render"
	"github.com/gdw-platform/gdw-audit/internal/temporal/querier"
	"github.com/gdw-platform/gdw-audit/internal/temporal/workflows"
)

// pollInterval is how often --wait re-reads workflow state.
var pollInterval = 2 * time.Second

func (a *app) withQuerier(fn func(q querier.AuditQuerier) error) error {
	q, closeFn, err := a.dial(a.cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(q)
}

func newTriggerCmd(a *app) *cobra.Command {
	var (
		wait        bool
		skipPersist bool
	)

	cmd := &cobra.Command{
		Use:   "trigger TABLE",
		Short: "Start a TableAuditWorkflow for one registry table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := a.entry(args[0])
			if err != nil {
				return err
			}
			return a.withQuerier(func(q querier.AuditQuerier) error {
				ref, err := q.StartAudit(cmd.Context(), workflows.AuditInput{
					Entry:       entry,
					Environment: a.cfg.Environment,
					SkipPersist: skipPersist,
				})
				if err != nil {
					return err
				}
				if !wait {
					if a.output == "json" {
						return a.printJSON(ref)
					}
					fmt.Fprintf(a.stdout, "started workflow %s (run=%s)\n", ref.WorkflowID, ref.RunID)
					return nil
				}

				res, err := waitForAudit(cmd.Context(), q, ref.WorkflowID)
				if err != nil {
					return err
				}
				return a.printAudit(res)
			})
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the audit to finish and print the report")
	cmd.Flags().BoolVar(&skipPersist, "skip-persist", false, "do not write the report to the sinks")
	return cmd
}

func newSweepCmd(a *app) *cobra.Command {
	var (
		wait        bool
		skipPersist bool
	)

	cmd := &cobra.Command{
		Use:   "sweep [TABLE...]",
		Short: "Start a RegistrySweepWorkflow over the registry, or the named tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range args {
				if _, err := a.entry(name); err != nil {
					return err
				}
			}
			return a.withQuerier(func(q querier.AuditQuerier) error {
				ref, err := q.StartSweep(cmd.Context(), workflows.SweepInput{
					Environment: a.cfg.Environment,
					Tables:      args,
					SkipPersist: skipPersist,
				})
				if err != nil {
					return err
				}
				if !wait {
					if a.output == "json" {
						return a.printJSON(ref)
					}
					fmt.Fprintf(a.stdout, "started sweep %s (run=%s)\n", ref.WorkflowID, ref.RunID)
					return nil
				}

				res, err := waitForSweep(cmd.Context(), q, ref.WorkflowID)
				if err != nil {
					return err
				}
				if a.output == "json" {
					if err := a.printJSON(res); err != nil {
						return err
					}
				} else if err := render.Sweep(a.stdout, *res); err != nil {
					return err
				}
				if res.Worst() == domain.VerdictFail {
					return errVerdict
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "wait for every table and print the summary")
	cmd.Flags().BoolVar(&skipPersist, "skip-persist", false, "do not write reports to the sinks")
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status WORKFLOW_ID",
		Short: "Describe an audit or sweep workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withQuerier(func(q querier.AuditQuerier) error {
				desc, err := q.DescribeAudit(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.printJSON(desc)
			})
		},
	}
}

func newReportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "report WORKFLOW_ID",
		Short: "Print the report and verdict of an audit workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withQuerier(func(q querier.AuditQuerier) error {
				res, err := q.GetAuditResult(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.printAudit(res)
			})
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	var (
		status   string
		sweeps   bool
		pageSize int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent audit workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := querier.ListOptions{
				StatusFilter: status,
				WorkflowType: querier.TypeTableAudit,
				PageSize:     pageSize,
			}
			if sweeps {
				opts.WorkflowType = querier.TypeRegistrySweep
			}
			return a.withQuerier(func(q querier.AuditQuerier) error {
				list, err := q.ListAudits(cmd.Context(), opts)
				if err != nil {
					return err
				}
				if a.output == "json" {
					return a.printJSON(list)
				}
				for _, w := range list {
					fmt.Fprintf(a.stdout, "%s\t%s\t%s\n", w.WorkflowID, w.Status, w.StartTime.UTC().Format(time.RFC3339))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by execution status (Running, Completed, Failed)")
	cmd.Flags().BoolVar(&sweeps, "sweeps", false, "list sweeps instead of table audits")
	cmd.Flags().IntVar(&pageSize, "limit", 20, "maximum number of workflows")
	return cmd
}

// printAudit writes an audit result and maps its outcome to the exit code.
func (a *app) printAudit(res *workflows.AuditResult) error {
	if a.output == "json" {
		if err := a.printJSON(res); err != nil {
			return err
		}
	} else {
		if res.Report != nil {
			if err := render.Report(a.stdout, *res.Report, res.Decision); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(a.stdout, "%s: %s (no report yet)\n", res.Table, res.Phase)
		}
		for _, w := range res.Warnings {
			fmt.Fprintf(a.stdout, "warning: %s\n", w)
		}
	}

	if res.Error != nil {
		return fmt.Errorf("audit %s ended with %s: %s", res.Table, res.Reason, *res.Error)
	}
	if res.Verdict() == domain.VerdictFail {
		return errVerdict
	}
	return nil
}

// waitForAudit polls until the audit reaches a terminal reason.
func waitForAudit(ctx context.Context, q querier.AuditQuerier, workflowID string) (*workflows.AuditResult, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		res, err := q.GetAuditResult(ctx, workflowID)
		if err != nil {
			return nil, err
		}
		if res.Reason != "" {
			return res, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// waitForSweep polls until the sweep is no longer running, then reads its result.
func waitForSweep(ctx context.Context, q querier.AuditQuerier, workflowID string) (*workflows.SweepResult, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		desc, err := q.DescribeAudit(ctx, workflowID)
		if err != nil {
			return nil, err
		}
		if desc.Status != "Running" {
			return q.GetSweepResult(ctx, workflowID)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
