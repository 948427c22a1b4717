package activities

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"golang.org/x/sync/errgroup"

	"github.com/gdw-platform/gdw-audit/internal/config"
	"github.com/gdw-platform/gdw-audit/internal/connectors"
	"github.com/gdw-platform/gdw-audit/internal/domain"
	"github.com/gdw-platform/gdw-audit/internal/observability"
	"github.com/gdw-platform/gdw-audit/internal/policy"
	"github.com/gdw-platform/gdw-audit/internal/ratelimit"
	"github.com/gdw-platform/gdw-audit/internal/reconcile"
)

// Fetcher materializes the table a registry spec locates.
// connectors.Router implements it.
type Fetcher interface {
	Fetch(ctx context.Context, spec config.TableSpec, env domain.Environment) (domain.TableData, error)
}

// Activities holds the dependencies for all Temporal activities.
// Each method is registered as a Temporal activity.
type Activities struct {
	Fetcher      Fetcher
	Sink         connectors.Sink
	Engine       *reconcile.Engine
	RegistryPath string
	Budget       *ratelimit.AuditBudget // nil = no budget enforcement
	Metrics      *observability.Metrics // nil = no metrics
	Logger       *slog.Logger
}

func (a *Activities) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}

func (a *Activities) record(ctx context.Context, name string) {
	if a.Metrics != nil {
		a.Metrics.RecordActivity(ctx, name)
	}
}

// AuditTable fetches both sides of a registry entry concurrently and reconciles them.
func (a *Activities) AuditTable(ctx context.Context, in AuditTableInput) (AuditTableOutput, error) {
	a.record(ctx, "AuditTable")
	e := in.Entry

	if a.Budget != nil && firstAttempt(ctx) {
		if err := a.Budget.Take(string(in.Environment), e.Name); err != nil {
			return AuditTableOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeBudget, err)
		}
	}

	var src, tgt domain.TableData
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if src, err = a.Fetcher.Fetch(gctx, e.Source, in.Environment); err != nil {
			return fmt.Errorf("fetch source: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if tgt, err = a.Fetcher.Fetch(gctx, e.Target, in.Environment); err != nil {
			return fmt.Errorf("fetch target: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return AuditTableOutput{}, classify(fmt.Errorf("audit %s: %w", e.Name, err))
	}

	res, err := a.Engine.Reconcile(ctx, reconcile.Input{
		Source:        src,
		Target:        tgt,
		KeyColumns:    e.KeyColumns,
		ColumnMapping: e.ColumnMapping,
		KnownDiffs:    e.KnownDiffs,
	})
	if err != nil {
		return AuditTableOutput{}, classify(fmt.Errorf("audit %s: %w", e.Name, err))
	}

	out := AuditTableOutput{Report: res.Report, SourceRows: len(src.Rows), TargetRows: len(tgt.Rows)}
	for _, w := range res.Warnings {
		out.Warnings = append(out.Warnings, w.Error())
	}
	a.logger().Info("table audited",
		"table", e.Name,
		"environment", in.Environment,
		"source_rows", out.SourceRows,
		"target_rows", out.TargetRows,
		"warnings", len(out.Warnings),
	)
	return out, nil
}

// PersistReport writes a report to every configured sink after re-checking its
// counts and decision. A report that fails the check is never retried.
func (a *Activities) PersistReport(ctx context.Context, in PersistReportInput) (PersistReportOutput, error) {
	a.record(ctx, "PersistReport")
	if err := policy.EnforcePublishable(in.Report); err != nil {
		return PersistReportOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeUnpublishable, err)
	}
	if err := domain.ValidateDecision(in.Decision); err != nil {
		return PersistReportOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeUnpublishable, err)
	}
	if a.Sink == nil {
		a.logger().Warn("no sink configured, report not persisted", "target_table", in.Report.TargetTable)
		return PersistReportOutput{}, nil
	}
	if err := a.Sink.Write(ctx, in.Report); err != nil {
		return PersistReportOutput{}, fmt.Errorf("persist report %s: %w", in.Report.TargetTable, err)
	}

	sinks := 1
	if ms, ok := a.Sink.(*connectors.MultiSink); ok {
		sinks = ms.Len()
	}
	a.logger().Info("report persisted",
		"source_table", in.Report.SourceTable,
		"target_table", in.Report.TargetTable,
		"verdict", in.Decision.Verdict,
		"sinks", sinks,
	)
	return PersistReportOutput{Sinks: sinks}, nil
}

// LoadRegistry reads the table registry, optionally keeping only named entries.
// Entries are returned in name order.
func (a *Activities) LoadRegistry(_ context.Context, in LoadRegistryInput) (LoadRegistryOutput, error) {
	reg, err := config.LoadRegistry(a.RegistryPath)
	if err != nil {
		return LoadRegistryOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeRegistry, err)
	}

	entries := reg.Tables
	if len(in.Tables) > 0 {
		entries = nil
		for _, name := range in.Tables {
			e, ok := reg.Lookup(name)
			if !ok {
				err := fmt.Errorf("registry has no table %q", name)
				return LoadRegistryOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeRegistry, err)
			}
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return LoadRegistryOutput{Entries: entries}, nil
}

// firstAttempt is false for Temporal retries of an activity, so a retried
// audit does not spend its budget twice.
func firstAttempt(ctx context.Context) bool {
	return !activity.IsActivity(ctx) || activity.GetInfo(ctx).Attempt <= 1
}

// classify turns errors that no retry can fix into non-retryable application errors.
func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrSchemaConflict):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeSchemaConflict, err)
	case errors.Is(err, domain.ErrInvariantViolation):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvariantViolation, err)
	case errors.Is(err, domain.ErrRowLimit):
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeRowLimit, err)
	}
	return err
}
