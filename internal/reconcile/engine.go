package reconcile

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/gdw-platform/gdw-audit/internal/domain"
	"github.com/gdw-platform/gdw-audit/internal/observability"
)

// Input is one source/target pair with its comparison settings.
type Input struct {
	Source        domain.TableData
	Target        domain.TableData
	KeyColumns    []string
	ColumnMapping map[string]string
	KnownDiffs    []domain.KnownDiffRule
}

// Result carries the report and any non-fatal warnings raised while building it.
type Result struct {
	Report   domain.AuditReport
	Warnings []error
}

// Engine runs the schema and row comparators and builds the report.
type Engine struct {
	Clock   Clock
	Workers int
	Logger  *slog.Logger
	Metrics *observability.Metrics
	Tracer  trace.Tracer // nil = global provider
}

// NewEngine returns an engine using the wall clock and the default worker count.
func NewEngine(logger *slog.Logger, metrics *observability.Metrics) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{Clock: time.Now, Workers: DefaultWorkers, Logger: logger, Metrics: metrics}
}

// Reconcile compares in.Source against in.Target. SchemaConflict and
// InvariantViolation errors abort; empty row sets are reported in
// Result.Warnings alongside the degenerate report.
func (e *Engine) Reconcile(ctx context.Context, in Input) (Result, error) {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := e.Tracer
	if tracer == nil {
		tracer = observability.Tracer()
	}
	ctx, span := tracer.Start(ctx, "reconcile", trace.WithAttributes(
		attribute.String("audit.source", in.Source.Table.FullID()),
		attribute.String("audit.target", in.Target.Table.FullID()),
	))
	defer span.End()
	start := time.Now()

	var warnings []error
	if len(in.Source.Rows) == 0 {
		warnings = append(warnings, &domain.EmptyInputWarning{Side: domain.SideSource})
	}
	if len(in.Target.Rows) == 0 {
		warnings = append(warnings, &domain.EmptyInputWarning{Side: domain.SideTarget})
	}
	for _, w := range warnings {
		logger.Warn("reconcile: empty input",
			"source", in.Source.Table.FullID(), "target", in.Target.Table.FullID(), "warning", w.Error())
	}

	var (
		schema SchemaResult
		rows   RowResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		schema, err = CompareSchemas(in.Source.Columns, in.Target.Columns, SchemaOptions{ColumnMapping: in.ColumnMapping})
		return err
	})
	g.Go(func() error {
		var err error
		rows, err = CompareRows(gctx, in.Source, in.Target, RowOptions{
			KeyColumns:    in.KeyColumns,
			ColumnMapping: in.ColumnMapping,
			KnownDiffs:    in.KnownDiffs,
			Workers:       e.Workers,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		logger.Error("reconcile: comparison failed",
			"source", in.Source.Table.FullID(), "target", in.Target.Table.FullID(), "error", err)
		failSpan(span, err)
		return Result{}, err
	}

	report, err := BuildReport(e.Clock, in.Source.Table, in.Target.Table, schema, rows, ColumnMatches(rows))
	if err != nil {
		logger.Error("reconcile: report rejected", "source", in.Source.Table.FullID(), "error", err)
		failSpan(span, err)
		return Result{}, err
	}

	span.SetAttributes(
		attribute.Int("audit.rows_in_common", report.RowSummary.InCommon),
		attribute.Int("audit.warnings", len(warnings)),
	)
	if e.Metrics != nil {
		e.Metrics.RecordReconciliation(ctx, report, time.Since(start))
	}
	logger.Info("reconcile: report built",
		"source", report.SourceTable,
		"target", report.TargetTable,
		"rows_in_common", report.RowSummary.InCommon,
		"rows_source_only", report.RowSummary.SourceOnly,
		"rows_target_only", report.RowSummary.TargetOnly,
		"schema_differences", report.ColumnSummary.SchemaDifferences,
	)
	return Result{Report: report, Warnings: warnings}, nil
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
