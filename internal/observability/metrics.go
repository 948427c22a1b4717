package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/gdw-platform/gdw-audit/internal/domain"
)

// Metrics holds OTel metric instruments for table audits.
type Metrics struct {
	Reports         metric.Int64Counter
	RowsCompared    metric.Int64Counter
	CellsMismatched metric.Int64Counter
	ActivityCalls   metric.Int64Counter
	Duration        metric.Float64Histogram
}

// NewMetrics creates the audit metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("gdw-audit")

	reports, err := meter.Int64Counter("audit.reports",
		metric.WithDescription("Number of audit reports built"),
	)
	if err != nil {
		return nil, err
	}

	rowsCompared, err := meter.Int64Counter("audit.rows.compared",
		metric.WithDescription("Rows in common compared column by column"),
	)
	if err != nil {
		return nil, err
	}

	cellsMismatched, err := meter.Int64Counter("audit.cells.mismatched",
		metric.WithDescription("Cells that differ between source and target"),
	)
	if err != nil {
		return nil, err
	}

	activityCalls, err := meter.Int64Counter("audit.activity.calls",
		metric.WithDescription("Number of activity invocations"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("audit.duration_seconds",
		metric.WithDescription("Time spent reconciling one table pair"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		Reports:         reports,
		RowsCompared:    rowsCompared,
		CellsMismatched: cellsMismatched,
		ActivityCalls:   activityCalls,
		Duration:        duration,
	}, nil
}

// RecordReconciliation records one built report.
func (m *Metrics) RecordReconciliation(ctx context.Context, r domain.AuditReport, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("target_table", r.TargetTable))

	var mismatched int64
	for _, c := range r.RowMatchSummary {
		mismatched += int64(c.Mismatches)
	}
	m.Reports.Add(ctx, 1, attrs)
	m.RowsCompared.Add(ctx, int64(r.RowSummary.InCommon), attrs)
	m.CellsMismatched.Add(ctx, mismatched, attrs)
	m.Duration.Record(ctx, d.Seconds(), attrs)
}

// RecordActivity records an activity invocation.
func (m *Metrics) RecordActivity(ctx context.Context, name string) {
	m.ActivityCalls.Add(ctx, 1,
		metric.WithAttributes(attribute.String("activity", name)),
	)
}
