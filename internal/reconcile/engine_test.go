package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/gdw-platform/gdw-audit/internal/domain"
)

var fixedTime = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func testEngine() *Engine {
	e := NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	e.Clock = func() time.Time { return fixedTime }
	return e
}

func ordersInput() Input {
	src := domain.TableData{
		Table:   domain.TableDescriptor{Environment: domain.EnvTest, DatasetID: "raw", TableName: "orders", TableType: domain.TableTypeTable},
		Columns: cols("id", "INT64", "name", "STRING", "amount", "NUMERIC", "age", "INT64"),
		Rows: [][]any{
			row(1, "a", 10, 30),
			row(2, "b", 20, 40),
			row(2, "b", 20, 40),
			row(3, "c", 30, 50),
			row(4, "d", 40, 60),
			row(6, "f", 60, 70),
		},
	}
	tgt := domain.TableData{
		Table:   domain.TableDescriptor{Environment: domain.EnvTest, DatasetID: "gdw", TableName: "orders", TableType: domain.TableTypeTable},
		Columns: cols("id", "INTEGER", "name", "STRING", "amount", "FLOAT64", "email", "STRING"),
		Rows: [][]any{
			row(1, "a", 10.0, "a@x"),
			row(2, "B", 20.0, "b@x"),
			row(3, "c", 31.0, "c@x"),
			row(5, "e", 50.0, "e@x"),
			row(6, "f", 60.0, "f@x"),
		},
	}
	return Input{Source: src, Target: tgt, KeyColumns: []string{"id"}}
}

func TestReconcile_Golden(t *testing.T) {
	t.Parallel()
	res, err := testEngine().Reconcile(context.Background(), ordersInput())
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)

	got, err := json.MarshalIndent(res.Report, "", "  ")
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join("testdata", "orders_report.golden.json"))
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))
}

func TestReconcile_Idempotence(t *testing.T) {
	t.Parallel()
	in := ordersInput()
	in.Target = in.Source

	res, err := testEngine().Reconcile(context.Background(), in)
	require.NoError(t, err)

	r := res.Report
	assert.Zero(t, r.ColumnSummary.SchemaDifferences)
	assert.Empty(t, r.SourceOnlyColumns)
	assert.Empty(t, r.TargetOnlyColumns)
	assert.Zero(t, r.RowSummary.SourceOnly)
	assert.Zero(t, r.RowSummary.TargetOnly)
	assert.Equal(t, r.RowSummary.InCommon, r.RowComparison.AllColumnsEqual)
	for _, m := range r.RowMatchSummary {
		assert.Equal(t, 1.0, m.MatchRate, m.SourceColumnName)
	}
}

func TestReconcile_FullRowIdempotence(t *testing.T) {
	t.Parallel()
	in := ordersInput()
	in.Target = in.Source
	in.KeyColumns = nil

	res, err := testEngine().Reconcile(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Report.RowSummary.InCommon)
	assert.Equal(t, 1, res.Report.RowSummary.DuplicatesInSource)
	assert.Equal(t, 1, res.Report.RowSummary.DuplicatesInTarget)
}

func TestReconcile_Mirror(t *testing.T) {
	t.Parallel()
	in := ordersInput()
	ab, err := testEngine().Reconcile(context.Background(), in)
	require.NoError(t, err)

	in.Source, in.Target = in.Target, in.Source
	ba, err := testEngine().Reconcile(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, ab.Report.SourceOnlyColumns, ba.Report.TargetOnlyColumns)
	assert.Equal(t, ab.Report.TargetOnlyColumns, ba.Report.SourceOnlyColumns)
	assert.Equal(t, ab.Report.RowSummary.SourceOnly, ba.Report.RowSummary.TargetOnly)
	assert.Equal(t, ab.Report.RowSummary.DuplicatesInSource, ba.Report.RowSummary.DuplicatesInTarget)
	assert.Equal(t, ab.Report.SourceTable, ba.Report.TargetTable)
}

func TestReconcile_EmptyInput(t *testing.T) {
	t.Parallel()
	in := ordersInput()
	in.Target.Rows = nil

	res, err := testEngine().Reconcile(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.True(t, errors.Is(res.Warnings[0], domain.ErrEmptyInput))

	var w *domain.EmptyInputWarning
	require.True(t, errors.As(res.Warnings[0], &w))
	assert.Equal(t, domain.SideTarget, w.Side)

	r := res.Report
	assert.Zero(t, r.RowSummary.InCommon)
	assert.Equal(t, 5, r.RowSummary.SourceOnly)
	for _, m := range r.RowMatchSummary {
		assert.Equal(t, 1.0, m.MatchRate, "nothing compared means vacuously matched")
		assert.Zero(t, m.Matches+m.Mismatches)
	}
}

func TestReconcile_BothEmpty(t *testing.T) {
	t.Parallel()
	in := ordersInput()
	in.Source.Rows = nil
	in.Target.Rows = nil

	res, err := testEngine().Reconcile(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, res.Warnings, 2)
	assert.Equal(t, domain.RowSummary{}, res.Report.RowSummary)
}

func TestReconcile_SchemaConflictAborts(t *testing.T) {
	t.Parallel()
	in := ordersInput()
	in.Source.Columns = append(in.Source.Columns, domain.ColumnDescriptor{Name: "NAME", DataType: "STRING"})

	_, err := testEngine().Reconcile(context.Background(), in)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSchemaConflict)
}

func TestReconcile_RecordsSpan(t *testing.T) {
	t.Parallel()
	recorder := tracetest.NewSpanRecorder()
	e := testEngine()
	e.Tracer = sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")

	_, err := e.Reconcile(context.Background(), ordersInput())
	require.NoError(t, err)

	bad := ordersInput()
	bad.Source.Columns = append(bad.Source.Columns, domain.ColumnDescriptor{Name: "NAME", DataType: "STRING"})
	_, err = e.Reconcile(context.Background(), bad)
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "reconcile", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}
