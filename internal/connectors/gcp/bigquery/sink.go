package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/gdw-platform/gdw-audit/internal/domain"
)

const comparisonDateLayout = "2006-01-02 15:04:05.999999"

var (
	columnSchema = bigquery.Schema{
		{Name: "column_name", Type: bigquery.StringFieldType},
		{Name: "dtype", Type: bigquery.StringFieldType},
	}
	pairSchema = bigquery.Schema{
		{Name: "source_column_name", Type: bigquery.StringFieldType},
		{Name: "source_dtype", Type: bigquery.StringFieldType},
		{Name: "target_column_name", Type: bigquery.StringFieldType},
		{Name: "target_dtype", Type: bigquery.StringFieldType},
	}
)

// AuditSchema is the gdw_tables_auditing table layout.
var AuditSchema = bigquery.Schema{
	{Name: "comparison_date", Type: bigquery.DateTimeFieldType, Required: true},
	{Name: "source_table", Type: bigquery.StringFieldType, Required: true},
	{Name: "target_table", Type: bigquery.StringFieldType, Required: true},
	{Name: "column_summary", Type: bigquery.RecordFieldType, Schema: bigquery.Schema{
		{Name: "number_of_columns_in_common_with_matching_schemas", Type: bigquery.IntegerFieldType},
		{Name: "number_of_columns_in_common_with_schema_differences", Type: bigquery.IntegerFieldType},
		{Name: "number_of_columns_in_source_but_not_in_target", Type: bigquery.IntegerFieldType},
		{Name: "number_of_columns_in_target_but_not_in_source", Type: bigquery.IntegerFieldType},
	}},
	{Name: "columns_in_source_only", Type: bigquery.RecordFieldType, Repeated: true, Schema: columnSchema},
	{Name: "columns_in_target_only", Type: bigquery.RecordFieldType, Repeated: true, Schema: columnSchema},
	{Name: "row_summary", Type: bigquery.RecordFieldType, Schema: bigquery.Schema{
		{Name: "number_of_duplicate_rows_in_source", Type: bigquery.IntegerFieldType},
		{Name: "number_of_duplicate_rows_in_target", Type: bigquery.IntegerFieldType},
		{Name: "number_of_rows_in_source_but_not_in_target", Type: bigquery.IntegerFieldType},
		{Name: "number_of_rows_in_target_but_not_in_source", Type: bigquery.IntegerFieldType},
		{Name: "number_of_rows_in_common", Type: bigquery.IntegerFieldType},
	}},
	{Name: "row_comparison", Type: bigquery.RecordFieldType, Schema: bigquery.Schema{
		{Name: "number_of_rows_with_all_columns_equal", Type: bigquery.IntegerFieldType},
		{Name: "number_of_rows_with_some_columns_unequal", Type: bigquery.IntegerFieldType},
	}},
	{Name: "row_match_summary", Type: bigquery.RecordFieldType, Repeated: true, Schema: append(append(bigquery.Schema{}, pairSchema...),
		&bigquery.FieldSchema{Name: "match_rate", Type: bigquery.FloatFieldType},
		&bigquery.FieldSchema{Name: "number_of_known_diffs", Type: bigquery.IntegerFieldType},
		&bigquery.FieldSchema{Name: "number_of_matches", Type: bigquery.IntegerFieldType},
		&bigquery.FieldSchema{Name: "number_of_mismatches", Type: bigquery.IntegerFieldType},
	)},
	{Name: "schema_differences", Type: bigquery.RecordFieldType, Repeated: true, Schema: pairSchema},
}

// Putter streams rows into a table. *bigquery.Inserter satisfies it.
type Putter interface {
	Put(ctx context.Context, src any) error
}

// Sink appends audit reports to gdw_tables_auditing.
type Sink struct {
	table *bigquery.Table
	put   Putter
}

// NewSink writes to dataset.table in the client's project.
func NewSink(client *bigquery.Client, dataset, table string) *Sink {
	t := client.Dataset(dataset).Table(table)
	return &Sink{table: t, put: t.Inserter()}
}

// NewSinkFromPutter creates a Sink without a backing table (for testing).
func NewSinkFromPutter(p Putter) *Sink {
	return &Sink{put: p}
}

// EnsureTable creates the audit table, partitioned by day on comparison_date,
// when it does not exist yet.
func (s *Sink) EnsureTable(ctx context.Context) error {
	if s.table == nil {
		return nil
	}
	_, err := s.table.Metadata(ctx)
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Code != http.StatusNotFound {
		return fmt.Errorf("bigquery: audit table metadata: %w", err)
	}
	err = s.table.Create(ctx, &bigquery.TableMetadata{
		Schema: AuditSchema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: "comparison_date",
		},
		Description: "Source/target table reconciliation reports",
	})
	if err != nil {
		return fmt.Errorf("bigquery: create audit table: %w", err)
	}
	return nil
}

// Write appends one report.
func (s *Sink) Write(ctx context.Context, report domain.AuditReport) error {
	if err := s.put.Put(ctx, reportRow{report}); err != nil {
		return fmt.Errorf("bigquery: insert report %s -> %s: %w", report.SourceTable, report.TargetTable, err)
	}
	return nil
}

type reportRow struct {
	r domain.AuditReport
}

// Save implements bigquery.ValueSaver. The insert id makes retried inserts of
// the same report idempotent within the streaming dedupe window.
func (row reportRow) Save() (map[string]bigquery.Value, string, error) {
	r := row.r
	date := r.ComparisonDate.UTC().Format(comparisonDateLayout)
	values := map[string]bigquery.Value{
		"comparison_date": date,
		"source_table":    r.SourceTable,
		"target_table":    r.TargetTable,
		"column_summary": map[string]bigquery.Value{
			"number_of_columns_in_common_with_matching_schemas":   r.ColumnSummary.MatchingSchemas,
			"number_of_columns_in_common_with_schema_differences": r.ColumnSummary.SchemaDifferences,
			"number_of_columns_in_source_but_not_in_target":       r.ColumnSummary.SourceOnly,
			"number_of_columns_in_target_but_not_in_source":       r.ColumnSummary.TargetOnly,
		},
		"columns_in_source_only": columnValues(r.SourceOnlyColumns),
		"columns_in_target_only": columnValues(r.TargetOnlyColumns),
		"row_summary": map[string]bigquery.Value{
			"number_of_duplicate_rows_in_source":         r.RowSummary.DuplicatesInSource,
			"number_of_duplicate_rows_in_target":         r.RowSummary.DuplicatesInTarget,
			"number_of_rows_in_source_but_not_in_target": r.RowSummary.SourceOnly,
			"number_of_rows_in_target_but_not_in_source": r.RowSummary.TargetOnly,
			"number_of_rows_in_common":                   r.RowSummary.InCommon,
		},
		"row_comparison": map[string]bigquery.Value{
			"number_of_rows_with_all_columns_equal":    r.RowComparison.AllColumnsEqual,
			"number_of_rows_with_some_columns_unequal": r.RowComparison.SomeColumnsUnequal,
		},
		"row_match_summary":  matchValues(r.RowMatchSummary),
		"schema_differences": diffValues(r.SchemaDifferences),
	}
	return values, r.SourceTable + "|" + r.TargetTable + "|" + date, nil
}

func columnValues(cols []domain.ColumnDescriptor) []bigquery.Value {
	out := make([]bigquery.Value, len(cols))
	for i, c := range cols {
		out[i] = map[string]bigquery.Value{"column_name": c.Name, "dtype": c.DataType}
	}
	return out
}

func pairValues(srcName, srcType, tgtName, tgtType string) map[string]bigquery.Value {
	return map[string]bigquery.Value{
		"source_column_name": srcName,
		"source_dtype":       srcType,
		"target_column_name": tgtName,
		"target_dtype":       tgtType,
	}
}

func matchValues(ms []domain.ColumnMatch) []bigquery.Value {
	out := make([]bigquery.Value, len(ms))
	for i, m := range ms {
		v := pairValues(m.SourceColumnName, m.SourceDataType, m.TargetColumnName, m.TargetDataType)
		v["match_rate"] = m.MatchRate
		v["number_of_known_diffs"] = m.KnownDiffs
		v["number_of_matches"] = m.Matches
		v["number_of_mismatches"] = m.Mismatches
		out[i] = v
	}
	return out
}

func diffValues(ds []domain.SchemaDiffEntry) []bigquery.Value {
	out := make([]bigquery.Value, len(ds))
	for i, d := range ds {
		out[i] = pairValues(d.SourceColumnName, d.SourceDataType, d.TargetColumnName, d.TargetDataType)
	}
	return out
}
