package domain

import (
	"fmt"
	"strings"
	"time"
)

// TableDescriptor identifies a table taking part in a comparison.
type TableDescriptor struct {
	Environment Environment `json:"environment"`
	ProjectID   string      `json:"project_id"`
	DatasetID   string      `json:"dataset_id"`
	TableName   string      `json:"table_name"`
	TableType   TableType   `json:"table_type"`
}

// FullID returns the dotted project.dataset.table identifier used in reports.
func (t TableDescriptor) FullID() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{t.ProjectID, t.DatasetID, t.TableName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

func (t TableDescriptor) String() string {
	return fmt.Sprintf("%s:%s", t.Environment, t.FullID())
}

// ColumnDescriptor is a column name and its declared type.
type ColumnDescriptor struct {
	Name     string `json:"column_name"`
	DataType string `json:"dtype"`
}

func (c ColumnDescriptor) String() string {
	return c.Name + ":" + c.DataType
}

// TableData is one side of a comparison: the descriptor, the ordered column list and
// the materialized rows. Each row holds one value per column, in column order.
type TableData struct {
	Table   TableDescriptor    `json:"table"`
	Columns []ColumnDescriptor `json:"columns"`
	Rows    [][]any            `json:"rows"`
}

// ColumnSummary aggregates the column-level comparison.
type ColumnSummary struct {
	MatchingSchemas   int `json:"number_of_columns_in_common_with_matching_schemas"`
	SchemaDifferences int `json:"number_of_columns_in_common_with_schema_differences"`
	SourceOnly        int `json:"number_of_columns_in_source_but_not_in_target"`
	TargetOnly        int `json:"number_of_columns_in_target_but_not_in_source"`
}

// RowSummary aggregates the row-level set comparison.
type RowSummary struct {
	DuplicatesInSource int `json:"number_of_duplicate_rows_in_source"`
	DuplicatesInTarget int `json:"number_of_duplicate_rows_in_target"`
	SourceOnly         int `json:"number_of_rows_in_source_but_not_in_target"`
	TargetOnly         int `json:"number_of_rows_in_target_but_not_in_source"`
	InCommon           int `json:"number_of_rows_in_common"`
}

// RowComparison classifies the rows in common.
type RowComparison struct {
	AllColumnsEqual    int `json:"number_of_rows_with_all_columns_equal"`
	SomeColumnsUnequal int `json:"number_of_rows_with_some_columns_unequal"`
}

// ColumnMatch is the match-rate breakdown for one compared column pair.
type ColumnMatch struct {
	SourceColumnName string  `json:"source_column_name"`
	SourceDataType   string  `json:"source_dtype"`
	TargetColumnName string  `json:"target_column_name"`
	TargetDataType   string  `json:"target_dtype"`
	MatchRate        float64 `json:"match_rate"`
	KnownDiffs       int     `json:"number_of_known_diffs"`
	Matches          int     `json:"number_of_matches"`
	Mismatches       int     `json:"number_of_mismatches"`
}

// SchemaDiffEntry records a paired column whose declared types disagree.
type SchemaDiffEntry struct {
	SourceColumnName string `json:"source_column_name"`
	SourceDataType   string `json:"source_dtype"`
	TargetColumnName string `json:"target_column_name"`
	TargetDataType   string `json:"target_dtype"`
}

// AuditReport is one gdw_tables_auditing record. It is built once per comparison
// and never mutated afterwards.
type AuditReport struct {
	ComparisonDate    time.Time          `json:"comparison_date"`
	SourceTable       string             `json:"source_table"`
	TargetTable       string             `json:"target_table"`
	ColumnSummary     ColumnSummary      `json:"column_summary"`
	SourceOnlyColumns []ColumnDescriptor `json:"columns_in_source_only"`
	TargetOnlyColumns []ColumnDescriptor `json:"columns_in_target_only"`
	RowSummary        RowSummary         `json:"row_summary"`
	RowComparison     RowComparison      `json:"row_comparison"`
	RowMatchSummary   []ColumnMatch      `json:"row_match_summary"`
	SchemaDifferences []SchemaDiffEntry  `json:"schema_differences"`
}

// AuditDecision is the policy outcome attached to a report by the orchestration layer.
type AuditDecision struct {
	Verdict Verdict  `json:"verdict"`
	Details string   `json:"details"`
	Reasons []string `json:"reasons,omitempty"`
}

// ValuePair is an accepted source/target value substitution, in canonical form.
type ValuePair struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// KnownDiffRule lists differences on one target column that are expected and
// counted as known diffs instead of mismatches.
type KnownDiffRule struct {
	Column          string      `json:"column" yaml:"column"`
	Pairs           []ValuePair `json:"pairs,omitempty" yaml:"pairs"`
	NullEqualsEmpty bool        `json:"null_equals_empty,omitempty" yaml:"null_equals_empty"`
}

// Thresholds bound what a report may show before its verdict degrades.
type Thresholds struct {
	// Columns below WarnMatchRate warn; below MinMatchRate fail.
	MinMatchRate  float64 `json:"min_match_rate" yaml:"min_match_rate"`
	WarnMatchRate float64 `json:"warn_match_rate" yaml:"warn_match_rate"`
	// One-sided rows tolerated per side before failing.
	MaxRowsOnly   int `json:"max_rows_only" yaml:"max_rows_only"`
	MaxDuplicates int `json:"max_duplicates" yaml:"max_duplicates"`
	// Schema drift downgrades to a warning when allowed, otherwise fails.
	AllowSchemaDifferences bool `json:"allow_schema_differences" yaml:"allow_schema_differences"`
	AllowColumnDrift       bool `json:"allow_column_drift" yaml:"allow_column_drift"`
}

// DefaultThresholds is strict: any drift warns or fails.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinMatchRate:  0.99,
		WarnMatchRate: 1.0,
	}
}

// Key is the object path a report is stored under: day partition, table pair,
// then the comparison time of day.
func (r AuditReport) Key() string {
	ts := r.ComparisonDate.UTC()
	return fmt.Sprintf("%s/%s__%s__%s.json",
		ts.Format("2006-01-02"), r.SourceTable, r.TargetTable, ts.Format("150405.000000"))
}
