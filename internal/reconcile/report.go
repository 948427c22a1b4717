package reconcile

import (
	"fmt"
	"time"

	"github.com/gdw-platform/gdw-audit/internal/domain"
)

// Clock returns the current time. Tests inject a fixed one.
type Clock func() time.Time

// BuildReport assembles an AuditReport from comparator outputs and checks the
// cross-field invariants before handing it out. Slices are copied so the
// report shares no memory with its inputs.
func BuildReport(clock Clock, source, target domain.TableDescriptor, schema SchemaResult, rows RowResult, matches []domain.ColumnMatch) (domain.AuditReport, error) {
	if clock == nil {
		clock = time.Now
	}
	if err := checkInvariants(schema, rows, matches); err != nil {
		return domain.AuditReport{}, err
	}

	return domain.AuditReport{
		ComparisonDate:    clock().UTC().Truncate(time.Microsecond),
		SourceTable:       source.FullID(),
		TargetTable:       target.FullID(),
		ColumnSummary:     schema.Summary,
		SourceOnlyColumns: append([]domain.ColumnDescriptor{}, schema.SourceOnly...),
		TargetOnlyColumns: append([]domain.ColumnDescriptor{}, schema.TargetOnly...),
		RowSummary:        rows.Summary,
		RowComparison:     rows.Comparison,
		RowMatchSummary:   append([]domain.ColumnMatch{}, matches...),
		SchemaDifferences: append([]domain.SchemaDiffEntry{}, schema.Differences...),
	}, nil
}

type countCheck struct {
	field     string
	want, got int
}

func checkInvariants(schema SchemaResult, rows RowResult, matches []domain.ColumnMatch) error {
	checks := []countCheck{
		{"number_of_columns_in_source_but_not_in_target", len(schema.SourceOnly), schema.Summary.SourceOnly},
		{"number_of_columns_in_target_but_not_in_source", len(schema.TargetOnly), schema.Summary.TargetOnly},
		{"number_of_columns_in_common_with_schema_differences", len(schema.Differences), schema.Summary.SchemaDifferences},
		{"number_of_rows_in_common", rows.Comparison.AllColumnsEqual + rows.Comparison.SomeColumnsUnequal, rows.Summary.InCommon},
	}
	if schema.Matched != nil {
		checks = append(checks, countCheck{"columns_in_common", len(schema.Matched), schema.Summary.MatchingSchemas + schema.Summary.SchemaDifferences})
	}
	for _, c := range checks {
		if c.want != c.got {
			return &domain.InvariantViolationError{Field: c.field, Want: c.want, Got: c.got}
		}
	}

	for i, m := range matches {
		if err := domain.ValidateColumnMatch(m); err != nil {
			return fmt.Errorf("%w: row_match_summary[%d]: %v", domain.ErrInvariantViolation, i, err)
		}
		if n := m.Matches + m.KnownDiffs + m.Mismatches; n != rows.Summary.InCommon {
			return &domain.InvariantViolationError{
				Field: fmt.Sprintf("row_match_summary[%s] compared cells", m.SourceColumnName),
				Want:  rows.Summary.InCommon,
				Got:   n,
			}
		}
	}
	return nil
}
