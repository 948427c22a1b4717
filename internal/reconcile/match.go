package reconcile

import "github.com/gdw-platform/gdw-audit/internal/domain"

// ColumnMatches turns per-column tallies into row_match_summary entries, in
// source column name order. A column with nothing compared has a match rate of 1.
func ColumnMatches(rows RowResult) []domain.ColumnMatch {
	out := make([]domain.ColumnMatch, 0, len(rows.Columns))
	for _, t := range rows.Columns {
		out = append(out, domain.ColumnMatch{
			SourceColumnName: t.Pair.Source.Name,
			SourceDataType:   t.Pair.Source.DataType,
			TargetColumnName: t.Pair.Target.Name,
			TargetDataType:   t.Pair.Target.DataType,
			MatchRate:        domain.MatchRate(t.Matches, t.Mismatches),
			KnownDiffs:       t.KnownDiffs,
			Matches:          t.Matches,
			Mismatches:       t.Mismatches,
		})
	}
	return out
}
