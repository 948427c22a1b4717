package uischema

import (
	"sort"

	"github.com/gdw-platform/gdw-audit/internal/domain"
	"github.com/gdw-platform/gdw-audit/internal/temporal/workflows"
)

// auditSummary builds the always-present overview component.
func auditSummary(res workflows.AuditResult) Component {
	data := map[string]any{
		"table":       res.Table,
		"environment": string(res.Environment),
		"phase":       string(res.Phase),
		"reason":      string(res.Reason),
		"verdict":     string(res.Verdict()),
	}
	if res.Report != nil {
		data["source_table"] = res.Report.SourceTable
		data["target_table"] = res.Report.TargetTable
		data["comparison_date"] = res.Report.ComparisonDate
	}
	return Component{
		Type:       ComponentAuditSummary,
		Title:      "Audit Summary",
		Priority:   0,
		Visibility: VisibilityVisible,
		Data:       data,
	}
}

func warnings(ws []string) Component {
	return Component{
		Type:       ComponentWarnings,
		Title:      "Warnings",
		Priority:   5,
		Visibility: VisibilityVisible,
		Data:       map[string]any{"warnings": ws},
	}
}

func columnSummary(r *domain.AuditReport) Component {
	return Component{
		Type:       ComponentColumnSummary,
		Title:      "Columns",
		Priority:   10,
		Visibility: VisibilityVisible,
		Data: map[string]any{
			"matching_schemas":    r.ColumnSummary.MatchingSchemas,
			"source_only":         r.ColumnSummary.SourceOnly,
			"target_only":         r.ColumnSummary.TargetOnly,
			"schema_differences":  r.ColumnSummary.SchemaDifferences,
			"source_only_columns": r.SourceOnlyColumns,
			"target_only_columns": r.TargetOnlyColumns,
		},
	}
}

func rowSummary(r *domain.AuditReport) Component {
	return Component{
		Type:       ComponentRowSummary,
		Title:      "Rows",
		Priority:   20,
		Visibility: VisibilityVisible,
		Data: map[string]any{
			"in_common":            r.RowSummary.InCommon,
			"source_only":          r.RowSummary.SourceOnly,
			"target_only":          r.RowSummary.TargetOnly,
			"duplicates_in_source": r.RowSummary.DuplicatesInSource,
			"duplicates_in_target": r.RowSummary.DuplicatesInTarget,
			"all_columns_equal":    r.RowComparison.AllColumnsEqual,
			"some_columns_unequal": r.RowComparison.SomeColumnsUnequal,
		},
	}
}

func schemaDifferences(r *domain.AuditReport) Component {
	return Component{
		Type:       ComponentSchemaDifferences,
		Title:      "Type Differences",
		Priority:   30,
		Visibility: VisibilityVisible,
		Data:       map[string]any{"differences": r.SchemaDifferences},
	}
}

// columnMatches lists compared columns worst match rate first. The table
// starts collapsed when every column matched.
func columnMatches(r *domain.AuditReport) Component {
	rows := make([]domain.ColumnMatch, len(r.RowMatchSummary))
	copy(rows, r.RowMatchSummary)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].MatchRate < rows[j].MatchRate })

	vis := VisibilityCollapsed
	for _, m := range rows {
		if m.Mismatches > 0 {
			vis = VisibilityVisible
			break
		}
	}
	return Component{
		Type:       ComponentColumnMatches,
		Title:      "Column Match Rates",
		Priority:   40,
		Visibility: vis,
		Data:       map[string]any{"columns": rows},
	}
}

func decision(d *domain.AuditDecision) Component {
	return Component{
		Type:       ComponentDecision,
		Title:      "Verdict",
		Priority:   50,
		Visibility: VisibilityVisible,
		Data: map[string]any{
			"verdict": string(d.Verdict),
			"details": d.Details,
			"reasons": d.Reasons,
		},
	}
}

func errorPanel(res workflows.AuditResult) Component {
	return Component{
		Type:       ComponentError,
		Title:      "Audit Failed",
		Priority:   60,
		Visibility: VisibilityVisible,
		Data: map[string]any{
			"reason":  string(res.Reason),
			"message": *res.Error,
		},
	}
}
