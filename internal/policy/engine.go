// Package policy implements the deterministic verdict engine that grades an
// audit report against per-table thresholds, and the gate that refuses to
// publish a report whose counts do not add up.
package policy

import (
	"fmt"

	"github.com/gdw-platform/gdw-audit/internal/domain"
)

// Evaluator grades reports against a fixed set of thresholds.
type Evaluator struct {
	Thresholds domain.Thresholds
}

// NewEvaluator returns an evaluator using the given thresholds.
func NewEvaluator(t domain.Thresholds) *Evaluator {
	return &Evaluator{Thresholds: t}
}

type finding struct {
	verdict domain.Verdict
	reason  string
}

// Evaluate returns the worst verdict over all rules, with one reason per finding.
//
// Rules:
//  1. Type differences on common columns fail, or warn when allowed.
//  2. One-sided columns fail, or warn when column drift is allowed.
//  3. One-sided rows above MaxRowsOnly fail; fewer but non-zero warn.
//  4. Duplicates above MaxDuplicates fail; fewer but non-zero warn.
//  5. A column below MinMatchRate fails; below WarnMatchRate warns.
//  6. A report with no rows in common and no rows at all warns.
func (e *Evaluator) Evaluate(r domain.AuditReport) domain.AuditDecision {
	th := e.Thresholds
	var findings []finding
	add := func(v domain.Verdict, format string, args ...any) {
		findings = append(findings, finding{verdict: v, reason: fmt.Sprintf(format, args...)})
	}
	tolerated := func(allowed bool) domain.Verdict {
		if allowed {
			return domain.VerdictWarn
		}
		return domain.VerdictFail
	}

	if n := r.ColumnSummary.SchemaDifferences; n > 0 {
		add(tolerated(th.AllowSchemaDifferences), "%d column(s) differ in type", n)
	}
	if n := r.ColumnSummary.SourceOnly; n > 0 {
		add(tolerated(th.AllowColumnDrift), "%d column(s) only in source", n)
	}
	if n := r.ColumnSummary.TargetOnly; n > 0 {
		add(tolerated(th.AllowColumnDrift), "%d column(s) only in target", n)
	}

	limit := func(n, max int, what string) {
		switch {
		case n > max:
			add(domain.VerdictFail, "%d %s (max %d)", n, what, max)
		case n > 0:
			add(domain.VerdictWarn, "%d %s", n, what)
		}
	}
	limit(r.RowSummary.SourceOnly, th.MaxRowsOnly, "row(s) only in source")
	limit(r.RowSummary.TargetOnly, th.MaxRowsOnly, "row(s) only in target")
	limit(r.RowSummary.DuplicatesInSource, th.MaxDuplicates, "duplicate row(s) in source")
	limit(r.RowSummary.DuplicatesInTarget, th.MaxDuplicates, "duplicate row(s) in target")

	for _, m := range r.RowMatchSummary {
		switch {
		case m.MatchRate < th.MinMatchRate:
			add(domain.VerdictFail, "column %s match rate %.4f below %.4f", m.SourceColumnName, m.MatchRate, th.MinMatchRate)
		case m.MatchRate < th.WarnMatchRate:
			add(domain.VerdictWarn, "column %s match rate %.4f below %.4f", m.SourceColumnName, m.MatchRate, th.WarnMatchRate)
		}
	}

	rs := r.RowSummary
	if rs.InCommon == 0 && rs.SourceOnly == 0 && rs.TargetOnly == 0 {
		add(domain.VerdictWarn, "no rows compared")
	}

	verdict := domain.VerdictPass
	reasons := make([]string, 0, len(findings))
	for _, f := range findings {
		verdict = domain.Worse(verdict, f.verdict)
		reasons = append(reasons, fmt.Sprintf("%s: %s", f.verdict, f.reason))
	}

	details := "all checks within thresholds"
	if len(findings) > 0 {
		details = fmt.Sprintf("%d finding(s); worst=%s", len(findings), verdict)
	}
	return domain.AuditDecision{Verdict: verdict, Details: details, Reasons: reasons}
}

// EnforcePublishable is a hard gate invoked before a report is written to any
// sink. It re-checks the count invariants so a corrupted report never lands in
// gdw_tables_auditing.
func EnforcePublishable(r domain.AuditReport) error {
	if r.SourceTable == "" || r.TargetTable == "" {
		return fmt.Errorf("refuse to publish: report has no table identity")
	}
	if r.ComparisonDate.IsZero() {
		return fmt.Errorf("refuse to publish: report has no comparison_date")
	}
	cs := r.ColumnSummary
	if cs.SourceOnly != len(r.SourceOnlyColumns) || cs.TargetOnly != len(r.TargetOnlyColumns) ||
		cs.SchemaDifferences != len(r.SchemaDifferences) {
		return fmt.Errorf("refuse to publish %s: column_summary disagrees with column lists", r.TargetTable)
	}
	if r.RowSummary.InCommon != r.RowComparison.AllColumnsEqual+r.RowComparison.SomeColumnsUnequal {
		return fmt.Errorf("refuse to publish %s: rows in common disagree with row_comparison", r.TargetTable)
	}
	for _, m := range r.RowMatchSummary {
		if err := domain.ValidateColumnMatch(m); err != nil {
			return fmt.Errorf("refuse to publish %s: %w", r.TargetTable, err)
		}
	}
	return nil
}
