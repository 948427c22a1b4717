// Package render prints audit reports, sweep results and report diffs as text
// tables for the command line.
package render

import (
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/gdw-platform/gdw-audit/internal/domain"
	"github.com/gdw-platform/gdw-audit/internal/reportdiff"
	"github.com/gdw-platform/gdw-audit/internal/temporal/workflows"
)

// Report writes the summary sections of r, followed by the decision when one
// is given.
func Report(w io.Writer, r domain.AuditReport, d *domain.AuditDecision) error {
	fmt.Fprintf(w, "%s -> %s  (%s)\n\n", r.SourceTable, r.TargetTable,
		r.ComparisonDate.UTC().Format("2006-01-02 15:04:05.000000Z"))

	summary := tablewriter.NewWriter(w)
	summary.Header("Metric", "Value")
	rows := [][]string{
		{"columns in common, matching schema", itoa(r.ColumnSummary.MatchingSchemas)},
		{"columns in common, schema differences", itoa(r.ColumnSummary.SchemaDifferences)},
		{"columns in source only", itoa(r.ColumnSummary.SourceOnly)},
		{"columns in target only", itoa(r.ColumnSummary.TargetOnly)},
		{"duplicate rows in source", itoa(r.RowSummary.DuplicatesInSource)},
		{"duplicate rows in target", itoa(r.RowSummary.DuplicatesInTarget)},
		{"rows in source only", itoa(r.RowSummary.SourceOnly)},
		{"rows in target only", itoa(r.RowSummary.TargetOnly)},
		{"rows in common", itoa(r.RowSummary.InCommon)},
		{"rows with all columns equal", itoa(r.RowComparison.AllColumnsEqual)},
		{"rows with some columns unequal", itoa(r.RowComparison.SomeColumnsUnequal)},
	}
	if err := summary.Bulk(rows); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	if err := summary.Render(); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}

	if len(r.RowMatchSummary) > 0 {
		fmt.Fprintln(w)
		matches := tablewriter.NewWriter(w)
		matches.Header("Source column", "Target column", "Match rate", "Matches", "Mismatches", "Known diffs")
		for _, m := range r.RowMatchSummary {
			if err := matches.Append([]string{
				m.SourceColumnName + " (" + m.SourceDataType + ")",
				m.TargetColumnName + " (" + m.TargetDataType + ")",
				strconv.FormatFloat(m.MatchRate, 'f', 4, 64),
				itoa(m.Matches),
				itoa(m.Mismatches),
				itoa(m.KnownDiffs),
			}); err != nil {
				return fmt.Errorf("render column matches: %w", err)
			}
		}
		if err := matches.Render(); err != nil {
			return fmt.Errorf("render column matches: %w", err)
		}
	}

	if len(r.SchemaDifferences) > 0 {
		fmt.Fprintln(w)
		diffs := tablewriter.NewWriter(w)
		diffs.Header("Source column", "Source type", "Target column", "Target type")
		for _, s := range r.SchemaDifferences {
			if err := diffs.Append([]string{s.SourceColumnName, s.SourceDataType, s.TargetColumnName, s.TargetDataType}); err != nil {
				return fmt.Errorf("render schema differences: %w", err)
			}
		}
		if err := diffs.Render(); err != nil {
			return fmt.Errorf("render schema differences: %w", err)
		}
	}

	if d != nil {
		fmt.Fprintf(w, "\nverdict: %s  %s\n", d.Verdict, d.Details)
		for _, reason := range d.Reasons {
			fmt.Fprintf(w, "  - %s\n", reason)
		}
	}
	return nil
}

// Sweep writes one row per audited table, sorted by name, and the totals.
func Sweep(w io.Writer, res workflows.SweepResult) error {
	names := make([]string, 0, len(res.Verdicts))
	for name := range res.Verdicts {
		names = append(names, name)
	}
	slices.Sort(names)

	table := tablewriter.NewWriter(w)
	table.Header("Table", "Verdict")
	for _, name := range names {
		v := string(res.Verdicts[name])
		if v == "" {
			v = "error"
		}
		if err := table.Append([]string{name, v}); err != nil {
			return fmt.Errorf("render sweep: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render sweep: %w", err)
	}

	fmt.Fprintf(w, "\naudited %d: %d pass, %d warn, %d fail, %d errored (worst: %s)\n",
		res.TablesAudited, res.Passed, res.Warned, res.Failed, res.Errored, res.Worst())
	return nil
}

// Diff writes the divergent sections of a report comparison.
func Diff(w io.Writer, res *reportdiff.Result) error {
	table := tablewriter.NewWriter(w)
	table.Header("Section", "Match")
	for _, s := range res.Sections {
		mark := "yes"
		if !s.Match {
			mark = "NO"
		}
		if err := table.Append([]string{s.Section, mark}); err != nil {
			return fmt.Errorf("render diff: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render diff: %w", err)
	}

	fmt.Fprintf(w, "\n%s\n", res.Summary)
	for _, s := range res.Sections {
		if !s.Match {
			fmt.Fprintf(w, "\n[%s]\n%s\n", s.Section, s.DiffLines)
		}
	}
	return nil
}

func itoa(n int) string { return strconv.Itoa(n) }
