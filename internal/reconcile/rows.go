package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/gdw-platform/gdw-audit/internal/domain"
)

// DefaultWorkers is the number of hash partitions used when RowOptions.Workers is unset.
const DefaultWorkers = 4

// RowOptions tunes row comparison.
type RowOptions struct {
	// KeyColumns names source columns forming the row identity. Empty means the
	// full row over the columns common to both tables.
	KeyColumns    []string
	ColumnMapping map[string]string
	KnownDiffs    []domain.KnownDiffRule
	Workers       int
}

// ColumnTally counts cell outcomes for one compared column over the rows in common.
type ColumnTally struct {
	Pair       ColumnPair
	Matches    int
	KnownDiffs int
	Mismatches int
}

// RowResult is the output of CompareRows.
type RowResult struct {
	Summary    domain.RowSummary
	Comparison domain.RowComparison
	Columns    []ColumnTally
}

type keyedRow struct {
	key string
	row int
}

type partitionResult struct {
	summary    domain.RowSummary
	comparison domain.RowComparison
	tallies    []ColumnTally
}

// CompareRows full-outer-joins source and target rows on their identity and
// counts duplicates, one-sided rows and per-column equality over rows in common.
// Rows are hash-partitioned by identity and partitions are compared in parallel.
func CompareRows(ctx context.Context, source, target domain.TableData, opts RowOptions) (RowResult, error) {
	if err := checkWidths(domain.SideSource, source); err != nil {
		return RowResult{}, err
	}
	if err := checkWidths(domain.SideTarget, target); err != nil {
		return RowResult{}, err
	}

	pairs, _, _, err := pairColumns(source.Columns, target.Columns, opts.ColumnMapping)
	if err != nil {
		return RowResult{}, err
	}

	if len(pairs) == 0 {
		if len(opts.KeyColumns) > 0 {
			return RowResult{}, &domain.SchemaConflictError{
				Side:   domain.SideSource,
				Column: opts.KeyColumns[0],
				Reason: "key column is not present in both tables",
			}
		}
		return disjointRows(source, target), nil
	}

	srcID, tgtID, err := identityColumns(pairs, opts.KeyColumns)
	if err != nil {
		return RowResult{}, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	srcParts := partitionRows(source.Rows, srcID, workers)
	tgtParts := partitionRows(target.Rows, tgtID, workers)
	kd := indexKnownDiffs(opts.KnownDiffs)

	results := make([]partitionResult, workers)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for p := 0; p < workers; p++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[p] = comparePartition(source.Rows, target.Rows, srcParts[p], tgtParts[p], pairs, kd)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return RowResult{}, fmt.Errorf("reconcile: compare rows: %w", err)
	}

	out := RowResult{Columns: make([]ColumnTally, len(pairs))}
	for i, p := range pairs {
		out.Columns[i].Pair = p
	}
	for _, r := range results {
		out.Summary.DuplicatesInSource += r.summary.DuplicatesInSource
		out.Summary.DuplicatesInTarget += r.summary.DuplicatesInTarget
		out.Summary.SourceOnly += r.summary.SourceOnly
		out.Summary.TargetOnly += r.summary.TargetOnly
		out.Summary.InCommon += r.summary.InCommon
		out.Comparison.AllColumnsEqual += r.comparison.AllColumnsEqual
		out.Comparison.SomeColumnsUnequal += r.comparison.SomeColumnsUnequal
		for i, t := range r.tallies {
			out.Columns[i].Matches += t.Matches
			out.Columns[i].KnownDiffs += t.KnownDiffs
			out.Columns[i].Mismatches += t.Mismatches
		}
	}
	return out, nil
}

func checkWidths(side domain.Side, td domain.TableData) error {
	for i, row := range td.Rows {
		if len(row) != len(td.Columns) {
			return &domain.SchemaConflictError{
				Side:   side,
				Reason: fmt.Sprintf("row %d has %d values, want %d", i, len(row), len(td.Columns)),
			}
		}
	}
	return nil
}

// identityColumns resolves the identity column indexes on each side.
func identityColumns(pairs []ColumnPair, keys []string) ([]int, []int, error) {
	if len(keys) == 0 {
		src := make([]int, len(pairs))
		tgt := make([]int, len(pairs))
		for i, p := range pairs {
			src[i] = p.SourceIndex
			tgt[i] = p.TargetIndex
		}
		return src, tgt, nil
	}

	bySource := make(map[string]ColumnPair, len(pairs))
	for _, p := range pairs {
		bySource[strings.ToLower(p.Source.Name)] = p
	}
	src := make([]int, 0, len(keys))
	tgt := make([]int, 0, len(keys))
	for _, k := range keys {
		p, ok := bySource[strings.ToLower(k)]
		if !ok {
			return nil, nil, &domain.SchemaConflictError{
				Side:   domain.SideSource,
				Column: k,
				Reason: "key column is not present in both tables",
			}
		}
		src = append(src, p.SourceIndex)
		tgt = append(tgt, p.TargetIndex)
	}
	return src, tgt, nil
}

func partitionRows(rows [][]any, cols []int, n int) [][]keyedRow {
	parts := make([][]keyedRow, n)
	for i, row := range rows {
		key := identityKey(row, cols)
		p := xxhash.Sum64String(key) % uint64(n)
		parts[p] = append(parts[p], keyedRow{key: key, row: i})
	}
	return parts
}

// firstOccurrence returns the first row index per identity and the excess count.
func firstOccurrence(rows []keyedRow) (map[string]int, int) {
	first := make(map[string]int, len(rows))
	for _, kr := range rows {
		if _, seen := first[kr.key]; !seen {
			first[kr.key] = kr.row
		}
	}
	return first, len(rows) - len(first)
}

func comparePartition(srcRows, tgtRows [][]any, src, tgt []keyedRow, pairs []ColumnPair, kd knownDiffs) partitionResult {
	var res partitionResult
	res.tallies = make([]ColumnTally, len(pairs))

	srcFirst, srcDup := firstOccurrence(src)
	tgtFirst, tgtDup := firstOccurrence(tgt)
	res.summary.DuplicatesInSource = srcDup
	res.summary.DuplicatesInTarget = tgtDup

	for key, si := range srcFirst {
		ti, ok := tgtFirst[key]
		if !ok {
			res.summary.SourceOnly++
			continue
		}
		res.summary.InCommon++

		equal := true
		for i, p := range pairs {
			sv := srcRows[si][p.SourceIndex]
			tv := tgtRows[ti][p.TargetIndex]
			switch {
			case valuesEqual(sv, tv):
				res.tallies[i].Matches++
			case kd.match(p.Target.Name, sv, tv):
				res.tallies[i].KnownDiffs++
			default:
				res.tallies[i].Mismatches++
				equal = false
			}
		}
		if equal {
			res.comparison.AllColumnsEqual++
		} else {
			res.comparison.SomeColumnsUnequal++
		}
	}
	for key := range tgtFirst {
		if _, ok := srcFirst[key]; !ok {
			res.summary.TargetOnly++
		}
	}
	return res
}

// disjointRows handles tables with no column in common: nothing can be joined,
// so every distinct row is one-sided.
func disjointRows(source, target domain.TableData) RowResult {
	all := func(n int) []int {
		cols := make([]int, n)
		for i := range cols {
			cols[i] = i
		}
		return cols
	}
	srcFirst, srcDup := firstOccurrence(partitionRows(source.Rows, all(len(source.Columns)), 1)[0])
	tgtFirst, tgtDup := firstOccurrence(partitionRows(target.Rows, all(len(target.Columns)), 1)[0])
	return RowResult{
		Summary: domain.RowSummary{
			DuplicatesInSource: srcDup,
			DuplicatesInTarget: tgtDup,
			SourceOnly:         len(srcFirst),
			TargetOnly:         len(tgtFirst),
		},
		Columns: []ColumnTally{},
	}
}
