package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gdw-platform/gdw-audit/internal/domain"
)

// SchemaOptions tunes column pairing.
type SchemaOptions struct {
	// ColumnMapping renames source columns to target columns (source name -> target name).
	ColumnMapping map[string]string
}

// ColumnPair is one source column matched to one target column.
type ColumnPair struct {
	Source      domain.ColumnDescriptor
	Target      domain.ColumnDescriptor
	SourceIndex int
	TargetIndex int
}

// TypesMatch reports whether both sides declare the same normalized type.
func (p ColumnPair) TypesMatch() bool {
	return NormalizeType(p.Source.DataType) == NormalizeType(p.Target.DataType)
}

// SchemaResult is the output of CompareSchemas.
type SchemaResult struct {
	Summary     domain.ColumnSummary
	SourceOnly  []domain.ColumnDescriptor
	TargetOnly  []domain.ColumnDescriptor
	Differences []domain.SchemaDiffEntry
	Matched     []ColumnPair
}

var typeAliases = map[string]string{
	"INTEGER":                  "INT64",
	"INT":                      "INT64",
	"SMALLINT":                 "INT64",
	"BIGINT":                   "INT64",
	"TINYINT":                  "INT64",
	"BYTEINT":                  "INT64",
	"INT2":                     "INT64",
	"INT4":                     "INT64",
	"INT8":                     "INT64",
	"FLOAT":                    "FLOAT64",
	"FLOAT4":                   "FLOAT64",
	"FLOAT8":                   "FLOAT64",
	"DOUBLE":                   "FLOAT64",
	"DOUBLE PRECISION":         "FLOAT64",
	"REAL":                     "FLOAT64",
	"BOOLEAN":                  "BOOL",
	"DECIMAL":                  "NUMERIC",
	"BIGDECIMAL":               "BIGNUMERIC",
	"VARCHAR":                  "STRING",
	"CHAR":                     "STRING",
	"TEXT":                     "STRING",
	"CHARACTER VARYING":        "STRING",
	"BYTEA":                    "BYTES",
	"VARBINARY":                "BYTES",
	"BLOB":                     "BYTES",
	"TIMESTAMPTZ":              "TIMESTAMP",
	"TIMESTAMP WITH TIME ZONE": "TIMESTAMP",
	"RECORD":                   "STRUCT",
}

// NormalizeType upper-cases a declared type and folds legacy BigQuery and
// Postgres/Trino spellings onto the GoogleSQL names.
func NormalizeType(t string) string {
	u := strings.ToUpper(strings.TrimSpace(t))
	if alias, ok := typeAliases[u]; ok {
		return alias
	}
	return u
}

// CompareSchemas diffs two column sets by name and declared type.
func CompareSchemas(source, target []domain.ColumnDescriptor, opts SchemaOptions) (SchemaResult, error) {
	pairs, srcOnly, tgtOnly, err := pairColumns(source, target, opts.ColumnMapping)
	if err != nil {
		return SchemaResult{}, err
	}

	res := SchemaResult{
		SourceOnly:  make([]domain.ColumnDescriptor, 0, len(srcOnly)),
		TargetOnly:  make([]domain.ColumnDescriptor, 0, len(tgtOnly)),
		Differences: []domain.SchemaDiffEntry{},
		Matched:     pairs,
	}
	for _, i := range srcOnly {
		res.SourceOnly = append(res.SourceOnly, source[i])
	}
	for _, i := range tgtOnly {
		res.TargetOnly = append(res.TargetOnly, target[i])
	}
	sortColumns(res.SourceOnly)
	sortColumns(res.TargetOnly)

	for _, p := range pairs {
		if p.TypesMatch() {
			res.Summary.MatchingSchemas++
			continue
		}
		res.Differences = append(res.Differences, domain.SchemaDiffEntry{
			SourceColumnName: p.Source.Name,
			SourceDataType:   p.Source.DataType,
			TargetColumnName: p.Target.Name,
			TargetDataType:   p.Target.DataType,
		})
	}
	res.Summary.SchemaDifferences = len(res.Differences)
	res.Summary.SourceOnly = len(res.SourceOnly)
	res.Summary.TargetOnly = len(res.TargetOnly)
	return res, nil
}

// pairColumns matches source columns to target columns. Mapped columns are
// claimed first; an unmapped source column whose name is already claimed by a
// mapping stays source-only. Pairs come back sorted by source column name.
func pairColumns(source, target []domain.ColumnDescriptor, mapping map[string]string) ([]ColumnPair, []int, []int, error) {
	srcIdx, err := indexColumns(domain.SideSource, source)
	if err != nil {
		return nil, nil, nil, err
	}
	tgtIdx, err := indexColumns(domain.SideTarget, target)
	if err != nil {
		return nil, nil, nil, err
	}

	lowerMapping, err := foldMapping(mapping)
	if err != nil {
		return nil, nil, nil, err
	}

	claimed := make(map[int]bool, len(target))
	paired := make(map[int]bool, len(source))
	var pairs []ColumnPair

	for from, to := range lowerMapping {
		si, ok := srcIdx[from]
		if !ok {
			continue
		}
		ti, ok := tgtIdx[to]
		if !ok {
			continue
		}
		if claimed[ti] {
			return nil, nil, nil, &domain.SchemaConflictError{
				Side:   domain.SideTarget,
				Column: target[ti].Name,
				Reason: "column mapping targets the column more than once",
			}
		}
		claimed[ti] = true
		paired[si] = true
		pairs = append(pairs, ColumnPair{Source: source[si], Target: target[ti], SourceIndex: si, TargetIndex: ti})
	}

	for si, c := range source {
		if paired[si] {
			continue
		}
		if _, mapped := lowerMapping[strings.ToLower(c.Name)]; mapped {
			continue
		}
		ti, ok := tgtIdx[strings.ToLower(c.Name)]
		if !ok || claimed[ti] {
			continue
		}
		claimed[ti] = true
		paired[si] = true
		pairs = append(pairs, ColumnPair{Source: c, Target: target[ti], SourceIndex: si, TargetIndex: ti})
	}

	var srcOnly, tgtOnly []int
	for i := range source {
		if !paired[i] {
			srcOnly = append(srcOnly, i)
		}
	}
	for i := range target {
		if !claimed[i] {
			tgtOnly = append(tgtOnly, i)
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return lessName(pairs[i].Source.Name, pairs[j].Source.Name)
	})
	return pairs, srcOnly, tgtOnly, nil
}

// foldMapping lower-cases a column mapping. Two source names that differ only
// by case would make the pairing depend on map order, so they conflict.
func foldMapping(mapping map[string]string) (map[string]string, error) {
	froms := make([]string, 0, len(mapping))
	for from := range mapping {
		froms = append(froms, from)
	}
	sort.Strings(froms)

	folded := make(map[string]string, len(mapping))
	for _, from := range froms {
		key := strings.ToLower(from)
		if _, dup := folded[key]; dup {
			return nil, &domain.SchemaConflictError{
				Side:   domain.SideSource,
				Column: from,
				Reason: "column mapping lists the column more than once ignoring case",
			}
		}
		folded[key] = strings.ToLower(mapping[from])
	}
	return folded, nil
}

func indexColumns(side domain.Side, cols []domain.ColumnDescriptor) (map[string]int, error) {
	idx := make(map[string]int, len(cols))
	for i, c := range cols {
		if strings.TrimSpace(c.Name) == "" {
			return nil, &domain.SchemaConflictError{Side: side, Reason: fmt.Sprintf("column %d has an empty name", i)}
		}
		key := strings.ToLower(c.Name)
		if prev, dup := idx[key]; dup {
			return nil, &domain.SchemaConflictError{
				Side:   side,
				Column: c.Name,
				Reason: fmt.Sprintf("duplicate column name (also declared as %q)", cols[prev].Name),
			}
		}
		idx[key] = i
	}
	return idx, nil
}

func lessName(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return a < b
}

func sortColumns(cols []domain.ColumnDescriptor) {
	sort.Slice(cols, func(i, j int) bool { return lessName(cols[i].Name, cols[j].Name) })
}
