// Package sqlquery renders the SELECT statements warehouse connectors run to
// materialize a table. Every identifier and literal is validated first; the
// where clause is trusted registry input and is only checked for statement
// separators.
package sqlquery

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gdw-platform/gdw-audit/internal/domain"
)

var (
	identPattern = regexp.MustCompile(`^[A-Za-z0-9_\-$]+$`)
	fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	boundPattern = regexp.MustCompile(`^[A-Za-z0-9_\-:. ]+$`)
	numberBound  = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)
)

// Dialect describes how a warehouse quotes identifiers and names tables.
type Dialect struct {
	Name string
	// Table renders the fully qualified, quoted table reference.
	Table func(t domain.TableDescriptor) string
}

// BigQuery quotes the whole project.dataset.table path in backticks.
var BigQuery = Dialect{
	Name: "bigquery",
	Table: func(t domain.TableDescriptor) string {
		return "`" + t.FullID() + "`"
	},
}

// ANSI double-quotes each path element. Athena (Trino), Postgres and DuckDB use it.
// The project is omitted: these engines address tables as schema.table.
var ANSI = Dialect{
	Name: "ansi",
	Table: func(t domain.TableDescriptor) string {
		if t.DatasetID == "" {
			return quote(t.TableName)
		}
		return quote(t.DatasetID) + "." + quote(t.TableName)
	},
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// Select renders the statement that materializes req.Table.
func Select(d Dialect, req domain.FetchRequest) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(d.Table(req.Table))

	var conds []string
	if w := strings.TrimSpace(req.Where); w != "" {
		conds = append(conds, "("+w+")")
	}
	if p := req.Partition; p != nil {
		if p.Min != "" {
			conds = append(conds, fmt.Sprintf("%s >= %s", p.Field, literal(p.Min)))
		}
		if p.Max != "" {
			conds = append(conds, fmt.Sprintf("%s <= %s", p.Field, literal(p.Max)))
		}
	}
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	if req.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", req.Limit)
	}
	return b.String(), nil
}

// literal renders a validated partition bound. Numeric bounds stay bare so
// integer-range partitions compare as numbers; dates and timestamps are quoted.
func literal(bound string) string {
	if numberBound.MatchString(bound) {
		return bound
	}
	return "'" + bound + "'"
}

func validate(req domain.FetchRequest) error {
	t := req.Table
	if !identPattern.MatchString(t.TableName) {
		return fmt.Errorf("sqlquery: invalid table name %q", t.TableName)
	}
	for _, id := range []string{t.ProjectID, t.DatasetID} {
		if id != "" && !identPattern.MatchString(id) {
			return fmt.Errorf("sqlquery: invalid identifier %q", id)
		}
	}
	if strings.Contains(req.Where, ";") || strings.Contains(req.Where, "--") {
		return fmt.Errorf("sqlquery: where clause must be a single expression")
	}
	if p := req.Partition; p != nil {
		if !fieldPattern.MatchString(p.Field) {
			return fmt.Errorf("sqlquery: invalid partition field %q", p.Field)
		}
		for _, v := range []string{p.Min, p.Max} {
			if v != "" && !boundPattern.MatchString(v) {
				return fmt.Errorf("sqlquery: invalid partition bound %q", v)
			}
		}
	}
	if req.Limit < 0 {
		return fmt.Errorf("sqlquery: negative limit %d", req.Limit)
	}
	return nil
}
