// Package sqldb reads warehouse tables through database/sql. It backs the
// DuckDB platform and any other engine with a database/sql driver.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gdw-platform/gdw-audit/internal/connectors/sqlquery"
	"github.com/gdw-platform/gdw-audit/internal/domain"
)

// ValueFunc converts a driver value into a comparable one.
type ValueFunc func(v any) any

// Source materializes tables from a *sql.DB.
type Source struct {
	db      *sql.DB
	dialect sqlquery.Dialect
	convert ValueFunc
}

// NewSource wraps db. A nil convert keeps driver values as they are.
func NewSource(db *sql.DB, dialect sqlquery.Dialect, convert ValueFunc) *Source {
	if convert == nil {
		convert = func(v any) any { return v }
	}
	return &Source{db: db, dialect: dialect, convert: convert}
}

// Fetch runs SELECT * and takes column types from the driver.
func (s *Source) Fetch(ctx context.Context, req domain.FetchRequest) (domain.TableData, error) {
	query, err := sqlquery.Select(s.dialect, req)
	if err != nil {
		return domain.TableData{}, fmt.Errorf("sqldb: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return domain.TableData{}, fmt.Errorf("sqldb: query %s: %w", req.Table.FullID(), err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return domain.TableData{}, fmt.Errorf("sqldb: column types: %w", err)
	}
	cols := make([]domain.ColumnDescriptor, len(types))
	for i, ct := range types {
		cols[i] = domain.ColumnDescriptor{Name: ct.Name(), DataType: strings.ToUpper(ct.DatabaseTypeName())}
	}

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return domain.TableData{}, fmt.Errorf("sqldb: scan: %w", err)
		}
		for i, v := range vals {
			vals[i] = s.convert(v)
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return domain.TableData{}, fmt.Errorf("sqldb: iterate %s: %w", req.Table.FullID(), err)
	}

	return domain.TableData{Table: req.Table, Columns: cols, Rows: out}, nil
}
