// Package postgres reads warehouse tables from PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gdw-platform/gdw-audit/internal/connectors/sqlquery"
	"github.com/gdw-platform/gdw-audit/internal/domain"
)

// Querier runs a query. *pgxpool.Pool satisfies it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// NewPool opens and pings a connection pool.
func NewPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

// typeMap resolves built-in type OIDs to names.
var typeMap = pgtype.NewMap()

// Source materializes Postgres tables. The table's dataset is the schema.
type Source struct {
	q Querier
}

func NewSource(q Querier) *Source {
	return &Source{q: q}
}

// Fetch runs SELECT * and reads column types from the row description.
func (s *Source) Fetch(ctx context.Context, req domain.FetchRequest) (domain.TableData, error) {
	sql, err := sqlquery.Select(sqlquery.ANSI, req)
	if err != nil {
		return domain.TableData{}, fmt.Errorf("postgres: %w", err)
	}

	rows, err := s.q.Query(ctx, sql)
	if err != nil {
		return domain.TableData{}, fmt.Errorf("postgres: query %s: %w", req.Table.FullID(), err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]domain.ColumnDescriptor, len(fields))
	for i, fd := range fields {
		cols[i] = domain.ColumnDescriptor{Name: fd.Name, DataType: typeName(fd.DataTypeOID)}
	}

	var out [][]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return domain.TableData{}, fmt.Errorf("postgres: read row values: %w", err)
		}
		row := make([]any, len(values))
		for i, v := range values {
			if row[i], err = convert(v); err != nil {
				return domain.TableData{}, fmt.Errorf("postgres: column %s: %w", cols[i].Name, err)
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return domain.TableData{}, fmt.Errorf("postgres: iterate %s: %w", req.Table.FullID(), err)
	}

	return domain.TableData{Table: req.Table, Columns: cols, Rows: out}, nil
}

func typeName(oid uint32) string {
	if t, ok := typeMap.TypeForOID(oid); ok {
		name := strings.ToUpper(t.Name)
		if strings.HasPrefix(name, "_") {
			return strings.TrimPrefix(name, "_") + "[]"
		}
		return name
	}
	return fmt.Sprintf("OID%d", oid)
}

// convert normalizes pgx values: numerics become *big.Rat, UUIDs their text
// form, and JSON or array values their JSON encoding.
func convert(v any) (any, error) {
	switch x := v.(type) {
	case pgtype.Numeric:
		return numericValue(x), nil
	case [16]uint8:
		return fmt.Sprintf("%x-%x-%x-%x-%x", x[0:4], x[4:6], x[6:8], x[8:10], x[10:16]), nil
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
	return v, nil
}

func numericValue(n pgtype.Numeric) any {
	switch {
	case !n.Valid:
		return nil
	case n.NaN:
		return "NaN"
	case n.InfinityModifier == pgtype.Infinity:
		return "Infinity"
	case n.InfinityModifier == pgtype.NegativeInfinity:
		return "-Infinity"
	}
	r := new(big.Rat).SetInt(n.Int)
	if n.Exp == 0 {
		return r
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(abs(n.Exp))), nil)
	if n.Exp > 0 {
		return r.Mul(r, new(big.Rat).SetInt(scale))
	}
	return r.Quo(r, new(big.Rat).SetInt(scale))
}

func abs(n int32) int32 {
	if n < 0 {
		return -n
	}
	return n
}
