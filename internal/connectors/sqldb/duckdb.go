package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/duckdb/duckdb-go/v2"

	"github.com/gdw-platform/gdw-audit/internal/connectors/sqlquery"
)

// OpenDuckDB opens a DuckDB database file read-only and returns a Source over it.
func OpenDuckDB(ctx context.Context, path string) (*Source, *sql.DB, error) {
	db, err := sql.Open("duckdb", path+"?access_mode=READ_ONLY")
	if err != nil {
		return nil, nil, fmt.Errorf("sqldb: open duckdb %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("sqldb: ping duckdb %s: %w", path, err)
	}
	return NewSource(db, sqlquery.ANSI, DuckDBValue), db, nil
}

// DuckDBValue converts DuckDB driver values: decimals become *big.Rat, and
// lists, structs and maps their JSON encoding.
func DuckDBValue(v any) any {
	switch x := v.(type) {
	case duckdb.Decimal:
		if x.Value == nil {
			return nil
		}
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(x.Scale)), nil)
		return new(big.Rat).SetFrac(x.Value, scale)
	case duckdb.UUID:
		return x.String()
	case []any, map[string]any, duckdb.Map:
		b, err := json.Marshal(normalizeMap(x))
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
	return v
}

// normalizeMap turns duckdb.Map keys into strings so the value is JSON-encodable.
func normalizeMap(v any) any {
	m, ok := v.(duckdb.Map)
	if !ok {
		return v
	}
	out := make(map[string]any, len(m))
	for k, val := range m {
		out[fmt.Sprint(k)] = val
	}
	return out
}
