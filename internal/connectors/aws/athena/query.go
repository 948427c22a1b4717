package athena

import (
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	timestampLayout   = "2006-01-02 15:04:05.999999999"
	timestampTZLayout = "2006-01-02 15:04:05.999999999 MST"
)

// parseValue converts an Athena VarCharValue into a typed Go value using the
// column's Trino type. Unparseable values are kept as strings so the
// comparator still sees them.
func parseValue(typ string, v *string) any {
	if v == nil {
		return nil
	}
	s := *v
	base := typ
	if i := strings.IndexByte(base, '('); i >= 0 {
		base = base[:i]
	}

	switch base {
	case "tinyint", "smallint", "integer", "int", "bigint":
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case "double", "float", "real":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case "boolean":
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	case "decimal":
		if r, ok := new(big.Rat).SetString(s); ok {
			return r
		}
	case "timestamp":
		if t, err := time.Parse(timestampLayout, s); err == nil {
			return t
		}
	case "timestamp with time zone":
		if t, err := time.Parse(timestampTZLayout, s); err == nil {
			return t
		}
	case "varbinary":
		return []byte(s)
	}
	return s
}
