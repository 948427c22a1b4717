package reconcile

import (
	"database/sql/driver"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// Canonical renders a cell value as a comparable string. The boolean is true
// for NULL. Values that print the same compare equal, so the int 1 and the
// string "1" are the same value.
func Canonical(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", true
	case string:
		return x, false
	case []byte:
		if x == nil {
			return "", true
		}
		return string(x), false
	case bool:
		return strconv.FormatBool(x), false
	case int:
		return strconv.FormatInt(int64(x), 10), false
	case int8:
		return strconv.FormatInt(int64(x), 10), false
	case int16:
		return strconv.FormatInt(int64(x), 10), false
	case int32:
		return strconv.FormatInt(int64(x), 10), false
	case int64:
		return strconv.FormatInt(x, 10), false
	case uint:
		return strconv.FormatUint(uint64(x), 10), false
	case uint8:
		return strconv.FormatUint(uint64(x), 10), false
	case uint16:
		return strconv.FormatUint(uint64(x), 10), false
	case uint32:
		return strconv.FormatUint(uint64(x), 10), false
	case uint64:
		return strconv.FormatUint(x, 10), false
	case float32:
		return formatFloat(float64(x), 32), false
	case float64:
		return formatFloat(x, 64), false
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), false
	case *time.Time:
		if x == nil {
			return "", true
		}
		return x.UTC().Format(time.RFC3339Nano), false
	case *big.Rat:
		if x == nil {
			return "", true
		}
		return formatRat(x), false
	case *big.Int:
		if x == nil {
			return "", true
		}
		return x.String(), false
	case *string:
		if x == nil {
			return "", true
		}
		return *x, false
	case *int64:
		if x == nil {
			return "", true
		}
		return strconv.FormatInt(*x, 10), false
	case *float64:
		if x == nil {
			return "", true
		}
		return formatFloat(*x, 64), false
	case *bool:
		if x == nil {
			return "", true
		}
		return strconv.FormatBool(*x), false
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil {
			return fmt.Sprint(x), false
		}
		if _, again := dv.(driver.Valuer); again {
			return fmt.Sprint(dv), false
		}
		return Canonical(dv)
	case fmt.Stringer:
		return x.String(), false
	}
	return fmt.Sprint(v), false
}

func formatFloat(f float64, bits int) string {
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, bits)
}

func formatRat(r *big.Rat) string {
	if r.IsInt() {
		return r.Num().String()
	}
	s := r.FloatString(38)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// valuesEqual compares two cells by canonical form. NULL equals only NULL.
func valuesEqual(a, b any) bool {
	ca, na := Canonical(a)
	cb, nb := Canonical(b)
	if na || nb {
		return na && nb
	}
	return ca == cb
}

// identityKey encodes a row's identity columns into an unambiguous string.
func identityKey(row []any, cols []int) string {
	var b strings.Builder
	for _, i := range cols {
		c, null := Canonical(row[i])
		if null {
			b.WriteString("N;")
			continue
		}
		b.WriteString(strconv.Itoa(len(c)))
		b.WriteByte(':')
		b.WriteString(c)
		b.WriteByte(';')
	}
	return b.String()
}
