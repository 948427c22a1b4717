package postgres

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdw-platform/gdw-audit/internal/domain"
)

type fakeRows struct {
	fields []pgconn.FieldDescription
	rows   [][]any
	pos    int
	err    error
	closed bool
}

func (f *fakeRows) Close()                                       { f.closed = true }
func (f *fakeRows) Err() error                                   { return f.err }
func (f *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (f *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return f.fields }
func (f *fakeRows) Scan(...any) error                            { return errors.New("not supported") }
func (f *fakeRows) RawValues() [][]byte                          { return nil }
func (f *fakeRows) Conn() *pgx.Conn                              { return nil }

func (f *fakeRows) Next() bool {
	if f.pos >= len(f.rows) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeRows) Values() ([]any, error) {
	return f.rows[f.pos-1], nil
}

type fakeQuerier struct {
	rows    *fakeRows
	err     error
	lastSQL string
}

func (f *fakeQuerier) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	f.lastSQL = sql
	if f.err != nil {
		return nil, f.err
	}
	return f.rows, nil
}

func ordersRequest() domain.FetchRequest {
	return domain.FetchRequest{
		Table: domain.TableDescriptor{Environment: domain.EnvPrd, DatasetID: "sales", TableName: "orders", TableType: domain.TableTypeTable},
		Limit: 10,
	}
}

func TestFetch(t *testing.T) {
	t.Parallel()
	rows := &fakeRows{
		fields: []pgconn.FieldDescription{
			{Name: "order_id", DataTypeOID: pgtype.Int8OID},
			{Name: "amount", DataTypeOID: pgtype.NumericOID},
			{Name: "customer", DataTypeOID: pgtype.UUIDOID},
			{Name: "attrs", DataTypeOID: pgtype.JSONBOID},
			{Name: "tags", DataTypeOID: pgtype.TextArrayOID},
		},
		rows: [][]any{
			{
				int64(1),
				pgtype.Numeric{Int: big.NewInt(1050), Exp: -2, Valid: true},
				[16]uint8{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0, 0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0},
				map[string]any{"vip": true},
				[]any{"a", "b"},
			},
			{int64(2), pgtype.Numeric{}, nil, nil, nil},
		},
	}
	q := &fakeQuerier{rows: rows}

	td, err := NewSource(q).Fetch(context.Background(), ordersRequest())
	require.NoError(t, err)

	assert.Equal(t, `SELECT * FROM "sales"."orders" LIMIT 10`, q.lastSQL)
	assert.True(t, rows.closed)
	assert.Equal(t, []domain.ColumnDescriptor{
		{Name: "order_id", DataType: "INT8"},
		{Name: "amount", DataType: "NUMERIC"},
		{Name: "customer", DataType: "UUID"},
		{Name: "attrs", DataType: "JSONB"},
		{Name: "tags", DataType: "TEXT[]"},
	}, td.Columns)

	require.Len(t, td.Rows, 2)
	assert.Equal(t, 0, big.NewRat(21, 2).Cmp(td.Rows[0][1].(*big.Rat)))
	assert.Equal(t, "12345678-9abc-def0-1234-56789abcdef0", td.Rows[0][2])
	assert.Equal(t, `{"vip":true}`, td.Rows[0][3])
	assert.Equal(t, `["a","b"]`, td.Rows[0][4])
	assert.Nil(t, td.Rows[1][1], "invalid numeric is NULL")
}

func TestFetch_QueryError(t *testing.T) {
	t.Parallel()
	q := &fakeQuerier{err: errors.New(`relation "sales.orders" does not exist`)}

	_, err := NewSource(q).Fetch(context.Background(), ordersRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query sales.orders")
}

func TestFetch_IterationError(t *testing.T) {
	t.Parallel()
	q := &fakeQuerier{rows: &fakeRows{err: errors.New("conn reset")}}

	_, err := NewSource(q).Fetch(context.Background(), ordersRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conn reset")
}

func TestNumericValue(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   pgtype.Numeric
		want string
	}{
		{"scaled", pgtype.Numeric{Int: big.NewInt(-125), Exp: -1, Valid: true}, "-25/2"},
		{"exponent", pgtype.Numeric{Int: big.NewInt(3), Exp: 3, Valid: true}, "3000/1"},
		{"integer", pgtype.Numeric{Int: big.NewInt(7), Valid: true}, "7/1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := numericValue(tt.in).(*big.Rat)
			require.True(t, ok)
			assert.Equal(t, tt.want, got.String())
		})
	}
	assert.Equal(t, "NaN", numericValue(pgtype.Numeric{NaN: true, Valid: true}))
	assert.Equal(t, "Infinity", numericValue(pgtype.Numeric{InfinityModifier: pgtype.Infinity, Valid: true}))
}
