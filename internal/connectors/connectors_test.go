package connectors

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdw-platform/gdw-audit/internal/config"
	"github.com/gdw-platform/gdw-audit/internal/domain"
	"github.com/gdw-platform/gdw-audit/internal/ratelimit"
	"github.com/gdw-platform/gdw-audit/internal/testutil"
)

func rowsSource(n int, seen *domain.FetchRequest) Source {
	return SourceFunc(func(_ context.Context, req domain.FetchRequest) (domain.TableData, error) {
		if seen != nil {
			*seen = req
		}
		td := domain.TableData{Table: req.Table, Columns: []domain.ColumnDescriptor{{Name: "id", DataType: "INT64"}}}
		for i := 0; i < n; i++ {
			td.Rows = append(td.Rows, []any{i})
		}
		return td, nil
	})
}

var ordersSpec = config.TableSpec{Platform: config.PlatformPostgres, Dataset: "public", Table: "orders", Where: "id > 0"}

func TestRouterFetch(t *testing.T) {
	t.Parallel()
	var seen domain.FetchRequest
	r := NewRouter(nil, 10)
	r.Register(config.PlatformPostgres, rowsSource(3, &seen))

	td, err := r.Fetch(context.Background(), ordersSpec, domain.EnvStg)
	require.NoError(t, err)
	assert.Len(t, td.Rows, 3)
	assert.Equal(t, domain.EnvStg, seen.Table.Environment)
	assert.Equal(t, "id > 0", seen.Where)
	assert.Equal(t, 11, seen.Limit, "one row past the cap detects truncation")
}

func TestRouterFetch_RowLimit(t *testing.T) {
	t.Parallel()
	r := NewRouter(nil, 2)
	r.Register(config.PlatformPostgres, rowsSource(3, nil))

	_, err := r.Fetch(context.Background(), ordersSpec, domain.EnvDev)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRowLimit)
	assert.Contains(t, err.Error(), "public.orders")
}

func TestRouterFetch_NoLimit(t *testing.T) {
	t.Parallel()
	var seen domain.FetchRequest
	r := NewRouter(nil, 0)
	r.Register(config.PlatformPostgres, rowsSource(5, &seen))

	td, err := r.Fetch(context.Background(), ordersSpec, domain.EnvDev)
	require.NoError(t, err)
	assert.Len(t, td.Rows, 5)
	assert.Zero(t, seen.Limit)
}

func TestRouterFetch_UnknownPlatform(t *testing.T) {
	t.Parallel()
	r := NewRouter(nil, 0)
	_, err := r.Fetch(context.Background(), ordersSpec, domain.EnvDev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}

func TestRouterFetch_RateLimitCancelled(t *testing.T) {
	t.Parallel()
	limiter := ratelimit.NewPlatformLimiter(ratelimit.PlatformRates{"postgres": 0.001})
	r := NewRouter(limiter, 0)
	r.Register(config.PlatformPostgres, rowsSource(1, nil))

	// The first call takes the only token.
	_, err := r.Fetch(context.Background(), ordersSpec, domain.EnvDev)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = r.Fetch(ctx, ordersSpec, domain.EnvDev)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit postgres")
}

type recordingSink struct {
	got []domain.AuditReport
	err error
}

func (s *recordingSink) Write(_ context.Context, r domain.AuditReport) error {
	s.got = append(s.got, r)
	return s.err
}

func TestMultiSink(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := &recordingSink{}
	bad := &recordingSink{err: errors.New("quota")}

	m := NewMultiSink(logger)
	m.Add("file", ok)
	m.Add("bigquery", bad)
	require.Equal(t, 2, m.Len())

	err := m.Write(context.Background(), domain.AuditReport{SourceTable: "a", TargetTable: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bigquery: quota")
	assert.Len(t, ok.got, 1, "healthy sinks still receive the report")
	assert.Len(t, bad.got, 1)

	assert.NoError(t, NewMultiSink(logger).Write(context.Background(), domain.AuditReport{}))
}

func TestResourcesClose(t *testing.T) {
	t.Parallel()
	var order []int
	res := &Resources{closers: []func() error{
		func() error { order = append(order, 1); return nil },
		func() error { order = append(order, 2); return errors.New("pool busy") },
	}}
	err := res.Close()
	assert.EqualError(t, err, "pool busy")
	assert.Equal(t, []int{2, 1}, order)
}

func TestLimiter(t *testing.T) {
	t.Parallel()
	l := Limiter(config.Config{BigQueryRate: 1})
	require.NoError(t, l.Wait(context.Background(), "bigquery"))
	require.NoError(t, l.Wait(context.Background(), "duckdb"), "unlimited platform")
}

func TestBuildStub(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()

	res := BuildStub(config.Config{ReportDir: dir}, testutil.FixturesDir(), logger)
	assert.Len(t, res.Router.Platforms(), 4)
	assert.Equal(t, 1, res.Sinks.Len())

	td, err := res.Router.Fetch(context.Background(), config.TableSpec{
		Platform: config.PlatformAthena,
		Dataset:  "raw_crm",
		Table:    "customers",
	}, domain.EnvDev)
	require.NoError(t, err)
	assert.NotEmpty(t, td.Rows)
	require.NoError(t, res.Close())
}

func TestBuild_StubModeDefaultsToBundledFixtures(t *testing.T) {
	t.Parallel()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	res, err := Build(context.Background(), config.Config{Mode: config.ModeStub}, config.Registry{}, logger)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Sinks.Len())

	_, err = res.Router.Fetch(context.Background(), config.TableSpec{
		Platform: config.PlatformPostgres,
		Dataset:  "public",
		Table:    "orders",
	}, domain.EnvDev)
	assert.NoError(t, err)
}
