package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdw-platform/gdw-audit/internal/config"
	"github.com/gdw-platform/gdw-audit/internal/domain"
)

// Every table the bundled registry names must have a fixture.
func TestFixturesCoverRegistry(t *testing.T) {
	t.Parallel()
	reg, err := config.LoadRegistry(RegistryPath())
	require.NoError(t, err)
	require.NotEmpty(t, reg.Tables)

	src := &StubSource{FixturesDir: FixturesDir()}
	for _, e := range reg.Tables {
		for _, spec := range []config.TableSpec{e.Source, e.Target} {
			req, err := spec.Request(domain.EnvDev, 0)
			require.NoError(t, err)
			td, err := src.Fetch(context.Background(), req)
			require.NoError(t, err, e.Name)
			assert.NotEmpty(t, td.Rows, req.Table.FullID())
			for _, r := range td.Rows {
				assert.Len(t, r, len(td.Columns), req.Table.FullID())
			}
		}
	}
}

func TestStubSource_Limit(t *testing.T) {
	t.Parallel()
	src := &StubSource{FixturesDir: FixturesDir()}
	req := domain.FetchRequest{
		Table: domain.TableDescriptor{Environment: domain.EnvDev, DatasetID: "public", TableName: "orders"},
		Limit: 2,
	}
	td, err := src.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, td.Rows, 2)
	assert.Equal(t, "orders", td.Table.TableName)
}

func TestStubSource_Missing(t *testing.T) {
	t.Parallel()
	src := &StubSource{FixturesDir: FixturesDir()}
	_, err := src.Fetch(context.Background(), domain.FetchRequest{
		Table: domain.TableDescriptor{Environment: domain.EnvPrd, DatasetID: "nope", TableName: "missing"},
	})
	assert.Error(t, err)
}

func TestMemorySink(t *testing.T) {
	t.Parallel()
	var m MemorySink
	require.NoError(t, m.Write(context.Background(), domain.AuditReport{SourceTable: "a"}))
	got := m.Reports()
	require.Len(t, got, 1)
	got[0].SourceTable = "mutated"
	assert.Equal(t, "a", m.Reports()[0].SourceTable)

	m.Err = ErrStub
	assert.ErrorIs(t, m.Write(context.Background(), domain.AuditReport{}), ErrStub)
}
