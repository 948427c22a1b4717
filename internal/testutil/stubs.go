// Package testutil provides fixture-backed connectors for stub mode and tests.
package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/gdw-platform/gdw-audit/internal/domain"
)

// StubSource serves tables from JSON fixtures laid out as
// <dir>/<environment>/<project.dataset.table>.json. Each file holds a
// domain.TableData; its table descriptor is replaced by the request's.
type StubSource struct {
	FixturesDir string
}

func (s *StubSource) Fetch(_ context.Context, req domain.FetchRequest) (domain.TableData, error) {
	p := filepath.Join(s.FixturesDir, string(req.Table.Environment), req.Table.FullID()+".json")
	data, err := os.ReadFile(p)
	if err != nil {
		return domain.TableData{}, fmt.Errorf("stub source: %w", err)
	}
	var td domain.TableData
	if err := json.Unmarshal(data, &td); err != nil {
		return domain.TableData{}, fmt.Errorf("stub source: decode %s: %w", p, err)
	}
	td.Table = req.Table
	if req.Limit > 0 && len(td.Rows) > req.Limit {
		td.Rows = td.Rows[:req.Limit]
	}
	return td, nil
}

// MemorySink keeps written reports in memory. Err, when set, fails every write.
type MemorySink struct {
	mu      sync.Mutex
	reports []domain.AuditReport
	Err     error
}

func (m *MemorySink) Write(_ context.Context, r domain.AuditReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.reports = append(m.reports, r)
	return nil
}

// Reports returns a copy of everything written so far.
func (m *MemorySink) Reports() []domain.AuditReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AuditReport(nil), m.reports...)
}

// ErrStub is returned by FailingSource.
var ErrStub = errors.New("stub failure")

// FailingSource fails every fetch with Err, or ErrStub when Err is nil.
type FailingSource struct {
	Err error
}

func (f FailingSource) Fetch(context.Context, domain.FetchRequest) (domain.TableData, error) {
	if f.Err != nil {
		return domain.TableData{}, f.Err
	}
	return domain.TableData{}, ErrStub
}

func testdataDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "testdata")
}

// FixturesDir returns the absolute path of the bundled table fixtures.
func FixturesDir() string {
	return filepath.Join(testdataDir(), "fixtures")
}

// RegistryPath returns the absolute path of the registry matching the fixtures.
func RegistryPath() string {
	return filepath.Join(testdataDir(), "tables.yaml")
}
