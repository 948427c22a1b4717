package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdw-platform/gdw-audit/internal/config"
	"github.com/gdw-platform/gdw-audit/internal/connectors/filesink"
	"github.com/gdw-platform/gdw-audit/internal/domain"
	"github.com/gdw-platform/gdw-audit/internal/temporal/querier"
	"github.com/gdw-platform/gdw-audit/internal/temporal/workflows"
	"github.com/gdw-platform/gdw-audit/internal/testutil"
)

// stubQuerier records starts and serves canned workflow state.
type stubQuerier struct {
	started  []workflows.AuditInput
	sweeps   []workflows.SweepInput
	audit    *workflows.AuditResult
	sweep    *workflows.SweepResult
	status   string
	auditErr error
}

func (s *stubQuerier) ListAudits(context.Context, querier.ListOptions) ([]querier.WorkflowSummary, error) {
	return []querier.WorkflowSummary{{
		WorkflowID: "gdw-audit-dev-orders-20261001T120000Z",
		Status:     "Completed",
		StartTime:  time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}}, nil
}

func (s *stubQuerier) GetAuditResult(context.Context, string) (*workflows.AuditResult, error) {
	return s.audit, s.auditErr
}

func (s *stubQuerier) GetSweepResult(context.Context, string) (*workflows.SweepResult, error) {
	return s.sweep, nil
}

func (s *stubQuerier) DescribeAudit(_ context.Context, id string) (*querier.WorkflowDescription, error) {
	return &querier.WorkflowDescription{WorkflowSummary: querier.WorkflowSummary{WorkflowID: id, Status: s.status}}, nil
}

func (s *stubQuerier) StartAudit(_ context.Context, in workflows.AuditInput) (querier.WorkflowRef, error) {
	s.started = append(s.started, in)
	return querier.WorkflowRef{WorkflowID: "gdw-audit-dev-" + in.Entry.Name, RunID: "run-1"}, nil
}

func (s *stubQuerier) StartSweep(_ context.Context, in workflows.SweepInput) (querier.WorkflowRef, error) {
	s.sweeps = append(s.sweeps, in)
	return querier.WorkflowRef{WorkflowID: "gdw-sweep-dev", RunID: "run-2"}, nil
}

func runCLI(t *testing.T, q querier.AuditQuerier, args ...string) (int, string, string) {
	t.Helper()
	t.Setenv("AUDIT_MODE", "stub")
	t.Setenv("AUDIT_ENVIRONMENT", "dev")
	t.Setenv("AUDIT_REGISTRY", testutil.RegistryPath())
	t.Setenv("FIXTURES_DIR", testutil.FixturesDir())

	a := &app{dial: func(config.Config) (querier.AuditQuerier, func(), error) {
		if q == nil {
			return nil, nil, errors.New("no temporal in tests")
		}
		return q, func() {}, nil
	}}
	var stdout, stderr bytes.Buffer
	code := executeApp(a, args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_CustomersPasses(t *testing.T) {
	code, out, errOut := runCLI(t, nil, "run", "customers", "-o", "json")
	require.Equal(t, 0, code, errOut)

	var res localResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "customers", res.Table)
	assert.Equal(t, 4, res.Report.RowSummary.InCommon)
	assert.Equal(t, domain.VerdictPass, res.Decision.Verdict)
	assert.Zero(t, res.Sinks)
}

func TestRun_OrdersWarnsAsTable(t *testing.T) {
	code, out, errOut := runCLI(t, nil, "run", "orders")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "public.orders -> gdw-prd.gdw.orders")
	assert.Contains(t, out, "verdict: warn")
	assert.Contains(t, out, "warn: 1 column(s) only in source")
	assert.Contains(t, out, "warn: 1 column(s) only in target")
}

func TestRun_PersistWritesReportFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AUDIT_REPORT_DIR", dir)

	code, out, errOut := runCLI(t, nil, "run", "customers", "--persist", "-o", "json")
	require.Equal(t, 0, code, errOut)

	var res localResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 1, res.Sinks)

	stored, err := filesink.ReadReport(filesink.New(dir).Path(res.Report))
	require.NoError(t, err)
	assert.Equal(t, res.Report.TargetTable, stored.TargetTable)
}

func TestRun_UnknownTable(t *testing.T) {
	code, _, errOut := runCLI(t, nil, "run", "ghost")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, `registry has no table "ghost"`)
}

func TestRun_BadOutputFormat(t *testing.T) {
	code, _, errOut := runCLI(t, nil, "run", "customers", "-o", "yaml")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "unknown output format")
}

func TestValidate(t *testing.T) {
	code, out, errOut := runCLI(t, nil, "validate")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "is valid: 2 table(s)")
}

func writeReport(t *testing.T, dir, name string, r domain.AuditReport) string {
	t.Helper()
	data, err := json.Marshal(r)
	require.NoError(t, err)
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestDiffReport(t *testing.T) {
	dir := t.TempDir()
	base := domain.AuditReport{
		ComparisonDate: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		SourceTable:    "public.orders",
		TargetTable:    "gdw-prd.gdw.orders",
		RowSummary:     domain.RowSummary{InCommon: 3},
	}
	later := base
	later.ComparisonDate = base.ComparisonDate.Add(24 * time.Hour)
	drifted := later
	drifted.RowSummary.TargetOnly = 2

	a := writeReport(t, dir, "a.json", base)
	b := writeReport(t, dir, "b.json", later)
	c := writeReport(t, dir, "c.json", drifted)

	code, out, _ := runCLI(t, nil, "diff-report", a, b)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "all sections match")

	code, out, _ = runCLI(t, nil, "diff-report", a, c)
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "divergence in: row_summary")

	code, _, _ = runCLI(t, nil, "diff-report", a, filepath.Join(dir, "missing.json"))
	assert.Equal(t, 2, code)
}

func TestTrigger(t *testing.T) {
	q := &stubQuerier{}
	code, out, errOut := runCLI(t, q, "trigger", "orders", "--skip-persist")
	require.Equal(t, 0, code, errOut)

	require.Len(t, q.started, 1)
	assert.Equal(t, "orders", q.started[0].Entry.Name)
	assert.Equal(t, domain.EnvDev, q.started[0].Environment)
	assert.True(t, q.started[0].SkipPersist)
	assert.Contains(t, out, "started workflow gdw-audit-dev-orders (run=run-1)")
}

func TestTrigger_WaitFailVerdict(t *testing.T) {
	pollInterval = time.Millisecond
	report := domain.AuditReport{SourceTable: "public.orders", TargetTable: "gdw-prd.gdw.orders"}
	q := &stubQuerier{audit: &workflows.AuditResult{
		Table:    "orders",
		Phase:    workflows.PhaseCompleted,
		Reason:   workflows.ReasonCompleted,
		Report:   &report,
		Decision: &domain.AuditDecision{Verdict: domain.VerdictFail, Details: "1 finding(s); worst=fail"},
	}}

	code, out, _ := runCLI(t, q, "trigger", "orders", "--wait")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "verdict: fail")
}

func TestTrigger_WaitAuditError(t *testing.T) {
	pollInterval = time.Millisecond
	msg := "schema conflict"
	q := &stubQuerier{audit: &workflows.AuditResult{
		Table:  "orders",
		Phase:  workflows.PhaseAuditing,
		Reason: workflows.ReasonAuditError,
		Error:  &msg,
	}}

	code, _, errOut := runCLI(t, q, "trigger", "orders", "--wait")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "schema conflict")
}

func TestTrigger_NoTemporal(t *testing.T) {
	code, _, errOut := runCLI(t, nil, "trigger", "orders")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "no temporal in tests")
}

func TestSweep_Wait(t *testing.T) {
	pollInterval = time.Millisecond
	q := &stubQuerier{
		status: "Completed",
		sweep: &workflows.SweepResult{
			TablesAudited: 2,
			Passed:        1,
			Warned:        1,
			Verdicts:      map[string]domain.Verdict{"customers": domain.VerdictPass, "orders": domain.VerdictWarn},
		},
	}

	code, out, errOut := runCLI(t, q, "sweep", "customers", "orders", "--wait")
	require.Equal(t, 0, code, errOut)
	require.Len(t, q.sweeps, 1)
	assert.Equal(t, []string{"customers", "orders"}, q.sweeps[0].Tables)
	assert.Contains(t, out, "worst: warn")
}

func TestSweep_UnknownTable(t *testing.T) {
	q := &stubQuerier{}
	code, _, _ := runCLI(t, q, "sweep", "ghost")
	assert.Equal(t, 2, code)
	assert.Empty(t, q.sweeps)
}

func TestList(t *testing.T) {
	code, out, errOut := runCLI(t, &stubQuerier{}, "list")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "gdw-audit-dev-orders-20261001T120000Z\tCompleted\t2026-10-01T12:00:00Z")
}
