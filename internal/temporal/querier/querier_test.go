package querier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	commonpb "go.temporal.io/api/common/v1"
	enumspb "go.temporal.io/api/enums/v1"
	workflowpb "go.temporal.io/api/workflow/v1"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/gdw-platform/gdw-audit/internal/config"
	"github.com/gdw-platform/gdw-audit/internal/domain"
	"github.com/gdw-platform/gdw-audit/internal/temporal/versioning"
	"github.com/gdw-platform/gdw-audit/internal/temporal/workflows"
)

var dc = converter.GetDefaultDataConverter()

type fakeRun struct {
	id, runID string
	result    any
	err       error
}

func (r *fakeRun) GetID() string    { return r.id }
func (r *fakeRun) GetRunID() string { return r.runID }

func (r *fakeRun) Get(_ context.Context, valuePtr any) error {
	if r.err != nil {
		return r.err
	}
	p, err := dc.ToPayload(r.result)
	if err != nil {
		return err
	}
	return dc.FromPayload(p, valuePtr)
}

func (r *fakeRun) GetWithOptions(ctx context.Context, valuePtr any, _ client.WorkflowRunGetOptions) error {
	return r.Get(ctx, valuePtr)
}

type fakeClient struct {
	status    enumspb.WorkflowExecutionStatus
	result    any
	queried   any
	listReq   *workflowservice.ListWorkflowExecutionsRequest
	listResp  *workflowservice.ListWorkflowExecutionsResponse
	started   []client.StartWorkflowOptions
	startArgs []any
	err       error
}

func (c *fakeClient) ExecuteWorkflow(_ context.Context, opts client.StartWorkflowOptions, _ any, args ...any) (client.WorkflowRun, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.started = append(c.started, opts)
	c.startArgs = append(c.startArgs, args...)
	return &fakeRun{id: opts.ID, runID: "run-1"}, nil
}

func (c *fakeClient) GetWorkflow(_ context.Context, workflowID, runID string) client.WorkflowRun {
	return &fakeRun{id: workflowID, runID: runID, result: c.result}
}

func (c *fakeClient) QueryWorkflow(_ context.Context, _, _, queryType string, _ ...any) (converter.EncodedValue, error) {
	if queryType != workflows.QueryNameState {
		return nil, errors.New("unknown query " + queryType)
	}
	payloads, err := dc.ToPayloads(c.queried)
	if err != nil {
		return nil, err
	}
	return client.NewValue(payloads), nil
}

func (c *fakeClient) DescribeWorkflowExecution(_ context.Context, workflowID, _ string) (*workflowservice.DescribeWorkflowExecutionResponse, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &workflowservice.DescribeWorkflowExecutionResponse{
		WorkflowExecutionInfo: &workflowpb.WorkflowExecutionInfo{
			Execution:       &commonpb.WorkflowExecution{WorkflowId: workflowID, RunId: "run-1"},
			Type:            &commonpb.WorkflowType{Name: TypeTableAudit},
			Status:          c.status,
			StartTime:       timestamppb.New(time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)),
			TaskQueue:       versioning.QueueAudit,
			HistoryLength:   17,
			ParentExecution: &commonpb.WorkflowExecution{WorkflowId: "gdw-sweep-dev"},
		},
	}, nil
}

func (c *fakeClient) ListWorkflow(_ context.Context, req *workflowservice.ListWorkflowExecutionsRequest) (*workflowservice.ListWorkflowExecutionsResponse, error) {
	c.listReq = req
	if c.err != nil {
		return nil, c.err
	}
	return c.listResp, nil
}

func newTestQuerier(c *fakeClient) *TemporalQuerier {
	q := New(c)
	q.now = func() time.Time { return time.Date(2026, 10, 1, 14, 5, 9, 0, time.FixedZone("CEST", 2*3600)) }
	return q
}

func TestListQuery(t *testing.T) {
	assert.Equal(t, "", ListQuery(ListOptions{}))
	assert.Equal(t,
		`TaskQueue = "gdw-audit" AND ExecutionStatus = "Running" AND WorkflowType = "TableAuditWorkflow"`,
		ListQuery(ListOptions{TaskQueue: versioning.QueueAudit, StatusFilter: "Running", WorkflowType: TypeTableAudit}))
}

func TestListAudits(t *testing.T) {
	start := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	c := &fakeClient{listResp: &workflowservice.ListWorkflowExecutionsResponse{
		Executions: []*workflowpb.WorkflowExecutionInfo{{
			Execution: &commonpb.WorkflowExecution{WorkflowId: "gdw-audit-dev-orders-20261001T120000Z", RunId: "r1"},
			Type:      &commonpb.WorkflowType{Name: TypeTableAudit},
			Status:    enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED,
			StartTime: timestamppb.New(start),
			CloseTime: timestamppb.New(start.Add(time.Minute)),
			TaskQueue: versioning.QueueAudit,
		}},
	}}

	got, err := newTestQuerier(c).ListAudits(context.Background(), ListOptions{WorkflowType: TypeTableAudit})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "gdw-audit-dev-orders-20261001T120000Z", got[0].WorkflowID)
	assert.Equal(t, TypeTableAudit, got[0].WorkflowType)
	assert.Equal(t, "Completed", got[0].Status)
	assert.Equal(t, start.Add(time.Minute), got[0].CloseTime)
	assert.EqualValues(t, 50, c.listReq.PageSize)
	assert.Equal(t, `WorkflowType = "TableAuditWorkflow"`, c.listReq.Query)
}

func TestListAudits_Error(t *testing.T) {
	_, err := newTestQuerier(&fakeClient{err: errors.New("unavailable")}).ListAudits(context.Background(), ListOptions{})
	assert.ErrorContains(t, err, "list workflows")
}

func TestGetAuditResult_Completed(t *testing.T) {
	c := &fakeClient{
		status: enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED,
		result: workflows.AuditResult{
			Table:    "orders",
			Phase:    workflows.PhaseCompleted,
			Reason:   workflows.ReasonCompleted,
			Decision: &domain.AuditDecision{Verdict: domain.VerdictWarn},
		},
	}
	res, err := newTestQuerier(c).GetAuditResult(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "orders", res.Table)
	assert.Equal(t, domain.VerdictWarn, res.Verdict())
}

func TestGetAuditResult_RunningUsesQuery(t *testing.T) {
	c := &fakeClient{
		status:  enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING,
		queried: workflows.AuditResult{Table: "orders", Phase: workflows.PhaseAuditing},
	}
	res, err := newTestQuerier(c).GetAuditResult(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, workflows.PhaseAuditing, res.Phase)
	assert.Nil(t, res.Decision)
}

func TestGetAuditResult_Terminated(t *testing.T) {
	c := &fakeClient{status: enumspb.WORKFLOW_EXECUTION_STATUS_TERMINATED}
	_, err := newTestQuerier(c).GetAuditResult(context.Background(), "wf-1")
	assert.ErrorContains(t, err, "cannot read state")
}

func TestGetSweepResult(t *testing.T) {
	c := &fakeClient{
		status: enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED,
		result: workflows.SweepResult{TablesAudited: 2, Passed: 1, Failed: 1},
	}
	res, err := newTestQuerier(c).GetSweepResult(context.Background(), "sweep-1")
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictFail, res.Worst())

	c.status = enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING
	_, err = newTestQuerier(c).GetSweepResult(context.Background(), "sweep-1")
	assert.ErrorContains(t, err, "result not available")
}

func TestDescribeAudit(t *testing.T) {
	c := &fakeClient{status: enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING}
	d, err := newTestQuerier(c).DescribeAudit(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "wf-1", d.WorkflowID)
	assert.Equal(t, "Running", d.Status)
	assert.EqualValues(t, 17, d.HistoryLength)
	assert.Equal(t, "gdw-sweep-dev", d.ParentWorkflowID)
	assert.True(t, d.CloseTime.IsZero())
}

func TestStartAudit(t *testing.T) {
	c := &fakeClient{}
	in := workflows.AuditInput{
		Entry:       config.TableEntry{Name: "orders"},
		Environment: domain.EnvPrd,
	}
	ref, err := newTestQuerier(c).StartAudit(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "gdw-audit-prd-orders-20261001T120509Z", ref.WorkflowID)
	assert.Equal(t, "run-1", ref.RunID)
	require.Len(t, c.started, 1)
	assert.Equal(t, versioning.QueueAudit, c.started[0].TaskQueue)
	assert.Equal(t, versioning.TableAuditV1, c.started[0].Memo["version"])
	assert.Equal(t, []any{in}, c.startArgs)
}

func TestStartSweep(t *testing.T) {
	c := &fakeClient{}
	ref, err := newTestQuerier(c).StartSweep(context.Background(), workflows.SweepInput{Environment: domain.EnvStg})
	require.NoError(t, err)
	assert.Equal(t, "gdw-sweep-stg-20261001T120509Z", ref.WorkflowID)
	assert.Equal(t, versioning.QueueSweep, c.started[0].TaskQueue)

	_, err = newTestQuerier(&fakeClient{err: errors.New("boom")}).StartSweep(context.Background(), workflows.SweepInput{})
	assert.ErrorContains(t, err, "start sweep")
}
