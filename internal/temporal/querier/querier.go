package querier

import (
	"context"
	"fmt"
	"strings"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"

	"github.com/gdw-platform/gdw-audit/internal/temporal/versioning"
	"github.com/gdw-platform/gdw-audit/internal/temporal/workflows"
)

// Workflow type names as registered on the worker.
const (
	TypeTableAudit    = "TableAuditWorkflow"
	TypeRegistrySweep = "RegistrySweepWorkflow"
)

// TemporalQuerier implements AuditQuerier using a Temporal client.
type TemporalQuerier struct {
	client TemporalClient
	now    func() time.Time
}

// New creates a TemporalQuerier.
func New(c TemporalClient) *TemporalQuerier {
	return &TemporalQuerier{client: c, now: time.Now}
}

// AuditWorkflowID names a table audit run. IDs sort by start time within a table.
func AuditWorkflowID(env, table string, at time.Time) string {
	return fmt.Sprintf("gdw-audit-%s-%s-%s", env, table, at.UTC().Format("20060102T150405Z"))
}

// SweepWorkflowID names a registry sweep run.
func SweepWorkflowID(env string, at time.Time) string {
	return fmt.Sprintf("gdw-sweep-%s-%s", env, at.UTC().Format("20060102T150405Z"))
}

// ListQuery builds the visibility query for opts.
func ListQuery(opts ListOptions) string {
	var clauses []string
	if opts.TaskQueue != "" {
		clauses = append(clauses, fmt.Sprintf("TaskQueue = %q", opts.TaskQueue))
	}
	if opts.StatusFilter != "" {
		clauses = append(clauses, fmt.Sprintf("ExecutionStatus = %q", opts.StatusFilter))
	}
	if opts.WorkflowType != "" {
		clauses = append(clauses, fmt.Sprintf("WorkflowType = %q", opts.WorkflowType))
	}
	return strings.Join(clauses, " AND ")
}

// ListAudits lists workflow executions using Temporal's visibility API.
func (q *TemporalQuerier) ListAudits(ctx context.Context, opts ListOptions) ([]WorkflowSummary, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	resp, err := q.client.ListWorkflow(ctx, &workflowservice.ListWorkflowExecutionsRequest{
		Query:    ListQuery(opts),
		PageSize: int32(pageSize),
	})
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}

	summaries := make([]WorkflowSummary, 0, len(resp.Executions))
	for _, exec := range resp.Executions {
		s := WorkflowSummary{
			WorkflowID: exec.GetExecution().GetWorkflowId(),
			RunID:      exec.GetExecution().GetRunId(),
			Status:     exec.GetStatus().String(),
			TaskQueue:  exec.GetTaskQueue(),
		}
		if exec.GetType() != nil {
			s.WorkflowType = exec.GetType().GetName()
		}
		if exec.StartTime != nil {
			s.StartTime = exec.StartTime.AsTime()
		}
		if exec.CloseTime != nil {
			s.CloseTime = exec.CloseTime.AsTime()
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

// GetAuditResult returns the current audit result.
// For completed workflows, extracts the result directly.
// For running workflows, uses the Query handler.
func (q *TemporalQuerier) GetAuditResult(ctx context.Context, workflowID string) (*workflows.AuditResult, error) {
	desc, err := q.client.DescribeWorkflowExecution(ctx, workflowID, "")
	if err != nil {
		return nil, fmt.Errorf("describe workflow: %w", err)
	}

	var result workflows.AuditResult
	switch status := desc.GetWorkflowExecutionInfo().GetStatus(); status {
	case enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		if err := q.client.GetWorkflow(ctx, workflowID, "").Get(ctx, &result); err != nil {
			return nil, fmt.Errorf("get workflow result: %w", err)
		}
	case enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING:
		resp, err := q.client.QueryWorkflow(ctx, workflowID, "", workflows.QueryNameState)
		if err != nil {
			return nil, fmt.Errorf("query workflow state: %w", err)
		}
		if err := resp.Get(&result); err != nil {
			return nil, fmt.Errorf("decode query result: %w", err)
		}
	default:
		return nil, fmt.Errorf("workflow %s has status %s, cannot read state", workflowID, status)
	}
	return &result, nil
}

// GetSweepResult returns a completed sweep's summary. Sweeps have no state query.
func (q *TemporalQuerier) GetSweepResult(ctx context.Context, workflowID string) (*workflows.SweepResult, error) {
	desc, err := q.client.DescribeWorkflowExecution(ctx, workflowID, "")
	if err != nil {
		return nil, fmt.Errorf("describe workflow: %w", err)
	}
	if status := desc.GetWorkflowExecutionInfo().GetStatus(); status != enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED {
		return nil, fmt.Errorf("sweep %s has status %s, result not available", workflowID, status)
	}
	var result workflows.SweepResult
	if err := q.client.GetWorkflow(ctx, workflowID, "").Get(ctx, &result); err != nil {
		return nil, fmt.Errorf("get sweep result: %w", err)
	}
	return &result, nil
}

// DescribeAudit returns detailed information about a workflow execution.
func (q *TemporalQuerier) DescribeAudit(ctx context.Context, workflowID string) (*WorkflowDescription, error) {
	desc, err := q.client.DescribeWorkflowExecution(ctx, workflowID, "")
	if err != nil {
		return nil, fmt.Errorf("describe workflow: %w", err)
	}

	info := desc.GetWorkflowExecutionInfo()
	wd := &WorkflowDescription{
		WorkflowSummary: WorkflowSummary{
			WorkflowID:   info.GetExecution().GetWorkflowId(),
			RunID:        info.GetExecution().GetRunId(),
			WorkflowType: info.GetType().GetName(),
			Status:       info.GetStatus().String(),
			TaskQueue:    info.GetTaskQueue(),
		},
		HistoryLength:    info.GetHistoryLength(),
		ParentWorkflowID: info.GetParentExecution().GetWorkflowId(),
		PendingChildren:  len(desc.GetPendingChildren()),
	}
	if info.StartTime != nil {
		wd.StartTime = info.StartTime.AsTime()
	}
	if info.CloseTime != nil {
		wd.CloseTime = info.CloseTime.AsTime()
	}
	return wd, nil
}

// StartAudit starts a TableAuditWorkflow on the audit queue.
func (q *TemporalQuerier) StartAudit(ctx context.Context, in workflows.AuditInput) (WorkflowRef, error) {
	opts := client.StartWorkflowOptions{
		ID:        AuditWorkflowID(string(in.Environment), in.Entry.Name, q.now()),
		TaskQueue: versioning.QueueAudit,
		Memo:      map[string]any{"version": versioning.TableAuditV1, "table": in.Entry.Name},
	}
	run, err := q.client.ExecuteWorkflow(ctx, opts, workflows.TableAuditWorkflow, in)
	if err != nil {
		return WorkflowRef{}, fmt.Errorf("start audit %s: %w", in.Entry.Name, err)
	}
	return WorkflowRef{WorkflowID: run.GetID(), RunID: run.GetRunID()}, nil
}

// StartSweep starts a RegistrySweepWorkflow on the sweep queue.
func (q *TemporalQuerier) StartSweep(ctx context.Context, in workflows.SweepInput) (WorkflowRef, error) {
	opts := client.StartWorkflowOptions{
		ID:        SweepWorkflowID(string(in.Environment), q.now()),
		TaskQueue: versioning.QueueSweep,
		Memo:      map[string]any{"version": versioning.RegistrySweepV1},
	}
	run, err := q.client.ExecuteWorkflow(ctx, opts, workflows.RegistrySweepWorkflow, in)
	if err != nil {
		return WorkflowRef{}, fmt.Errorf("start sweep: %w", err)
	}
	return WorkflowRef{WorkflowID: run.GetID(), RunID: run.GetRunID()}, nil
}
