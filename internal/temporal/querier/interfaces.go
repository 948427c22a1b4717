package querier

import (
	"context"

	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"

	"github.com/gdw-platform/gdw-audit/internal/temporal/workflows"
)

// AuditQuerier provides read access to audit workflows and the ability to
// start new ones. Used by the CLI, the HTTP API, the AG-UI streamer and the MCP server.
type AuditQuerier interface {
	ListAudits(ctx context.Context, opts ListOptions) ([]WorkflowSummary, error)
	GetAuditResult(ctx context.Context, workflowID string) (*workflows.AuditResult, error)
	GetSweepResult(ctx context.Context, workflowID string) (*workflows.SweepResult, error)
	DescribeAudit(ctx context.Context, workflowID string) (*WorkflowDescription, error)
	StartAudit(ctx context.Context, in workflows.AuditInput) (WorkflowRef, error)
	StartSweep(ctx context.Context, in workflows.SweepInput) (WorkflowRef, error)
}

// TemporalClient is the subset of client.Client the querier calls.
type TemporalClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow any, args ...any) (client.WorkflowRun, error)
	GetWorkflow(ctx context.Context, workflowID string, runID string) client.WorkflowRun
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...any) (converter.EncodedValue, error)
	DescribeWorkflowExecution(ctx context.Context, workflowID, runID string) (*workflowservice.DescribeWorkflowExecutionResponse, error)
	ListWorkflow(ctx context.Context, request *workflowservice.ListWorkflowExecutionsRequest) (*workflowservice.ListWorkflowExecutionsResponse, error)
}

var _ TemporalClient = client.Client(nil)
