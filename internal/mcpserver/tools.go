// Package mcpserver exposes table audit results via MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gdw-platform/gdw-audit/internal/config"
	"github.com/gdw-platform/gdw-audit/internal/domain"
	"github.com/gdw-platform/gdw-audit/internal/temporal/querier"
	"github.com/gdw-platform/gdw-audit/internal/temporal/workflows"
	"github.com/gdw-platform/gdw-audit/internal/uischema"
)

// RegisterTools registers all audit MCP tools on the given server.
func RegisterTools(server *mcp.Server, q querier.AuditQuerier, reg config.Registry) {
	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "list_tables",
			Description: "List the source/target table pairs in the audit registry",
		},
		listTablesHandler(reg),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "list_audits",
			Description: "List recent table audit workflows with status and start time",
		},
		listAuditsHandler(q),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "get_audit_report",
			Description: "Get the gdw_tables_auditing report (column and row summaries, per-column match rates) of an audit workflow",
		},
		getAuditReportHandler(q),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "get_audit_verdict",
			Description: "Get the pass/warn/fail verdict and the threshold findings behind it",
		},
		getAuditVerdictHandler(q),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "get_audit_ui",
			Description: "Get UI schema (components + actions) for rendering an audit workflow",
		},
		getAuditUIHandler(q),
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "start_audit",
			Description: "Start an audit of one registry table in an environment",
		},
		startAuditHandler(q, reg),
	)
}

func listTablesHandler(reg config.Registry) mcp.ToolHandlerFor[struct{}, any] {
	return func(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
		type table struct {
			Name       string          `json:"name"`
			Source     config.Platform `json:"source_platform"`
			Target     config.Platform `json:"target_platform"`
			KeyColumns []string        `json:"key_columns,omitempty"`
		}
		out := make([]table, 0, len(reg.Tables))
		for _, e := range reg.Tables {
			out = append(out, table{Name: e.Name, Source: e.Source.Platform, Target: e.Target.Platform, KeyColumns: e.KeyColumns})
		}
		return textResult(out)
	}
}

type listAuditsInput struct {
	Status string `json:"status,omitempty" jsonschema:"workflow status filter, e.g. Running or Completed"`
}

func listAuditsHandler(q querier.AuditQuerier) mcp.ToolHandlerFor[listAuditsInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input listAuditsInput) (*mcp.CallToolResult, any, error) {
		audits, err := q.ListAudits(ctx, querier.ListOptions{
			WorkflowType: querier.TypeTableAudit,
			StatusFilter: input.Status,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("list_audits: %w", err)
		}
		return textResult(audits)
	}
}

type workflowIDInput struct {
	WorkflowID string `json:"workflow_id" jsonschema:"the audit workflow ID"`
}

// auditResult loads a workflow's result, or returns a tool error result.
func auditResult(ctx context.Context, q querier.AuditQuerier, tool, id string) (*workflows.AuditResult, *mcp.CallToolResult, error) {
	if id == "" {
		return nil, errorResult("workflow_id is required"), nil
	}
	result, err := q.GetAuditResult(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", tool, err)
	}
	return result, nil, nil
}

func getAuditReportHandler(q querier.AuditQuerier) mcp.ToolHandlerFor[workflowIDInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input workflowIDInput) (*mcp.CallToolResult, any, error) {
		result, res, err := auditResult(ctx, q, "get_audit_report", input.WorkflowID)
		if result == nil {
			return res, nil, err
		}
		if result.Report == nil {
			return errorResult(fmt.Sprintf("audit %s has no report yet (phase %s)", input.WorkflowID, result.Phase)), nil, nil
		}
		return textResult(result.Report)
	}
}

func getAuditVerdictHandler(q querier.AuditQuerier) mcp.ToolHandlerFor[workflowIDInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input workflowIDInput) (*mcp.CallToolResult, any, error) {
		result, res, err := auditResult(ctx, q, "get_audit_verdict", input.WorkflowID)
		if result == nil {
			return res, nil, err
		}
		out := map[string]any{
			"table":  result.Table,
			"phase":  result.Phase,
			"reason": result.Reason,
		}
		if result.Decision != nil {
			out["verdict"] = result.Decision.Verdict
			out["details"] = result.Decision.Details
			out["reasons"] = result.Decision.Reasons
		}
		if result.Error != nil {
			out["error"] = *result.Error
		}
		return textResult(out)
	}
}

func getAuditUIHandler(q querier.AuditQuerier) mcp.ToolHandlerFor[workflowIDInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input workflowIDInput) (*mcp.CallToolResult, any, error) {
		result, res, err := auditResult(ctx, q, "get_audit_ui", input.WorkflowID)
		if result == nil {
			return res, nil, err
		}
		return textResult(uischema.Build(input.WorkflowID, *result))
	}
}

type startAuditInput struct {
	Table       string `json:"table" jsonschema:"registry table name"`
	Environment string `json:"environment" jsonschema:"dev, stg or prd"`
	SkipPersist bool   `json:"skip_persist,omitempty" jsonschema:"evaluate without writing the report to any sink"`
}

func startAuditHandler(q querier.AuditQuerier, reg config.Registry) mcp.ToolHandlerFor[startAuditInput, any] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input startAuditInput) (*mcp.CallToolResult, any, error) {
		entry, ok := reg.Lookup(input.Table)
		if !ok {
			return errorResult(fmt.Sprintf("registry has no table %q", input.Table)), nil, nil
		}
		env, err := domain.ParseEnvironment(input.Environment)
		if err != nil {
			return errorResult(err.Error()), nil, nil
		}
		ref, err := q.StartAudit(ctx, workflows.AuditInput{Entry: entry, Environment: env, SkipPersist: input.SkipPersist})
		if err != nil {
			return nil, nil, fmt.Errorf("start_audit: %w", err)
		}
		return textResult(ref)
	}
}

func textResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("marshal result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}
