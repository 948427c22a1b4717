// Package querier provides read access to Temporal workflow state and the
// start helpers the CLI, HTTP API and MCP server share.
package querier

import "time"

// ListOptions controls filtering for ListAudits.
type ListOptions struct {
	// TaskQueue filters by task queue name. Empty means no filter.
	TaskQueue string
	// StatusFilter filters by workflow status (e.g. "Running", "Completed").
	StatusFilter string
	// WorkflowType filters by workflow function name (e.g. "TableAuditWorkflow").
	WorkflowType string
	// PageSize limits the number of results.
	PageSize int
}

// WorkflowSummary is a lightweight overview of a workflow execution.
type WorkflowSummary struct {
	WorkflowID   string    `json:"workflow_id"`
	RunID        string    `json:"run_id"`
	WorkflowType string    `json:"workflow_type"`
	Status       string    `json:"status"`
	StartTime    time.Time `json:"start_time"`
	CloseTime    time.Time `json:"close_time,omitempty"`
	TaskQueue    string    `json:"task_queue"`
}

// WorkflowDescription provides detailed info about a workflow execution.
type WorkflowDescription struct {
	WorkflowSummary
	HistoryLength    int64  `json:"history_length"`
	ParentWorkflowID string `json:"parent_workflow_id,omitempty"`
	PendingChildren  int    `json:"pending_children"`
}

// WorkflowRef identifies a started workflow run.
type WorkflowRef struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}
