// Package uischema builds the component tree the audit dashboard renders for
// one workflow. Ordering, visibility and offered actions are decided here.
package uischema

// UISchema is the top-level schema the backend emits for an audit workflow.
type UISchema struct {
	Version    string      `json:"ui_schema_version"`
	WorkflowID string      `json:"workflow_id"`
	Phase      string      `json:"phase"`
	Components []Component `json:"components"`
	Actions    []Action    `json:"actions"`
}

// ComponentType names a dashboard widget.
type ComponentType string

const (
	ComponentAuditSummary      ComponentType = "audit_summary"
	ComponentColumnSummary     ComponentType = "column_summary"
	ComponentRowSummary        ComponentType = "row_summary"
	ComponentSchemaDifferences ComponentType = "schema_differences"
	ComponentColumnMatches     ComponentType = "column_matches"
	ComponentDecision          ComponentType = "decision"
	ComponentWarnings          ComponentType = "warnings"
	ComponentError             ComponentType = "error"
)

// Visibility controls component rendering.
type Visibility string

const (
	VisibilityVisible   Visibility = "visible"
	VisibilityHidden    Visibility = "hidden"
	VisibilityCollapsed Visibility = "collapsed"
)

// Component is a single renderable UI element.
type Component struct {
	Type       ComponentType  `json:"type"`
	Title      string         `json:"title"`
	Priority   int            `json:"priority"`
	Visibility Visibility     `json:"visibility"`
	Data       map[string]any `json:"data,omitempty"`
}

// ActionUIType classifies the user-facing action.
type ActionUIType string

const (
	ActionRerun          ActionUIType = "rerun"
	ActionDownloadReport ActionUIType = "download_report"
)

// ConfirmConfig describes confirmation requirements for expensive actions.
type ConfirmConfig struct {
	Required        bool   `json:"required"`
	AcknowledgeText string `json:"acknowledge_text,omitempty"`
}

// Action is a user-triggerable operation from the UI.
type Action struct {
	Type    ActionUIType   `json:"type"`
	Label   string         `json:"label"`
	Href    string         `json:"href,omitempty"`
	Confirm *ConfirmConfig `json:"confirm,omitempty"`
}
