// Package agui implements AG-UI protocol SSE streaming for audit workflow state.
package agui

import (
	"time"

	"github.com/gdw-platform/gdw-audit/internal/domain"
	"github.com/gdw-platform/gdw-audit/internal/temporal/workflows"
	"github.com/gdw-platform/gdw-audit/internal/uischema"
)

// EventType identifies an AG-UI event.
type EventType string

// The subset of AG-UI events an audit stream emits. Steps are audit phases.
const (
	EventRunStarted    EventType = "RUN_STARTED"
	EventRunFinished   EventType = "RUN_FINISHED"
	EventRunError      EventType = "RUN_ERROR"
	EventStepStarted   EventType = "STEP_STARTED"
	EventStepFinished  EventType = "STEP_FINISHED"
	EventStateSnapshot EventType = "STATE_SNAPSHOT"
	EventStateDelta    EventType = "STATE_DELTA"
)

// Event is one SSE frame. Data holds one of the *Data types below.
type Event struct {
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id"`
	Data       any       `json:"data,omitempty"`
}

// StateSnapshotData is the full audit result and its rendered UI.
type StateSnapshotData struct {
	Phase    workflows.Phase        `json:"phase"`
	State    *workflows.AuditResult `json:"state"`
	UISchema uischema.UISchema      `json:"ui_schema"`
}

// StateDeltaData carries the result fields that changed since the last frame,
// plus the UI rebuilt from the new state.
type StateDeltaData struct {
	Phase    workflows.Phase   `json:"phase"`
	Patches  []Patch           `json:"patches"`
	UISchema uischema.UISchema `json:"ui_schema"`
}

// Patch is an RFC 6902 operation against the AuditResult JSON.
type Patch struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// StepData names the audit phase entered or left.
type StepData struct {
	Phase workflows.Phase `json:"phase"`
}

// FinishedData closes the stream once the audit has a termination reason.
type FinishedData struct {
	Reason  workflows.TerminationReason `json:"reason"`
	Verdict domain.Verdict              `json:"verdict,omitempty"`
}

// ErrorData carries error info for RUN_ERROR events.
type ErrorData struct {
	Message string `json:"message"`
}
