// Package workflows defines the Temporal workflow functions.
package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/gdw-platform/gdw-audit/internal/config"
	"github.com/gdw-platform/gdw-audit/internal/domain"
	"github.com/gdw-platform/gdw-audit/internal/policy"
	"github.com/gdw-platform/gdw-audit/internal/temporal/activities"
)

// QueryNameState is the Temporal Query handler that returns the in-progress AuditResult.
const QueryNameState = "state"

// Phase is the step a table audit is in.
type Phase string

const (
	PhaseStarted    Phase = "started"
	PhaseAuditing   Phase = "auditing"
	PhaseEvaluated  Phase = "evaluated"
	PhasePersisting Phase = "persisting"
	PhaseCompleted  Phase = "completed"
)

// TerminationReason describes why the workflow ended.
type TerminationReason string

const (
	ReasonCompleted    TerminationReason = "completed"
	ReasonAuditError   TerminationReason = "audit_error"
	ReasonPersistError TerminationReason = "persist_error"
)

// AuditInput is the input to the table audit workflow.
type AuditInput struct {
	Entry       config.TableEntry  `json:"entry"`
	Environment domain.Environment `json:"environment"`
	// SkipPersist evaluates the report without writing it to any sink.
	SkipPersist bool `json:"skip_persist,omitempty"`
}

// AuditResult is the output of the table audit workflow and the value of its
// state query. The workflow returns it on all paths; only infra failures
// produce workflow-level errors.
type AuditResult struct {
	Table       string                `json:"table"`
	Environment domain.Environment    `json:"environment"`
	Phase       Phase                 `json:"phase"`
	Reason      TerminationReason     `json:"reason,omitempty"`
	Report      *domain.AuditReport   `json:"report,omitempty"`
	Decision    *domain.AuditDecision `json:"decision,omitempty"`
	Warnings    []string              `json:"warnings,omitempty"`
	Persisted   int                   `json:"persisted_sinks,omitempty"`
	Error       *string               `json:"error,omitempty"`
}

// Verdict returns the decision's verdict, or "" when the audit never got that far.
func (r AuditResult) Verdict() domain.Verdict {
	if r.Decision == nil {
		return ""
	}
	return r.Decision.Verdict
}

// AuditActivityOptions retries transient fetch failures. Schema conflicts,
// invariant violations and row limits come back non-retryable.
var AuditActivityOptions = workflow.ActivityOptions{
	StartToCloseTimeout: 30 * time.Minute,
	RetryPolicy: &temporal.RetryPolicy{
		InitialInterval:    10 * time.Second,
		BackoffCoefficient: 2,
		MaximumInterval:    5 * time.Minute,
		MaximumAttempts:    3,
	},
}

// PersistActivityOptions retries sink writes more eagerly than fetches.
var PersistActivityOptions = workflow.ActivityOptions{
	StartToCloseTimeout: 2 * time.Minute,
	RetryPolicy: &temporal.RetryPolicy{
		InitialInterval:    5 * time.Second,
		BackoffCoefficient: 2,
		MaximumAttempts:    5,
	},
}

// TableAuditWorkflow reconciles one registry entry. The flow is:
//
//	audit -> evaluate -> persist -> END
//
// Threshold evaluation runs in-workflow (pure function, no I/O).
func TableAuditWorkflow(ctx workflow.Context, input AuditInput) (AuditResult, error) {
	logger := workflow.GetLogger(ctx)
	result := AuditResult{
		Table:       input.Entry.Name,
		Environment: input.Environment,
		Phase:       PhaseStarted,
	}

	if err := workflow.SetQueryHandler(ctx, QueryNameState, func() (AuditResult, error) {
		return result, nil
	}); err != nil {
		return result, fmt.Errorf("register state query: %w", err)
	}

	fail := func(reason TerminationReason, step string, err error) (AuditResult, error) {
		msg := fmt.Sprintf("%s failed: %v", step, err)
		result.Error = &msg
		result.Reason = reason
		logger.Warn("table audit ended early", "table", input.Entry.Name, "reason", reason, "error", err)
		return result, nil
	}

	result.Phase = PhaseAuditing
	var auditOut activities.AuditTableOutput
	err := workflow.ExecuteActivity(workflow.WithActivityOptions(ctx, AuditActivityOptions), "AuditTable", activities.AuditTableInput{
		Entry:       input.Entry,
		Environment: input.Environment,
	}).Get(ctx, &auditOut)
	if err != nil {
		return fail(ReasonAuditError, "audit", err)
	}
	result.Report = &auditOut.Report
	result.Warnings = auditOut.Warnings

	thresholds := domain.DefaultThresholds()
	if input.Entry.Thresholds != nil {
		thresholds = *input.Entry.Thresholds
	}
	decision := policy.NewEvaluator(thresholds).Evaluate(auditOut.Report)
	result.Decision = &decision
	result.Phase = PhaseEvaluated
	logger.Info("audit evaluated", "table", input.Entry.Name, "verdict", decision.Verdict, "details", decision.Details)

	if !input.SkipPersist {
		result.Phase = PhasePersisting
		var persistOut activities.PersistReportOutput
		err = workflow.ExecuteActivity(workflow.WithActivityOptions(ctx, PersistActivityOptions), "PersistReport", activities.PersistReportInput{
			Report:   auditOut.Report,
			Decision: decision,
		}).Get(ctx, &persistOut)
		if err != nil {
			return fail(ReasonPersistError, "persist", err)
		}
		result.Persisted = persistOut.Sinks
	}

	result.Phase = PhaseCompleted
	result.Reason = ReasonCompleted
	return result, nil
}
