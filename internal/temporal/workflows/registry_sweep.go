package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/gdw-platform/gdw-audit/internal/domain"
	"github.com/gdw-platform/gdw-audit/internal/temporal/activities"
	"github.com/gdw-platform/gdw-audit/internal/temporal/versioning"
)

// SweepInput selects the registry entries to audit.
type SweepInput struct {
	Environment domain.Environment `json:"environment"`
	// Tables limits the sweep to named entries. Empty audits the whole registry.
	Tables      []string `json:"tables,omitempty"`
	SkipPersist bool     `json:"skip_persist,omitempty"`
}

// SweepResult summarizes the sweep outcome.
type SweepResult struct {
	TablesAudited int                       `json:"tables_audited"`
	Passed        int                       `json:"passed"`
	Warned        int                       `json:"warned"`
	Failed        int                       `json:"failed"`
	Errored       int                       `json:"errored"`
	Verdicts      map[string]domain.Verdict `json:"verdicts"`
}

// Worst returns the most severe verdict of the sweep. Errored tables count as fail.
func (r SweepResult) Worst() domain.Verdict {
	if r.Failed > 0 || r.Errored > 0 {
		return domain.VerdictFail
	}
	if r.Warned > 0 {
		return domain.VerdictWarn
	}
	return domain.VerdictPass
}

// RegistrySweepWorkflow loads the registry and runs one child
// TableAuditWorkflow per entry. Children run concurrently; a failed child is
// counted and the sweep carries on.
func RegistrySweepWorkflow(ctx workflow.Context, input SweepInput) (SweepResult, error) {
	logger := workflow.GetLogger(ctx)
	result := SweepResult{Verdicts: map[string]domain.Verdict{}}

	actCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	})

	var reg activities.LoadRegistryOutput
	if err := workflow.ExecuteActivity(actCtx, "LoadRegistry", activities.LoadRegistryInput{
		Tables: input.Tables,
	}).Get(ctx, &reg); err != nil {
		return result, fmt.Errorf("load registry: %w", err)
	}

	parentID := workflow.GetInfo(ctx).WorkflowExecution.ID
	futures := make([]workflow.ChildWorkflowFuture, len(reg.Entries))
	for i, entry := range reg.Entries {
		childCtx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
			WorkflowID: parentID + "/" + entry.Name,
			TaskQueue:  versioning.QueueAudit,
			Memo:       map[string]any{"version": versioning.TableAuditV1, "table": entry.Name},
		})
		futures[i] = workflow.ExecuteChildWorkflow(childCtx, TableAuditWorkflow, AuditInput{
			Entry:       entry,
			Environment: input.Environment,
			SkipPersist: input.SkipPersist,
		})
	}

	for i, f := range futures {
		name := reg.Entries[i].Name
		result.TablesAudited++

		var child AuditResult
		if err := f.Get(ctx, &child); err != nil {
			logger.Warn("child workflow failed", "table", name, "error", err)
			result.Errored++
			continue
		}
		if child.Reason != ReasonCompleted {
			result.Errored++
			continue
		}

		v := child.Verdict()
		result.Verdicts[name] = v
		switch v {
		case domain.VerdictPass:
			result.Passed++
		case domain.VerdictWarn:
			result.Warned++
		default:
			result.Failed++
		}
	}

	logger.Info("registry sweep complete",
		"tables", result.TablesAudited,
		"passed", result.Passed,
		"warned", result.Warned,
		"failed", result.Failed,
		"errored", result.Errored,
	)
	return result, nil
}
