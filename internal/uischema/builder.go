package uischema

import (
	"github.com/gdw-platform/gdw-audit/internal/domain"
	"github.com/gdw-platform/gdw-audit/internal/temporal/workflows"
)

const schemaVersion = "v1"

// Build constructs a UISchema from the current audit result.
// The schema drives what the frontend renders -- no raw JSX from the backend.
func Build(workflowID string, res workflows.AuditResult) UISchema {
	schema := UISchema{
		Version:    schemaVersion,
		WorkflowID: workflowID,
		Phase:      string(res.Phase),
	}

	schema.Components = append(schema.Components, auditSummary(res))

	if len(res.Warnings) > 0 {
		schema.Components = append(schema.Components, warnings(res.Warnings))
	}

	if res.Report != nil {
		r := res.Report
		schema.Components = append(schema.Components, columnSummary(r), rowSummary(r))
		if len(r.SchemaDifferences) > 0 {
			schema.Components = append(schema.Components, schemaDifferences(r))
		}
		schema.Components = append(schema.Components, columnMatches(r))
		schema.Actions = append(schema.Actions, Action{
			Type:  ActionDownloadReport,
			Label: "Download Report",
			Href:  "/api/v1/audits/" + workflowID + "/report",
		})
	}

	if res.Decision != nil {
		schema.Components = append(schema.Components, decision(res.Decision))
	}

	if res.Error != nil {
		schema.Components = append(schema.Components, errorPanel(res))
	}

	// Finished audits that did not pass can be run again.
	if res.Reason != "" && (res.Error != nil || res.Verdict() == domain.VerdictFail) {
		schema.Actions = append(schema.Actions, Action{
			Type:  ActionRerun,
			Label: "Re-run Audit",
			Confirm: &ConfirmConfig{
				Required:        true,
				AcknowledgeText: "Re-running reads both tables in full again",
			},
		})
	}

	return schema
}
