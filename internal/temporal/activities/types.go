// Package activities defines the Temporal activity I/O structs and the
// Activities implementation that bridges Temporal's serialization boundary
// to the connectors and the reconciliation engine.
package activities

import (
	"github.com/gdw-platform/gdw-audit/internal/config"
	"github.com/gdw-platform/gdw-audit/internal/domain"
)

// AuditTableInput is the activity input for one table audit.
type AuditTableInput struct {
	Entry       config.TableEntry  `json:"entry"`
	Environment domain.Environment `json:"environment"`
}

// AuditTableOutput is the activity output from one table audit.
type AuditTableOutput struct {
	Report     domain.AuditReport `json:"report"`
	Warnings   []string           `json:"warnings,omitempty"`
	SourceRows int                `json:"source_rows"`
	TargetRows int                `json:"target_rows"`
}

// PersistReportInput is the activity input for writing a report to the sinks.
type PersistReportInput struct {
	Report   domain.AuditReport   `json:"report"`
	Decision domain.AuditDecision `json:"decision"`
}

// PersistReportOutput reports how many sinks accepted the report.
type PersistReportOutput struct {
	Sinks int `json:"sinks"`
}

// LoadRegistryInput optionally restricts the sweep to named entries.
type LoadRegistryInput struct {
	Tables []string `json:"tables,omitempty"`
}

// LoadRegistryOutput carries the registry entries to audit, defaults applied.
type LoadRegistryOutput struct {
	Entries []config.TableEntry `json:"entries"`
}

// Error types of non-retryable application errors.
const (
	ErrTypeSchemaConflict     = "SchemaConflict"
	ErrTypeInvariantViolation = "InvariantViolation"
	ErrTypeRowLimit           = "RowLimitExceeded"
	ErrTypeBudget             = "AuditBudgetExceeded"
	ErrTypeUnpublishable      = "Unpublishable"
	ErrTypeRegistry           = "InvalidRegistry"
)
