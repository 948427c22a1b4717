// Package versioning defines workflow versions and task queue names.
package versioning

const (
	// Workflow versions for determinism tracking.
	TableAuditV1    = "table-audit-v1"
	RegistrySweepV1 = "registry-sweep-v1"

	// Task queues. Sweeps only fan out, so they run on their own queue and
	// never compete with the table audits that do the fetching.
	QueueAudit = "gdw-audit"
	QueueSweep = "gdw-audit-sweep"
)
