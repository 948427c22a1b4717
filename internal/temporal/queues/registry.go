// Package queues defines per-queue worker configuration for task-queue partitioning.
package queues

import (
	"fmt"
	"strings"

	"go.temporal.io/sdk/worker"

	"github.com/gdw-platform/gdw-audit/internal/temporal/versioning"
)

// QueueConfig holds worker options for a single task queue.
type QueueConfig struct {
	Name    string
	Options worker.Options
}

// DefaultConfigs returns the standard per-queue worker options.
//
//   - QueueAudit: fetch-heavy activities, each holding a table in memory
//   - QueueSweep: fan-out workflows with a single registry read
func DefaultConfigs() map[string]QueueConfig {
	return map[string]QueueConfig{
		versioning.QueueAudit: {
			Name: versioning.QueueAudit,
			Options: worker.Options{
				MaxConcurrentActivityExecutionSize:     4,
				MaxConcurrentWorkflowTaskExecutionSize: 10,
			},
		},
		versioning.QueueSweep: {
			Name: versioning.QueueSweep,
			Options: worker.Options{
				MaxConcurrentActivityExecutionSize:     2,
				MaxConcurrentWorkflowTaskExecutionSize: 5,
			},
		},
	}
}

// WithActivityLimit overrides the audit queue's activity concurrency.
// Non-positive limits leave the defaults alone.
func WithActivityLimit(configs map[string]QueueConfig, limit int) map[string]QueueConfig {
	if limit <= 0 {
		return configs
	}
	if cfg, ok := configs[versioning.QueueAudit]; ok {
		cfg.Options.MaxConcurrentActivityExecutionSize = limit
		configs[versioning.QueueAudit] = cfg
	}
	return configs
}

// ParseQueues parses a comma-separated queue list (e.g. "audit,sweep")
// into a set of queue names. Accepts both short names ("audit") and
// full names ("gdw-audit"). Returns an error for unknown queues.
func ParseQueues(raw string) ([]string, error) {
	all := []string{versioning.QueueAudit, versioning.QueueSweep}
	if raw == "" {
		return all, nil
	}

	shortNames := map[string]string{
		"audit": versioning.QueueAudit,
		"sweep": versioning.QueueSweep,
	}
	fullNames := map[string]bool{
		versioning.QueueAudit: true,
		versioning.QueueSweep: true,
	}

	seen := make(map[string]bool)
	var result []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if full, ok := shortNames[name]; ok {
			name = full
		}
		if !fullNames[name] {
			return nil, fmt.Errorf("unknown queue %q", name)
		}
		if !seen[name] {
			seen[name] = true
			result = append(result, name)
		}
	}
	if len(result) == 0 {
		return all, nil
	}
	return result, nil
}
