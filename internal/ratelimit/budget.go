package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// AuditBudget caps how often one table pair may be audited within a time window,
// so a misconfigured schedule cannot hammer the warehouses.
type AuditBudget struct {
	mu     sync.Mutex
	counts map[string]*windowCounter

	maxPerWindow int
	windowSize   time.Duration
	now          func() time.Time
}

type windowCounter struct {
	count     int
	windowEnd time.Time
}

// NewAuditBudget creates a budget limiter.
// maxPerWindow limits audits per (environment, table) within windowSize.
func NewAuditBudget(maxPerWindow int, windowSize time.Duration) *AuditBudget {
	return &AuditBudget{
		counts:       make(map[string]*windowCounter),
		maxPerWindow: maxPerWindow,
		windowSize:   windowSize,
		now:          time.Now,
	}
}

func budgetKey(environment, table string) string {
	return environment + "|" + table
}

// Check returns an error if the table has exhausted its budget.
func (b *AuditBudget) Check(environment, table string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	wc, ok := b.counts[budgetKey(environment, table)]
	if !ok || b.now().After(wc.windowEnd) {
		return nil // no window or expired window
	}
	if wc.count >= b.maxPerWindow {
		return fmt.Errorf("audit budget exceeded: %s table %s (%d/%d in window)",
			environment, table, wc.count, b.maxPerWindow)
	}
	return nil
}

// Record records an audit of the table.
func (b *AuditBudget) Record(environment, table string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := budgetKey(environment, table)
	wc, ok := b.counts[key]
	if !ok || b.now().After(wc.windowEnd) {
		b.counts[key] = &windowCounter{
			count:     1,
			windowEnd: b.now().Add(b.windowSize),
		}
		return
	}
	wc.count++
}

// Take checks and records in one step.
func (b *AuditBudget) Take(environment, table string) error {
	if err := b.Check(environment, table); err != nil {
		return err
	}
	b.Record(environment, table)
	return nil
}
