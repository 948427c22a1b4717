// Package connectors routes table fetches to the warehouse a registry entry
// names and fans finished reports out to every configured sink.
package connectors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gdw-platform/gdw-audit/internal/config"
	"github.com/gdw-platform/gdw-audit/internal/domain"
	"github.com/gdw-platform/gdw-audit/internal/ratelimit"
)

// Source materializes one table.
type Source interface {
	Fetch(ctx context.Context, req domain.FetchRequest) (domain.TableData, error)
}

// Sink persists a finished report.
type Sink interface {
	Write(ctx context.Context, report domain.AuditReport) error
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, req domain.FetchRequest) (domain.TableData, error)

func (f SourceFunc) Fetch(ctx context.Context, req domain.FetchRequest) (domain.TableData, error) {
	return f(ctx, req)
}

// Router dispatches fetches by platform, waiting on the platform's rate limit
// first. Registering is not safe concurrently with Fetch.
type Router struct {
	sources  map[config.Platform]Source
	limiter  *ratelimit.PlatformLimiter
	rowLimit int
}

// NewRouter creates an empty router. A zero rowLimit disables the row cap.
func NewRouter(limiter *ratelimit.PlatformLimiter, rowLimit int) *Router {
	return &Router{
		sources:  make(map[config.Platform]Source),
		limiter:  limiter,
		rowLimit: rowLimit,
	}
}

// Register installs the source for a platform, replacing any previous one.
func (r *Router) Register(p config.Platform, s Source) {
	r.sources[p] = s
}

// Platforms lists the registered platforms.
func (r *Router) Platforms() []config.Platform {
	out := make([]config.Platform, 0, len(r.sources))
	for p := range r.sources {
		out = append(out, p)
	}
	return out
}

// Fetch reads the table a spec locates. Tables with more rows than the row cap
// fail with a RowLimitError instead of being silently truncated.
func (r *Router) Fetch(ctx context.Context, spec config.TableSpec, env domain.Environment) (domain.TableData, error) {
	src, ok := r.sources[spec.Platform]
	if !ok {
		return domain.TableData{}, fmt.Errorf("connectors: no source registered for platform %q", spec.Platform)
	}

	limit := 0
	if r.rowLimit > 0 {
		limit = r.rowLimit + 1
	}
	req, err := spec.Request(env, limit)
	if err != nil {
		return domain.TableData{}, fmt.Errorf("connectors: %w", err)
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx, string(spec.Platform)); err != nil {
			return domain.TableData{}, fmt.Errorf("connectors: %w", err)
		}
	}

	td, err := src.Fetch(ctx, req)
	if err != nil {
		return domain.TableData{}, err
	}
	if r.rowLimit > 0 && len(td.Rows) > r.rowLimit {
		return domain.TableData{}, &domain.RowLimitError{Table: req.Table.FullID(), Limit: r.rowLimit}
	}
	return td, nil
}

// MultiSink writes to every sink concurrently and joins their errors.
type MultiSink struct {
	sinks  []namedSink
	logger *slog.Logger
}

type namedSink struct {
	name string
	sink Sink
}

func NewMultiSink(logger *slog.Logger) *MultiSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiSink{logger: logger}
}

// Add appends a sink under a name used in logs and errors.
func (m *MultiSink) Add(name string, s Sink) {
	m.sinks = append(m.sinks, namedSink{name: name, sink: s})
}

// Len reports how many sinks are configured.
func (m *MultiSink) Len() int { return len(m.sinks) }

func (m *MultiSink) Write(ctx context.Context, report domain.AuditReport) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, ns := range m.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ns.sink.Write(ctx, report); err != nil {
				m.logger.Error("sink write failed", "sink", ns.name,
					"source_table", report.SourceTable, "target_table", report.TargetTable, "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", ns.name, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}
