// Command worker-audit runs the Temporal workers for table audits and registry sweeps.
// Supports stub mode (fixtures) and production mode (real warehouse connectors).
package main

import (
	"context"
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/gdw-platform/gdw-audit/internal/config"
	"github.com/gdw-platform/gdw-audit/internal/connectors"
	"github.com/gdw-platform/gdw-audit/internal/observability"
	"github.com/gdw-platform/gdw-audit/internal/ratelimit"
	"github.com/gdw-platform/gdw-audit/internal/reconcile"
	"github.com/gdw-platform/gdw-audit/internal/temporal/activities"
	"github.com/gdw-platform/gdw-audit/internal/temporal/codecs"
	"github.com/gdw-platform/gdw-audit/internal/temporal/queues"
	"github.com/gdw-platform/gdw-audit/internal/temporal/versioning"
	"github.com/gdw-platform/gdw-audit/internal/temporal/workflows"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := observability.InitLogger(cfg.LogLevel)

	reg, err := config.LoadRegistry(cfg.RegistryPath)
	if err != nil {
		log.Fatalf("registry: %v", err)
	}
	if err := reg.CheckDependencies(cfg); err != nil {
		log.Fatalf("registry: %v", err)
	}

	names, err := queues.ParseQueues(cfg.WorkerQueues)
	if err != nil {
		log.Fatalf("queues: %v", err)
	}

	ctx := context.Background()
	var metrics *observability.Metrics
	if cfg.OTelEnabled {
		shutdown, err := observability.InitTracer(ctx, "worker-audit", string(cfg.Environment))
		if err != nil {
			logger.Error("otel init failed", "error", err)
		} else {
			defer shutdown(ctx)
		}
		if metrics, err = observability.NewMetrics(); err != nil {
			logger.Error("metrics init failed", "error", err)
		}
	}

	res, err := connectors.Build(ctx, cfg, reg, logger)
	if err != nil {
		log.Fatalf("connectors: %v", err)
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Warn("closing connectors", "error", err)
		}
	}()

	engine := reconcile.NewEngine(logger, metrics)
	engine.Workers = cfg.Workers

	acts := &activities.Activities{
		Fetcher:      res.Router,
		Sink:         res.Sinks,
		Engine:       engine,
		RegistryPath: cfg.RegistryPath,
		Metrics:      metrics,
		Logger:       logger,
	}
	if cfg.BudgetMax > 0 {
		acts.Budget = ratelimit.NewAuditBudget(cfg.BudgetMax, cfg.BudgetWindow)
	}

	c, err := client.Dial(client.Options{
		HostPort:      cfg.TemporalHostPort,
		Namespace:     cfg.TemporalNamespace,
		Logger:        observability.NewTemporalSlogAdapter(logger),
		DataConverter: codecs.NewDataConverter(),
	})
	if err != nil {
		log.Fatalf("unable to create Temporal client: %v", err)
	}
	defer c.Close()

	configs := queues.WithActivityLimit(queues.DefaultConfigs(), cfg.MaxConcurrentAudits)
	var workers []worker.Worker
	for _, name := range names {
		w := worker.New(c, name, configs[name].Options)
		register(w, name, acts)
		if err := w.Start(); err != nil {
			log.Fatalf("start worker on %s: %v", name, err)
		}
		defer w.Stop()
		workers = append(workers, w)
		logger.Info("worker started", "queue", name, "mode", cfg.Mode, "environment", cfg.Environment)
	}

	<-worker.InterruptCh()
	logger.Info("shutting down", "workers", len(workers))
}

// register binds the workflows and activities each queue serves. Sweep
// children run on the audit queue, so only the audit queue needs
// TableAuditWorkflow.
func register(w worker.Worker, queue string, acts *activities.Activities) {
	switch queue {
	case versioning.QueueAudit:
		w.RegisterWorkflow(workflows.TableAuditWorkflow)
		w.RegisterActivity(acts)
	case versioning.QueueSweep:
		w.RegisterWorkflow(workflows.RegistrySweepWorkflow)
		w.RegisterActivity(acts.LoadRegistry)
	default:
		slog.Warn("no registrations for queue", "queue", queue)
	}
}
