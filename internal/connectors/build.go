package connectors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	gbigquery "cloud.google.com/go/bigquery"

	"github.com/gdw-platform/gdw-audit/internal/config"
	awsauth "github.com/gdw-platform/gdw-audit/internal/connectors/aws"
	"github.com/gdw-platform/gdw-audit/internal/connectors/aws/athena"
	"github.com/gdw-platform/gdw-audit/internal/connectors/filesink"
	"github.com/gdw-platform/gdw-audit/internal/connectors/gcp/bigquery"
	"github.com/gdw-platform/gdw-audit/internal/connectors/gcp/gcs"
	"github.com/gdw-platform/gdw-audit/internal/connectors/postgres"
	"github.com/gdw-platform/gdw-audit/internal/connectors/sqldb"
	"github.com/gdw-platform/gdw-audit/internal/domain"
	"github.com/gdw-platform/gdw-audit/internal/ratelimit"
	"github.com/gdw-platform/gdw-audit/internal/testutil"
)

// Resources holds the production router and sinks plus everything that must
// be closed on shutdown.
type Resources struct {
	Router  *Router
	Sinks   *MultiSink
	closers []func() error
}

// Close releases clients and pools in reverse creation order.
func (r *Resources) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Limiter builds the per-platform fetch limiter from config.
func Limiter(cfg config.Config) *ratelimit.PlatformLimiter {
	return ratelimit.NewPlatformLimiter(ratelimit.PlatformRates{
		string(config.PlatformBigQuery): cfg.BigQueryRate,
		string(config.PlatformAthena):   cfg.AthenaRate,
		string(config.PlatformPostgres): cfg.PostgresRate,
	})
}

// BuildProduction connects to every platform the registry uses and to every
// configured report sink.
func BuildProduction(ctx context.Context, cfg config.Config, platforms []config.Platform, logger *slog.Logger) (_ *Resources, err error) {
	res := &Resources{
		Router: NewRouter(Limiter(cfg), cfg.RowLimit),
		Sinks:  NewMultiSink(logger),
	}
	defer func() {
		if err != nil {
			_ = res.Close()
		}
	}()

	var bq *gbigquery.Client
	for _, p := range platforms {
		if err := cfg.RequirePlatform(p); err != nil {
			return nil, err
		}
		switch p {
		case config.PlatformBigQuery:
			if bq, err = res.bigQuery(ctx, cfg, bq); err != nil {
				return nil, err
			}
			res.Router.Register(p, bigquery.NewSource(bigquery.NewReader(bq, cfg.BigQueryLocation)))

		case config.PlatformAthena:
			provider, err := awsauth.NewRoleConfigProvider(cfg.AWSRegion, cfg.AWSProfile, cfg.RoleARNs())
			if err != nil {
				return nil, err
			}
			res.Router.Register(p, athenaSource(provider, cfg.AthenaWorkgroup, cfg.AthenaOutputBucket))

		case config.PlatformPostgres:
			pool, err := postgres.NewPool(ctx, cfg.PostgresDSN, int32(cfg.Workers))
			if err != nil {
				return nil, err
			}
			res.closers = append(res.closers, func() error { pool.Close(); return nil })
			res.Router.Register(p, postgres.NewSource(pool))

		case config.PlatformDuckDB:
			src, db, err := sqldb.OpenDuckDB(ctx, cfg.DuckDBPath)
			if err != nil {
				return nil, err
			}
			res.closers = append(res.closers, db.Close)
			res.Router.Register(p, src)
		}
	}

	if cfg.GCPProject != "" && cfg.AuditTable != "" {
		if bq, err = res.bigQuery(ctx, cfg, bq); err != nil {
			return nil, err
		}
		sink := bigquery.NewSink(bq, cfg.AuditDataset, cfg.AuditTable)
		if err := sink.EnsureTable(ctx); err != nil {
			return nil, err
		}
		res.Sinks.Add("bigquery", sink)
	}
	if cfg.GCSBucket != "" {
		sink, err := gcs.New(ctx, cfg.GCSBucket, cfg.GCSPrefix, cfg.GCPCredentials)
		if err != nil {
			return nil, err
		}
		res.Sinks.Add("gcs", sink)
	}
	if cfg.ReportDir != "" {
		res.Sinks.Add("file", filesink.New(cfg.ReportDir))
	}
	if res.Sinks.Len() == 0 {
		logger.Warn("no report sinks configured; reports are only kept in workflow state")
	}

	return res, nil
}

// BuildStub serves every platform from JSON fixtures under fixturesDir. Only
// the file sink is wired, and only when cfg.ReportDir is set.
func BuildStub(cfg config.Config, fixturesDir string, logger *slog.Logger) *Resources {
	res := &Resources{
		Router: NewRouter(Limiter(cfg), cfg.RowLimit),
		Sinks:  NewMultiSink(logger),
	}
	stub := &testutil.StubSource{FixturesDir: fixturesDir}
	for _, p := range []config.Platform{config.PlatformBigQuery, config.PlatformAthena, config.PlatformPostgres, config.PlatformDuckDB} {
		res.Router.Register(p, stub)
	}
	if cfg.ReportDir != "" {
		res.Sinks.Add("file", filesink.New(cfg.ReportDir))
	}
	return res
}

// Build picks BuildProduction or BuildStub by cfg.Mode.
func Build(ctx context.Context, cfg config.Config, reg config.Registry, logger *slog.Logger) (*Resources, error) {
	if cfg.Mode == config.ModeProduction {
		return BuildProduction(ctx, cfg, reg.Platforms(), logger)
	}
	dir := cfg.FixturesDir
	if dir == "" {
		dir = testutil.FixturesDir()
	}
	return BuildStub(cfg, dir, logger), nil
}

// bigQuery lazily creates the single BigQuery client shared by source and sink.
func (r *Resources) bigQuery(ctx context.Context, cfg config.Config, existing *gbigquery.Client) (*gbigquery.Client, error) {
	if existing != nil {
		return existing, nil
	}
	client, err := bigquery.NewClient(ctx, cfg.GCPProject, cfg.GCPCredentials)
	if err != nil {
		return nil, err
	}
	r.closers = append(r.closers, client.Close)
	return client, nil
}

// athenaSource resolves the AWS config for the table's environment on each fetch.
func athenaSource(provider *awsauth.RoleConfigProvider, workgroup, outputLoc string) Source {
	return SourceFunc(func(ctx context.Context, req domain.FetchRequest) (domain.TableData, error) {
		awsCfg, err := provider.ForEnvironment(ctx, req.Table.Environment)
		if err != nil {
			return domain.TableData{}, fmt.Errorf("athena: %w", err)
		}
		return athena.New(awsCfg, workgroup, outputLoc).Fetch(ctx, req)
	})
}
