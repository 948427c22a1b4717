// Package config provides application configuration loaded from environment
// variables, and the YAML table registry that drives audits.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gdw-platform/gdw-audit/internal/domain"
)

// Mode determines whether the worker uses stub fixtures or real warehouse connectors.
type Mode string

const (
	ModeStub       Mode = "stub"
	ModeProduction Mode = "production"
)

// Config holds all application configuration.
type Config struct {
	Mode         Mode
	Environment  domain.Environment
	FixturesDir  string
	RegistryPath string
	LogLevel     string
	OTelEnabled  bool
	Workers      int
	RowLimit     int

	// BigQuery source and the gdw_tables_auditing sink.
	GCPProject       string
	GCPCredentials   string
	AuditDataset     string
	AuditTable       string
	BigQueryLocation string

	// Report object sink.
	GCSBucket string
	GCSPrefix string
	ReportDir string

	// Athena source.
	AWSRegion  string
	AWSProfile string
	AWSRoleARN string
	// AWSRoleARNs overrides AWSRoleARN per environment.
	AWSRoleARNs        map[domain.Environment]string
	AthenaWorkgroup    string
	AthenaOutputBucket string

	PostgresDSN string
	DuckDBPath  string

	// Fetch rates per platform, requests per second.
	BigQueryRate float64
	AthenaRate   float64
	PostgresRate float64

	// Audits allowed per table within BudgetWindow.
	BudgetMax    int
	BudgetWindow time.Duration

	TemporalHostPort  string
	TemporalNamespace string
	// WorkerQueues lists the task queues a worker polls, e.g. "audit,sweep".
	WorkerQueues string
	// MaxConcurrentAudits caps AuditTable activities per worker. Zero keeps the queue default.
	MaxConcurrentAudits int

	// API server settings.
	APIPort      string
	CORSOrigins  []string
	OIDCIssuer   string
	OIDCAudience string
	// OIDCWriteGroups may start audits and sweeps. Empty lets any verified caller.
	OIDCWriteGroups []string
}

// OIDCEnabled reports whether bearer-token auth is configured for the API.
func (c Config) OIDCEnabled() bool {
	return c.OIDCIssuer != ""
}

// LoadFromEnv reads configuration from environment variables with sensible defaults.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		Mode:               Mode(envOr("AUDIT_MODE", "stub")),
		FixturesDir:        os.Getenv("FIXTURES_DIR"),
		RegistryPath:       envOr("AUDIT_REGISTRY", "tables.yaml"),
		LogLevel:           envOr("AUDIT_LOG_LEVEL", "info"),
		OTelEnabled:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "",
		GCPProject:         os.Getenv("GCP_PROJECT"),
		GCPCredentials:     os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		AuditDataset:       envOr("AUDIT_BQ_DATASET", "gdw_audit"),
		AuditTable:         envOr("AUDIT_BQ_TABLE", "gdw_tables_auditing"),
		BigQueryLocation:   envOr("AUDIT_BQ_LOCATION", "US"),
		GCSBucket:          os.Getenv("AUDIT_GCS_BUCKET"),
		GCSPrefix:          envOr("AUDIT_GCS_PREFIX", "audits/"),
		ReportDir:          os.Getenv("AUDIT_REPORT_DIR"),
		AWSRegion:          envOr("AWS_REGION", "us-east-1"),
		AWSProfile:         os.Getenv("AWS_PROFILE"),
		AWSRoleARN:         os.Getenv("AUDIT_AWS_ROLE_ARN"),
		AthenaWorkgroup:    envOr("AUDIT_ATHENA_WORKGROUP", "primary"),
		AthenaOutputBucket: os.Getenv("AUDIT_ATHENA_OUTPUT_BUCKET"),
		PostgresDSN:        os.Getenv("AUDIT_POSTGRES_DSN"),
		DuckDBPath:         os.Getenv("AUDIT_DUCKDB_PATH"),
		TemporalHostPort:   envOr("TEMPORAL_HOSTPORT", "localhost:7233"),
		TemporalNamespace:  envOr("TEMPORAL_NAMESPACE", "default"),
		WorkerQueues:       os.Getenv("AUDIT_WORKER_QUEUES"),
		APIPort:            envOr("AUDIT_API_PORT", "8080"),
		CORSOrigins:        parseCORSOrigins(os.Getenv("AUDIT_CORS_ORIGINS")),
		OIDCIssuer:         os.Getenv("AUDIT_OIDC_ISSUER"),
		OIDCAudience:       os.Getenv("AUDIT_OIDC_AUDIENCE"),
		OIDCWriteGroups:    splitList(os.Getenv("AUDIT_OIDC_WRITE_GROUPS")),
	}

	if cfg.Mode != ModeStub && cfg.Mode != ModeProduction {
		return Config{}, fmt.Errorf("config: invalid AUDIT_MODE %q (must be stub or production)", cfg.Mode)
	}

	env, err := domain.ParseEnvironment(envOr("AUDIT_ENVIRONMENT", "dev"))
	if err != nil {
		return Config{}, fmt.Errorf("config: AUDIT_ENVIRONMENT: %w", err)
	}
	cfg.Environment = env

	ints := []struct {
		key  string
		def  int
		dest *int
	}{
		{"AUDIT_WORKERS", 4, &cfg.Workers},
		{"AUDIT_ROW_LIMIT", 1_000_000, &cfg.RowLimit},
		{"AUDIT_BUDGET_MAX", 24, &cfg.BudgetMax},
		{"AUDIT_MAX_CONCURRENT_AUDITS", 0, &cfg.MaxConcurrentAudits},
	}
	for _, f := range ints {
		v, err := envInt(f.key, f.def)
		if err != nil {
			return Config{}, err
		}
		*f.dest = v
	}

	floats := []struct {
		key  string
		def  float64
		dest *float64
	}{
		{"AUDIT_RATE_BIGQUERY", 10, &cfg.BigQueryRate},
		{"AUDIT_RATE_ATHENA", 5, &cfg.AthenaRate},
		{"AUDIT_RATE_POSTGRES", 20, &cfg.PostgresRate},
	}
	for _, f := range floats {
		v, err := envFloat(f.key, f.def)
		if err != nil {
			return Config{}, err
		}
		*f.dest = v
	}

	roles, err := parseRoleARNs(os.Getenv("AUDIT_AWS_ROLE_ARNS"))
	if err != nil {
		return Config{}, err
	}
	cfg.AWSRoleARNs = roles

	window, err := time.ParseDuration(envOr("AUDIT_BUDGET_WINDOW", "1h"))
	if err != nil {
		return Config{}, fmt.Errorf("config: invalid AUDIT_BUDGET_WINDOW: %w", err)
	}
	cfg.BudgetWindow = window

	if cfg.OIDCAudience != "" && cfg.OIDCIssuer == "" {
		return Config{}, fmt.Errorf("config: AUDIT_OIDC_AUDIENCE set without AUDIT_OIDC_ISSUER")
	}

	return cfg, nil
}

// RequirePlatform checks that the settings a connector needs are present.
// Registry validation calls it for every platform the registry references.
func (c Config) RequirePlatform(p Platform) error {
	if c.Mode == ModeStub {
		return nil
	}
	switch p {
	case PlatformBigQuery:
		if c.GCPProject == "" {
			return fmt.Errorf("config: GCP_PROJECT required for platform %s", p)
		}
	case PlatformAthena:
		if c.AthenaOutputBucket == "" {
			return fmt.Errorf("config: AUDIT_ATHENA_OUTPUT_BUCKET required for platform %s", p)
		}
	case PlatformPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("config: AUDIT_POSTGRES_DSN required for platform %s", p)
		}
	case PlatformDuckDB:
		if c.DuckDBPath == "" {
			return fmt.Errorf("config: AUDIT_DUCKDB_PATH required for platform %s", p)
		}
	default:
		return fmt.Errorf("config: unknown platform %q", p)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("config: invalid %s %q (must be a positive integer)", key, raw)
	}
	return v, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("config: invalid %s %q (must be a positive number)", key, raw)
	}
	return v, nil
}

// RoleARNs returns the role per environment, with AWSRoleARN filling every
// environment that has no explicit entry.
func (c Config) RoleARNs() map[domain.Environment]string {
	out := make(map[domain.Environment]string)
	if c.AWSRoleARN != "" {
		for _, env := range []domain.Environment{domain.EnvDev, domain.EnvStg, domain.EnvPrd, domain.EnvTest} {
			out[env] = c.AWSRoleARN
		}
	}
	for env, arn := range c.AWSRoleARNs {
		out[env] = arn
	}
	return out
}

// parseRoleARNs reads "prd=arn:...,stg=arn:..." pairs.
func parseRoleARNs(raw string) (map[domain.Environment]string, error) {
	roles := make(map[domain.Environment]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, arn, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(arn) == "" {
			return nil, fmt.Errorf("config: invalid AUDIT_AWS_ROLE_ARNS entry %q", pair)
		}
		env, err := domain.ParseEnvironment(strings.TrimSpace(name))
		if err != nil {
			return nil, fmt.Errorf("config: AUDIT_AWS_ROLE_ARNS: %w", err)
		}
		roles[env] = strings.TrimSpace(arn)
	}
	return roles, nil
}

func parseCORSOrigins(raw string) []string {
	origins := splitList(raw)
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if t := strings.TrimSpace(o); t != "" {
			out = append(out, t)
		}
	}
	return out
}
