// Command api runs the HTTP API server for audit results and the audit UI.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.temporal.io/sdk/client"

	"github.com/gdw-platform/gdw-audit/internal/api"
	"github.com/gdw-platform/gdw-audit/internal/config"
	"github.com/gdw-platform/gdw-audit/internal/observability"
	"github.com/gdw-platform/gdw-audit/internal/temporal/codecs"
	"github.com/gdw-platform/gdw-audit/internal/temporal/querier"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}

	logger := observability.InitLogger(cfg.LogLevel)
	temporalLogger := observability.NewTemporalSlogAdapter(logger)

	if cfg.OTelEnabled {
		shutdown, err := observability.InitTracer(context.Background(), "gdw-audit-api", string(cfg.Environment))
		if err != nil {
			logger.Error("otel init failed", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	reg, err := config.LoadRegistry(cfg.RegistryPath)
	if err != nil {
		logger.Error("registry error", "path", cfg.RegistryPath, "error", err)
		os.Exit(1)
	}

	c, err := client.Dial(client.Options{
		HostPort:      cfg.TemporalHostPort,
		Namespace:     cfg.TemporalNamespace,
		Logger:        temporalLogger,
		DataConverter: codecs.NewDataConverter(),
	})
	if err != nil {
		logger.Error("unable to create Temporal client", "error", err)
		os.Exit(1)
	}
	defer c.Close()

	q := querier.New(c)

	oidcCfg := api.OIDCConfig{
		IssuerURL:   cfg.OIDCIssuer,
		Audience:    cfg.OIDCAudience,
		Enabled:     cfg.OIDCEnabled(),
		WriteGroups: cfg.OIDCWriteGroups,
	}
	srv, err := api.New(q, reg, cfg.CORSOrigins, oidcCfg)
	if err != nil {
		logger.Error("api init failed", "error", err)
		os.Exit(1)
	}

	var handler http.Handler = srv
	if cfg.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "gdw-audit-api")
	}

	addr := ":" + cfg.APIPort
	logger.Info("starting API server", "addr", addr, "oidc_enabled", oidcCfg.Enabled, "tables", len(reg.Tables))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
