// Package api serves the audit HTTP API: registry listing, audit and sweep
// starts, results, stored reports and AG-UI streams.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/gdw-platform/gdw-audit/internal/agui"
	"github.com/gdw-platform/gdw-audit/internal/config"
	"github.com/gdw-platform/gdw-audit/internal/temporal/querier"
)

// Server is the HTTP API server for table audits.
type Server struct {
	querier  querier.AuditQuerier
	registry config.Registry
	mux      *http.ServeMux
	handler  http.Handler
}

// New creates a Server with the given querier, registry, CORS origins and
// optional OIDC bearer-token auth.
func New(q querier.AuditQuerier, reg config.Registry, corsOrigins []string, oidcCfg OIDCConfig) (*Server, error) {
	s := &Server{querier: q, registry: reg, mux: http.NewServeMux()}
	s.routes()

	var h http.Handler = s.mux
	if oidcCfg.Enabled {
		provider, err := oidc.NewProvider(context.Background(), oidcCfg.IssuerURL)
		if err != nil {
			return nil, fmt.Errorf("oidc provider %s: %w", oidcCfg.IssuerURL, err)
		}
		h = oidcAuth(provider, oidcCfg.Audience, oidcCfg.WriteGroups)(h)
	}
	s.handler = requestID(logging(cors(corsOrigins, h)))
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/tables", s.handleListTables)
	s.mux.HandleFunc("GET /api/v1/audits", s.handleListAudits)
	s.mux.HandleFunc("POST /api/v1/audits", s.handleStartAudit)
	s.mux.HandleFunc("GET /api/v1/audits/{id}", s.handleGetAudit)
	s.mux.HandleFunc("GET /api/v1/audits/{id}/describe", s.handleDescribeAudit)
	s.mux.HandleFunc("GET /api/v1/audits/{id}/report", s.handleGetReport)
	s.mux.HandleFunc("GET /api/v1/audits/{id}/ui", s.handleGetAuditUI)
	s.mux.HandleFunc("GET /api/v1/audits/{id}/stream", agui.StreamHandler(s.querier, agui.DefaultConfig()))
	s.mux.HandleFunc("POST /api/v1/sweeps", s.handleStartSweep)
	s.mux.HandleFunc("GET /api/v1/sweeps/{id}", s.handleGetSweep)
}
