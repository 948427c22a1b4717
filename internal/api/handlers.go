package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gdw-platform/gdw-audit/internal/config"
	"github.com/gdw-platform/gdw-audit/internal/domain"
	"github.com/gdw-platform/gdw-audit/internal/temporal/querier"
	"github.com/gdw-platform/gdw-audit/internal/temporal/workflows"
	"github.com/gdw-platform/gdw-audit/internal/uischema"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type tableView struct {
	Name   string             `json:"name"`
	Source string             `json:"source"`
	Target string             `json:"target"`
	Keys   []string           `json:"key_columns,omitempty"`
	Limits *domain.Thresholds `json:"thresholds,omitempty"`
}

func (s *Server) handleListTables(w http.ResponseWriter, _ *http.Request) {
	out := make([]tableView, 0, len(s.registry.Tables))
	for _, e := range s.registry.Tables {
		out = append(out, tableView{
			Name:   e.Name,
			Source: specLabel(e.Source),
			Target: specLabel(e.Target),
			Keys:   e.KeyColumns,
			Limits: e.Thresholds,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// specLabel renders a table spec as platform:[project.]dataset.table.
func specLabel(t config.TableSpec) string {
	name := t.Dataset + "." + t.Table
	if t.Project != "" {
		name = t.Project + "." + name
	}
	return fmt.Sprintf("%s:%s", t.Platform, name)
}

func (s *Server) handleListAudits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := querier.ListOptions{StatusFilter: q.Get("status")}
	switch q.Get("type") {
	case "", "audit":
		opts.WorkflowType = querier.TypeTableAudit
	case "sweep":
		opts.WorkflowType = querier.TypeRegistrySweep
	case "all":
	default:
		writeError(w, http.StatusBadRequest, "type must be audit, sweep or all")
		return
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		opts.PageSize = n
	}

	audits, err := s.querier.ListAudits(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, audits)
}

type startAuditRequest struct {
	Table       string `json:"table"`
	Environment string `json:"environment"`
	SkipPersist bool   `json:"skip_persist,omitempty"`
}

func (s *Server) handleStartAudit(w http.ResponseWriter, r *http.Request) {
	var body startAuditRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	entry, ok := s.registry.Lookup(body.Table)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("registry has no table %q", body.Table))
		return
	}
	env, err := domain.ParseEnvironment(body.Environment)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ref, err := s.querier.StartAudit(r.Context(), workflows.AuditInput{
		Entry:       entry,
		Environment: env,
		SkipPersist: body.SkipPersist,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	slog.Info("audit started", "table", entry.Name, "environment", env, "workflow_id", ref.WorkflowID, "by", UserFromContext(r.Context()))
	writeJSON(w, http.StatusAccepted, ref)
}

type startSweepRequest struct {
	Environment string   `json:"environment"`
	Tables      []string `json:"tables,omitempty"`
	SkipPersist bool     `json:"skip_persist,omitempty"`
}

func (s *Server) handleStartSweep(w http.ResponseWriter, r *http.Request) {
	var body startSweepRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	env, err := domain.ParseEnvironment(body.Environment)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, name := range body.Tables {
		if _, ok := s.registry.Lookup(name); !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("registry has no table %q", name))
			return
		}
	}

	ref, err := s.querier.StartSweep(r.Context(), workflows.SweepInput{
		Environment: env,
		Tables:      body.Tables,
		SkipPersist: body.SkipPersist,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	slog.Info("sweep started", "environment", env, "tables", len(body.Tables), "workflow_id", ref.WorkflowID, "by", UserFromContext(r.Context()))
	writeJSON(w, http.StatusAccepted, ref)
}

func (s *Server) auditResult(w http.ResponseWriter, r *http.Request) (string, *workflows.AuditResult, bool) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "workflow id required")
		return "", nil, false
	}
	result, err := s.querier.GetAuditResult(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return "", nil, false
	}
	return id, result, true
}

func (s *Server) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	if _, result, ok := s.auditResult(w, r); ok {
		writeJSON(w, http.StatusOK, result)
	}
}

// handleGetReport returns only the gdw_tables_auditing record.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id, result, ok := s.auditResult(w, r)
	if !ok {
		return
	}
	if result.Report == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("audit %s has no report (phase %s)", id, result.Phase))
		return
	}
	writeJSON(w, http.StatusOK, result.Report)
}

func (s *Server) handleGetAuditUI(w http.ResponseWriter, r *http.Request) {
	if id, result, ok := s.auditResult(w, r); ok {
		writeJSON(w, http.StatusOK, uischema.Build(id, *result))
	}
}

func (s *Server) handleDescribeAudit(w http.ResponseWriter, r *http.Request) {
	desc, err := s.querier.DescribeAudit(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

func (s *Server) handleGetSweep(w http.ResponseWriter, r *http.Request) {
	result, err := s.querier.GetSweepResult(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}
