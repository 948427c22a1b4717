package agui_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdw-platform/gdw-audit/internal/agui"
	"github.com/gdw-platform/gdw-audit/internal/domain"
	"github.com/gdw-platform/gdw-audit/internal/temporal/querier"
	"github.com/gdw-platform/gdw-audit/internal/temporal/workflows"
)

// stubQuerier returns states in order, repeating the last one.
type stubQuerier struct {
	mu     sync.Mutex
	states []workflows.AuditResult
	calls  int
	err    error
}

func (s *stubQuerier) ListAudits(_ context.Context, _ querier.ListOptions) ([]querier.WorkflowSummary, error) {
	return nil, nil
}

func (s *stubQuerier) GetAuditResult(_ context.Context, _ string) (*workflows.AuditResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	i := s.calls
	if i >= len(s.states) {
		i = len(s.states) - 1
	}
	s.calls++
	st := s.states[i]
	return &st, nil
}

func (s *stubQuerier) GetSweepResult(_ context.Context, _ string) (*workflows.SweepResult, error) {
	return nil, nil
}

func (s *stubQuerier) DescribeAudit(_ context.Context, _ string) (*querier.WorkflowDescription, error) {
	return nil, nil
}

func (s *stubQuerier) StartAudit(_ context.Context, _ workflows.AuditInput) (querier.WorkflowRef, error) {
	return querier.WorkflowRef{}, nil
}

func (s *stubQuerier) StartSweep(_ context.Context, _ workflows.SweepInput) (querier.WorkflowRef, error) {
	return querier.WorkflowRef{}, nil
}

func serve(t *testing.T, q querier.AuditQuerier) *http.Response {
	t.Helper()
	cfg := agui.StreamConfig{PollInterval: 20 * time.Millisecond, MaxDuration: 5 * time.Second}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/audits/{id}/stream", agui.StreamHandler(q, cfg))
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL + "/api/v1/audits/wf-1/stream")
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestStreamHandler_CompletedWorkflow(t *testing.T) {
	q := &stubQuerier{states: []workflows.AuditResult{{
		Table:    "orders",
		Phase:    workflows.PhaseCompleted,
		Reason:   workflows.ReasonCompleted,
		Decision: &domain.AuditDecision{Verdict: domain.VerdictPass},
	}}}

	resp := serve(t, q)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := parseSSE(t, resp)
	require.Len(t, events, 3)
	assert.Equal(t, "RUN_STARTED", events[0].Type)
	assert.Equal(t, "STATE_SNAPSHOT", events[1].Type)
	assert.Equal(t, "RUN_FINISHED", events[2].Type)
	var finished struct {
		Data agui.FinishedData `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(events[2].Data), &finished))
	assert.Equal(t, workflows.ReasonCompleted, finished.Data.Reason)
	assert.Equal(t, domain.VerdictPass, finished.Data.Verdict)
}

func TestStreamHandler_FollowsPhases(t *testing.T) {
	q := &stubQuerier{states: []workflows.AuditResult{
		{Table: "orders", Phase: workflows.PhaseAuditing},
		{Table: "orders", Phase: workflows.PhaseAuditing},
		{
			Table:    "orders",
			Phase:    workflows.PhaseCompleted,
			Reason:   workflows.ReasonCompleted,
			Decision: &domain.AuditDecision{Verdict: domain.VerdictWarn},
		},
	}}

	events := parseSSE(t, serve(t, q))
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	assert.Equal(t, []string{
		"RUN_STARTED", "STATE_SNAPSHOT",
		"STEP_FINISHED", "STEP_STARTED", "STATE_DELTA",
		"RUN_FINISHED",
	}, types)

	var delta struct {
		Data agui.StateDeltaData `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(events[4].Data), &delta))
	assert.Equal(t, workflows.PhaseCompleted, delta.Data.Phase)
	assert.NotEmpty(t, delta.Data.Patches)
}

func TestStreamHandler_ErrorQuerying(t *testing.T) {
	events := parseSSE(t, serve(t, &stubQuerier{err: assert.AnError}))
	require.Len(t, events, 2)
	assert.Equal(t, "RUN_STARTED", events[0].Type)
	assert.Equal(t, "RUN_ERROR", events[1].Type)
}

type sseEvent struct {
	Type string
	Data string
}

func parseSSE(t *testing.T, resp *http.Response) []sseEvent {
	t.Helper()
	var events []sseEvent
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var current sseEvent
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			current.Type = strings.TrimPrefix(line, "event: ")
		} else if strings.HasPrefix(line, "data: ") {
			current.Data = strings.TrimPrefix(line, "data: ")
		} else if line == "" && current.Type != "" {
			events = append(events, current)
			current = sseEvent{}
		}
	}
	return events
}

func TestEventSerialization(t *testing.T) {
	event := agui.Event{
		Type:       agui.EventRunStarted,
		Timestamp:  time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		WorkflowID: "wf-test",
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "RUN_STARTED", decoded["type"])
	assert.Equal(t, "wf-test", decoded["workflow_id"])
}
