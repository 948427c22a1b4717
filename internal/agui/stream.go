package agui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/gdw-platform/gdw-audit/internal/temporal/querier"
	"github.com/gdw-platform/gdw-audit/internal/temporal/workflows"
	"github.com/gdw-platform/gdw-audit/internal/uischema"
)

// StreamConfig controls SSE stream behavior.
type StreamConfig struct {
	PollInterval time.Duration
	MaxDuration  time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() StreamConfig {
	return StreamConfig{
		PollInterval: 2 * time.Second,
		MaxDuration:  30 * time.Minute,
	}
}

// StreamHandler serves SSE events for an audit workflow's state changes.
func StreamHandler(q querier.AuditQuerier, cfg StreamConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wfID := r.PathValue("id")
		if wfID == "" {
			http.Error(w, "workflow id required", http.StatusBadRequest)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		ctx, cancel := context.WithTimeout(r.Context(), cfg.MaxDuration)
		defer cancel()

		emit := func(t EventType, data any) {
			writeSSE(w, flusher, Event{Type: t, Timestamp: time.Now().UTC(), WorkflowID: wfID, Data: data})
		}

		emit(EventRunStarted, nil)

		result, err := q.GetAuditResult(ctx, wfID)
		if err != nil {
			emit(EventRunError, ErrorData{Message: err.Error()})
			return
		}
		emit(EventStateSnapshot, StateSnapshotData{
			Phase:    result.Phase,
			State:    result,
			UISchema: uischema.Build(wfID, *result),
		})
		if finished(result) {
			emit(EventRunFinished, FinishedData{Reason: result.Reason, Verdict: result.Verdict()})
			return
		}

		ticker := time.NewTicker(cfg.PollInterval)
		defer ticker.Stop()

		prev := *result
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				result, err = q.GetAuditResult(ctx, wfID)
				if err != nil {
					emit(EventRunError, ErrorData{Message: err.Error()})
					return
				}

				if result.Phase != prev.Phase {
					emit(EventStepFinished, StepData{Phase: prev.Phase})
					emit(EventStepStarted, StepData{Phase: result.Phase})
				}

				if patches := computePatches(prev, *result); len(patches) > 0 {
					emit(EventStateDelta, StateDeltaData{
						Phase:    result.Phase,
						Patches:  patches,
						UISchema: uischema.Build(wfID, *result),
					})
				}

				if finished(result) {
					emit(EventRunFinished, FinishedData{Reason: result.Reason, Verdict: result.Verdict()})
					return
				}
				prev = *result
			}
		}
	}
}

func finished(r *workflows.AuditResult) bool {
	return r.Reason != ""
}

// computePatches compares the top-level fields of two audit results.
func computePatches(prev, cur workflows.AuditResult) []Patch {
	var patches []Patch
	field := func(path string, before, after any, present bool) {
		if reflect.DeepEqual(before, after) {
			return
		}
		switch {
		case !present:
			patches = append(patches, Patch{Op: "remove", Path: path})
		case reflect.ValueOf(before).IsZero():
			patches = append(patches, Patch{Op: "add", Path: path, Value: after})
		default:
			patches = append(patches, Patch{Op: "replace", Path: path, Value: after})
		}
	}
	field("/phase", prev.Phase, cur.Phase, true)
	field("/reason", prev.Reason, cur.Reason, cur.Reason != "")
	field("/report", prev.Report, cur.Report, cur.Report != nil)
	field("/decision", prev.Decision, cur.Decision, cur.Decision != nil)
	field("/warnings", prev.Warnings, cur.Warnings, len(cur.Warnings) > 0)
	field("/persisted_sinks", prev.Persisted, cur.Persisted, true)
	field("/error", prev.Error, cur.Error, cur.Error != nil)
	return patches
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
	flusher.Flush()
}
