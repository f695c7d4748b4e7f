package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/danshapiro/courier/internal/llm"
	"github.com/danshapiro/courier/internal/pipeline"
	"github.com/danshapiro/courier/internal/route"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"runs":   len(s.registry.List()),
	})
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Request) == "" {
		writeError(w, http.StatusBadRequest, "request is required")
		return
	}
	d, err := s.router(req.Router)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	out, err := d.Route(r.Context(), req.Request)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RouteResponse{Label: string(out.Label), Fallback: out.Fallback, Output: out.Output})
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	var req LedgerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Request) == "" {
		writeError(w, http.StatusBadRequest, "request is required")
		return
	}
	if s.config.Ledger == nil {
		writeError(w, http.StatusNotFound, "ledger is not configured")
		return
	}
	out, err := s.config.Ledger.ComputeTotal(r.Context(), req.Request)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LedgerResponse{Output: out})
}

func (s *Server) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	var req SubmitRunRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		writeError(w, http.StatusBadRequest, "input is required")
		return
	}
	p, err := s.pipeline(req.Pipeline)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	sess := pipeline.NewSession(s.config.AppName, req.UserID)
	ctx, cancel := context.WithCancelCause(s.baseCtx)
	rs := &RunState{
		RunID:       sess.RunID,
		Pipeline:    p.Name(),
		UserID:      sess.UserID,
		Broadcaster: NewBroadcaster(),
		Cancel:      cancel,
		StartedAt:   time.Now().UTC(),
	}
	if err := s.registry.Register(rs); err != nil {
		cancel(nil)
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		defer cancel(nil)
		defer rs.Broadcaster.Close()

		final, err := pipeline.Reduce(tee(p.Events(ctx, sess, req.Input), rs.Broadcaster.Send), nil)
		rs.SetResult(final, err)
		if err != nil {
			s.logger.Warn("run failed", zap.String("run_id", rs.RunID), zap.Error(err))
			return
		}
		s.logger.Info("run finalized", zap.String("run_id", rs.RunID), zap.String("pipeline", rs.Pipeline))
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id": rs.RunID,
		"status": "accepted",
	})
}

// tee passes every successfully produced event to send before yielding it.
func tee(seq iter.Seq2[pipeline.Event, error], send func(pipeline.Event)) iter.Seq2[pipeline.Event, error] {
	return func(yield func(pipeline.Event, error) bool) {
		for ev, err := range seq {
			if err == nil {
				send(ev)
			}
			if !yield(ev, err) {
				return
			}
		}
	}
}

func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) (*RunState, bool) {
	runID := r.PathValue("id")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "run_id is required")
		return nil, false
	}
	rs, ok := s.registry.Get(runID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", runID))
		return nil, false
	}
	return rs, true
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	rs, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rs.Status())
}

func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	rs, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	WriteSSE(w, r, rs.Broadcaster)
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	rs, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	rs.Cancel(fmt.Errorf("canceled via HTTP API"))
	writeJSON(w, http.StatusOK, map[string]string{"status": "canceling"})
}

// writeFailure maps oracle failures to 502 and everything else to 500.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	s.logger.Warn("request failed", zap.Error(err))
	var he *route.HandlerError
	switch {
	case errors.As(err, &he) && !llm.IsOracleError(err):
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "handler failed", Details: err.Error()})
	case llm.IsOracleError(err):
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "completion failed", Details: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}

// --- Helpers ---

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
