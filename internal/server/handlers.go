package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ksasa/router/internal/adapter"
	"github.com/ksasa/router/internal/audit"
	"github.com/ksasa/router/internal/evidence"
	"github.com/ksasa/router/internal/gate"
	"github.com/ksasa/router/internal/hitl"
	"github.com/ksasa/router/internal/orchestrator"
	"github.com/ksasa/router/internal/telemetry"
)

// #region health
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var snap telemetry.Snapshot
	if s.d.Metrics != nil {
		snap = s.d.Metrics.Snapshot()
	}
	writeJSON(w, http.StatusOK, snap)
}

// #endregion health

// #region chat
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.route(r.Context(), req))
}

func (s *Server) handleSMS(w http.ResponseWriter, r *http.Request) {
	var in SMSInbound
	if !decode(w, r, &in) {
		return
	}
	userID := in.UserID
	if userID == "" {
		userID = in.FromNumber
	}
	domain := in.Domain
	if domain == "" {
		domain = string(orchestrator.DomainEducation)
	}
	writeJSON(w, http.StatusOK, s.route(r.Context(), ChatRequest{
		UserID:  userID,
		Channel: "sms",
		Domain:  domain,
		Message: in.Text,
		Context: adapter.Context{"session_id": in.SessionID},
	}))
}

// route runs one request through the orchestrator and records it in metrics,
// telemetry and audit. Recording failures never change the reply.
func (s *Server) route(ctx context.Context, req ChatRequest) ChatResponse {
	start := time.Now()
	auditID := "audit-" + uuid.New().String()
	domain, _ := orchestrator.ParseDomain(req.Domain)

	c := adapter.Context{}
	maps.Copy(c, req.Context)
	c["channel"] = req.Channel
	c["user_id"] = req.UserID
	c["audit_id"] = auditID

	reply := s.d.Orchestrator.Handle(ctx, domain, req.Message, c)
	success := reply.Audit["status"] != orchestrator.StatusUnsupported
	latencyMs := float64(time.Since(start).Microseconds()) / 1000

	if s.d.Metrics != nil {
		s.d.Metrics.Record(ctx, latencyMs, success)
	}
	if s.d.Telemetry != nil {
		if err := s.d.Telemetry.Write(ctx, telemetry.Request{
			AuditID:    auditID,
			Domain:     string(domain),
			Prompt:     req.Message,
			LatencyMs:  latencyMs,
			Confidence: reply.Confidence,
			Success:    success,
		}); err != nil {
			s.log.Warn("telemetry write failed", "audit_id", auditID, "error", err)
		}
	}
	audit.Record(ctx, s.d.Audit, audit.Event{
		"event":    "chat",
		"audit_id": auditID,
		"domain":   string(domain),
		"channel":  req.Channel,
		"result":   reply.Audit,
	})

	cites := reply.Citations
	if cites == nil {
		cites = []evidence.Citation{}
	}
	return ChatResponse{
		Reply:      reply.Reply,
		Confidence: reply.Confidence,
		Citations:  cites,
		AuditID:    auditID,
	}
}

// #endregion chat

// #region action
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Action == "" {
		writeError(w, http.StatusBadRequest, errInvalidRequest)
		return
	}
	if req.AuditID == "" {
		req.AuditID = "audit-" + uuid.New().String()
	}
	if req.Payload == nil {
		req.Payload = map[string]any{}
	}
	ctx := r.Context()
	ev := audit.Event{"event": "agent.action", "audit_id": req.AuditID, "action": req.Action}

	switch d := s.d.Gate.Evaluate(gate.Request{Type: req.Action, Payload: req.Payload}); d.Kind {
	case gate.KindReview:
		payload := maps.Clone(req.Payload)
		payload["audit_id"] = req.AuditID
		a, err := s.d.Ledger.Enqueue(ctx, req.Action, payload)
		if err != nil {
			s.log.Error("enqueue failed", "action", req.Action, "error", err)
			writeError(w, http.StatusInternalServerError, errInternal)
			return
		}
		ev["pending_id"] = a.ID
		audit.Record(ctx, s.d.Audit, ev)
		writeJSON(w, http.StatusOK, ActionResponse{Status: statusPendingReview, AuditID: req.AuditID, PendingID: a.ID})

	case gate.KindPreview:
		url, err := s.writePreview(req)
		if err != nil {
			s.log.Error("preview failed", "audit_id", req.AuditID, "error", err)
			writeError(w, http.StatusInternalServerError, errInternal)
			return
		}
		ev["preview_url"] = url
		audit.Record(ctx, s.d.Audit, ev)
		writeJSON(w, http.StatusOK, ActionResponse{Status: statusOK, AuditID: req.AuditID, PreviewURL: url})

	default:
		ev["payload"] = req.Payload
		audit.Record(ctx, s.d.Audit, ev)
		writeJSON(w, http.StatusOK, ActionResponse{Status: statusOK, AuditID: req.AuditID})
	}
}

// writePreview stores the submitted form under the static dir and returns its URL.
func (s *Server) writePreview(req ActionRequest) (string, error) {
	if s.d.StaticDir == "" {
		return "", errors.New("no static dir configured")
	}
	form, _ := req.Payload["form"].(map[string]any)
	if form == nil {
		form = map[string]any{}
	}
	body, err := json.MarshalIndent(map[string]any{"form": form, "audit_id": req.AuditID}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode preview: %w", err)
	}
	if err := os.MkdirAll(s.d.StaticDir, 0o755); err != nil {
		return "", fmt.Errorf("create static dir: %w", err)
	}
	name := "form-preview-" + uuid.New().String() + ".json"
	if err := os.WriteFile(filepath.Join(s.d.StaticDir, name), body, 0o644); err != nil {
		return "", fmt.Errorf("write preview: %w", err)
	}
	return "/static/" + name, nil
}

// #endregion action

// #region admin
func (s *Server) handlePending(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": s.d.Ledger.ListPending()})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if !decode(w, r, &req) {
		return
	}
	a, err := s.d.Ledger.Approve(r.Context(), req.PendingID)
	s.writeDecision(w, a, err)
}

func (s *Server) handleDecline(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if !decode(w, r, &req) {
		return
	}
	a, err := s.d.Ledger.Decline(r.Context(), req.PendingID, req.Reason)
	s.writeDecision(w, a, err)
}

func (s *Server) writeDecision(w http.ResponseWriter, a hitl.Action, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, a)
	case errors.Is(err, hitl.ErrNotFound):
		writeError(w, http.StatusNotFound, errNotFound)
	case errors.Is(err, hitl.ErrNotPending):
		writeError(w, http.StatusConflict, errNotPending)
	default:
		s.log.Error("review failed", "error", err)
		writeError(w, http.StatusInternalServerError, errInternal)
	}
}

// #endregion admin
