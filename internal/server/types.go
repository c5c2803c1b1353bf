package server

import (
	"github.com/ksasa/router/internal/adapter"
	"github.com/ksasa/router/internal/evidence"
)

// #region chat
// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	UserID  string          `json:"user_id"`
	Channel string          `json:"channel"`
	Domain  string          `json:"domain"`
	Message string          `json:"message"`
	Context adapter.Context `json:"context,omitempty"`
}

// ChatResponse is returned by /chat and /sms/inbound.
type ChatResponse struct {
	Reply      string              `json:"reply"`
	Confidence float64             `json:"confidence"`
	Citations  []evidence.Citation `json:"citations"`
	AuditID    string              `json:"audit_id"`
}

// #endregion chat

// #region action
// ActionRequest is the body of POST /agent/action.
type ActionRequest struct {
	AuditID string         `json:"audit_id"`
	Action  string         `json:"action"`
	Payload map[string]any `json:"payload"`
}

// ActionResponse reports what the gate did with an action.
type ActionResponse struct {
	Status     string `json:"status"`
	AuditID    string `json:"audit_id"`
	PendingID  string `json:"pending_id,omitempty"`
	PreviewURL string `json:"preview_url,omitempty"`
}

const (
	statusOK            = "ok"
	statusPendingReview = "pending_review"
)

// #endregion action

// #region admin
// ReviewRequest is the body of POST /admin/approve and /admin/decline.
type ReviewRequest struct {
	PendingID string `json:"pending_id"`
	Reason    string `json:"reason,omitempty"`
}

// #endregion admin

// #region sms
// SMSInbound is the body of POST /sms/inbound.
type SMSInbound struct {
	FromNumber string `json:"from_number"`
	ToNumber   string `json:"to_number,omitempty"`
	Text       string `json:"text"`
	SessionID  string `json:"session_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	Domain     string `json:"domain,omitempty"`
}

// #endregion sms

// #region errors
type errorBody struct {
	Error string `json:"error"`
}

const (
	errInvalidRequest = "invalid_request"
	errNotFound       = "not_found"
	errNotPending     = "not_pending"
	errInternal       = "internal"
)

// #endregion errors
