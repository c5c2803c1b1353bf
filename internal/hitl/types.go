package hitl

import (
	"context"
	"errors"
	"time"
)

// #region status
// Status is the approval state of a pending action.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDeclined Status = "declined"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusDeclined
}

// #endregion status

// #region action
// IDPrefix starts every pending action id.
const IDPrefix = "pa-"

// Action is a request awaiting operator approval. Records are never deleted.
type Action struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	Status    Status         `json:"status"`
	Reason    string         `json:"reason,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	DecidedAt *time.Time     `json:"decided_at,omitempty"`
}

// #endregion action

// #region errors
var (
	// ErrNotFound is returned for ids the ledger has never issued.
	ErrNotFound = errors.New("not_found")
	// ErrNotPending is returned when approving or declining a terminal action.
	ErrNotPending = errors.New("not_pending")
)

// #endregion errors

// #region repository
// Repository persists actions so the ledger survives restarts. SaveAction
// must refuse to overwrite an action that is already decided and report that
// with ErrNotPending, so ledgers sharing one repository cannot reverse each
// other's decisions.
type Repository interface {
	SaveAction(ctx context.Context, a Action) error
	LoadActions(ctx context.Context) ([]Action, error)
}

// #endregion repository
