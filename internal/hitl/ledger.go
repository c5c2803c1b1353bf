// Package hitl tracks actions that need human approval before they count as
// authorized.
package hitl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ksasa/router/internal/audit"
	"github.com/ksasa/router/internal/logging"
)

// #region ledger
// Ledger owns the pending-action collection. A single mutex guards it; audit
// events are written after the lock is released and their failures are
// logged rather than returned.
type Ledger struct {
	mu      sync.Mutex
	actions map[string]*Action
	order   []string

	audit audit.Writer
	repo  Repository
	clock func() time.Time
	log   *slog.Logger
}

// NewLedger creates an empty ledger. Both w and repo may be nil.
func NewLedger(w audit.Writer, repo Repository) *Ledger {
	return &Ledger{
		actions: make(map[string]*Action),
		audit:   w,
		repo:    repo,
		clock:   time.Now,
		log:     logging.New("hitl"),
	}
}

// WithClock overrides the clock for deterministic testing.
func (l *Ledger) WithClock(clock func() time.Time) *Ledger {
	l.clock = clock
	return l
}

// #endregion ledger

// #region restore
// Restore loads persisted actions, replacing the in-memory collection. Call it
// once at start-up before serving requests.
func (l *Ledger) Restore(ctx context.Context) (int, error) {
	if l.repo == nil {
		return 0, nil
	}
	loaded, err := l.repo.LoadActions(ctx)
	if err != nil {
		return 0, fmt.Errorf("restore pending actions: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.actions = make(map[string]*Action, len(loaded))
	l.order = l.order[:0]
	for _, a := range loaded {
		if _, dup := l.actions[a.ID]; !dup {
			l.order = append(l.order, a.ID)
		}
		l.actions[a.ID] = &a
	}
	return len(loaded), nil
}

// #endregion restore

// #region enqueue
// Enqueue records a new pending action and returns it. An error means the
// action could not be persisted and was not recorded.
func (l *Ledger) Enqueue(ctx context.Context, actionType string, payload map[string]any) (Action, error) {
	a := Action{
		ID:        IDPrefix + uuid.New().String(),
		Type:      actionType,
		Payload:   copyMap(payload),
		Status:    StatusPending,
		CreatedAt: l.clock().UTC(),
	}
	if a.Payload == nil {
		a.Payload = map[string]any{}
	}

	l.mu.Lock()
	if err := l.persist(ctx, a); err != nil {
		l.mu.Unlock()
		return Action{}, err
	}
	stored := a
	l.actions[a.ID] = &stored
	l.order = append(l.order, a.ID)
	l.mu.Unlock()

	audit.Record(ctx, l.audit, audit.Event{
		"event":      "hitl.enqueue",
		"pending_id": a.ID,
		"type":       actionType,
	})
	l.log.Info("action enqueued", "pending_id", a.ID, "type", actionType)
	return clone(a), nil
}

// #endregion enqueue

// #region queries
// ListPending returns pending actions in enqueue order.
func (l *Ledger) ListPending() []Action {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []Action{}
	for _, id := range l.order {
		if a := l.actions[id]; a.Status == StatusPending {
			out = append(out, clone(*a))
		}
	}
	return out
}

// Get returns the action with id in any state.
func (l *Ledger) Get(id string) (Action, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.actions[id]
	if !ok {
		return Action{}, fmt.Errorf("pending action %q: %w", id, ErrNotFound)
	}
	return clone(*a), nil
}

// #endregion queries

// #region transitions
// Approve moves a pending action to approved and returns the updated record.
func (l *Ledger) Approve(ctx context.Context, id string) (Action, error) {
	a, err := l.transition(ctx, id, StatusApproved, "")
	if err != nil {
		return Action{}, err
	}
	audit.Record(ctx, l.audit, audit.Event{"event": "hitl.approve", "pending_id": id})
	l.log.Info("action approved", "pending_id", id, "type", a.Type)
	return a, nil
}

// Decline moves a pending action to declined, recording reason.
func (l *Ledger) Decline(ctx context.Context, id, reason string) (Action, error) {
	a, err := l.transition(ctx, id, StatusDeclined, reason)
	if err != nil {
		return Action{}, err
	}
	audit.Record(ctx, l.audit, audit.Event{"event": "hitl.decline", "pending_id": id, "reason": reason})
	l.log.Info("action declined", "pending_id", id, "type", a.Type)
	return a, nil
}

// transition applies pending -> to. Terminal actions are left untouched and
// reported with ErrNotPending, so of two racing decisions exactly one wins.
func (l *Ledger) transition(ctx context.Context, id string, to Status, reason string) (Action, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur, ok := l.actions[id]
	if !ok {
		return Action{}, fmt.Errorf("pending action %q: %w", id, ErrNotFound)
	}
	if cur.Status != StatusPending {
		return clone(*cur), fmt.Errorf("pending action %q is %s: %w", id, cur.Status, ErrNotPending)
	}

	next := *cur
	next.Status = to
	if to == StatusDeclined {
		next.Reason = reason
	}
	decided := l.clock().UTC()
	next.DecidedAt = &decided

	if err := l.persist(ctx, next); err != nil {
		if errors.Is(err, ErrNotPending) {
			l.adoptPersisted(ctx, cur)
			return clone(*cur), err
		}
		return Action{}, err
	}
	*cur = next
	return clone(next), nil
}

// adoptPersisted replaces cur with the repository's copy after another ledger
// decided it first. Called with l.mu held.
func (l *Ledger) adoptPersisted(ctx context.Context, cur *Action) {
	loaded, err := l.repo.LoadActions(ctx)
	if err != nil {
		l.log.Warn("reload decided action failed", "pending_id", cur.ID, "error", err)
		return
	}
	for _, a := range loaded {
		if a.ID == cur.ID {
			*cur = a
			return
		}
	}
}

func (l *Ledger) persist(ctx context.Context, a Action) error {
	if l.repo == nil {
		return nil
	}
	if err := l.repo.SaveAction(ctx, a); err != nil {
		return fmt.Errorf("persist pending action %s: %w", a.ID, err)
	}
	return nil
}

// clone copies a, including nested maps and slices in the payload, so callers
// cannot reach the ledger's maps or timestamps.
func clone(a Action) Action {
	a.Payload = copyMap(a.Payload)
	if a.DecidedAt != nil {
		t := *a.DecidedAt
		a.DecidedAt = &t
	}
	return a
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return copyMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = copyValue(e)
		}
		return out
	case []string:
		return append([]string(nil), x...)
	default:
		return v
	}
}

// #endregion transitions
