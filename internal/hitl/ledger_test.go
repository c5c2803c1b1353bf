package hitl

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksasa/router/internal/audit"
)

type memRepo struct {
	mu    sync.Mutex
	saved map[string]Action
	order []string
	fail  atomic.Bool
}

func newMemRepo() *memRepo { return &memRepo{saved: map[string]Action{}} }

func (r *memRepo) SaveAction(_ context.Context, a Action) error {
	if r.fail.Load() {
		return errors.New("disk full")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.saved[a.ID]
	if !ok {
		r.order = append(r.order, a.ID)
	} else if prev.Status.Terminal() {
		return ErrNotPending
	}
	r.saved[a.ID] = a
	return nil
}

func (r *memRepo) LoadActions(context.Context) ([]Action, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Action, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.saved[id])
	}
	return out, nil
}

func readEvents(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		out = append(out, ev)
	}
	require.NoError(t, sc.Err())
	return out
}

func fixedClock() func() time.Time {
	t0 := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time { return t0 }
}

func TestLedger_BusinessRegistrationApproval(t *testing.T) {
	dir := t.TempDir()
	sink := audit.NewSink(dir, audit.AuditFile)
	l := NewLedger(sink, nil).WithClock(fixedClock())
	ctx := context.Background()

	a, err := l.Enqueue(ctx, "submit_form_confirm", map[string]any{"business_name": "Maua Store"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(a.ID, IDPrefix))
	assert.Equal(t, StatusPending, a.Status)

	pending := l.ListPending()
	require.Len(t, pending, 1)
	assert.Equal(t, a.ID, pending[0].ID)
	assert.Equal(t, "Maua Store", pending[0].Payload["business_name"])

	approved, err := l.Approve(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
	require.NotNil(t, approved.DecidedAt)
	assert.Empty(t, l.ListPending())

	events := readEvents(t, filepath.Join(dir, audit.AuditFile))
	require.Len(t, events, 2)
	assert.Equal(t, "hitl.enqueue", events[0]["event"])
	assert.Equal(t, "submit_form_confirm", events[0]["type"])
	assert.Equal(t, "hitl.approve", events[1]["event"])
	assert.Equal(t, a.ID, events[1]["pending_id"])
}

func TestLedger_DeclineRecordsReason(t *testing.T) {
	dir := t.TempDir()
	l := NewLedger(audit.NewSink(dir, audit.AuditFile), nil)
	ctx := context.Background()

	a, err := l.Enqueue(ctx, "triage_recommendation", map[string]any{"patient": "p-12"})
	require.NoError(t, err)

	declined, err := l.Decline(ctx, a.ID, "needs clinician")
	require.NoError(t, err)
	assert.Equal(t, StatusDeclined, declined.Status)
	assert.Equal(t, "needs clinician", declined.Reason)

	got, err := l.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDeclined, got.Status)

	events := readEvents(t, filepath.Join(dir, audit.AuditFile))
	require.Len(t, events, 2)
	assert.Equal(t, "hitl.decline", events[1]["event"])
	assert.Equal(t, "needs clinician", events[1]["reason"])
}

func TestLedger_UnknownID(t *testing.T) {
	l := NewLedger(nil, nil)
	ctx := context.Background()

	_, err := l.Approve(ctx, "pa-missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = l.Decline(ctx, "pa-missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = l.Get("pa-missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLedger_TerminalStatesAreFinal(t *testing.T) {
	dir := t.TempDir()
	l := NewLedger(audit.NewSink(dir, audit.AuditFile), nil)
	ctx := context.Background()

	a, err := l.Enqueue(ctx, "submit_form_confirm", nil)
	require.NoError(t, err)
	_, err = l.Approve(ctx, a.ID)
	require.NoError(t, err)

	_, err = l.Approve(ctx, a.ID)
	assert.ErrorIs(t, err, ErrNotPending)
	_, err = l.Decline(ctx, a.ID, "late")
	assert.ErrorIs(t, err, ErrNotPending)

	got, err := l.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)
	assert.Empty(t, got.Reason)

	// Rejected transitions are not audited.
	assert.Len(t, readEvents(t, filepath.Join(dir, audit.AuditFile)), 2)
}

func TestLedger_ConcurrentApproveHasOneWinner(t *testing.T) {
	l := NewLedger(nil, nil)
	ctx := context.Background()
	a, err := l.Enqueue(ctx, "submit_form_confirm", nil)
	require.NoError(t, err)

	var wins, losses atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = l.Approve(ctx, a.ID)
			} else {
				_, err = l.Decline(ctx, a.ID, "race")
			}
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrNotPending):
				losses.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(31), losses.Load())
}

func TestLedger_ConcurrentEnqueue(t *testing.T) {
	l := NewLedger(nil, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Enqueue(ctx, "submit_form_confirm", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	pending := l.ListPending()
	require.Len(t, pending, 50)
	seen := map[string]bool{}
	for _, a := range pending {
		assert.False(t, seen[a.ID], "duplicate id %s", a.ID)
		seen[a.ID] = true
	}
}

func TestLedger_ReturnsCopies(t *testing.T) {
	l := NewLedger(nil, nil)
	payload := map[string]any{"k": "v"}
	a, err := l.Enqueue(context.Background(), "t", payload)
	require.NoError(t, err)

	payload["k"] = "caller"
	a.Payload["k"] = "returned"

	got, err := l.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "v", got.Payload["k"])
}

func TestLedger_NestedPayloadIsCopied(t *testing.T) {
	l := NewLedger(nil, nil)
	form := map[string]any{"business_name": "Maua Store", "docs_required": []any{"ID"}}
	a, err := l.Enqueue(context.Background(), "submit_form_confirm", map[string]any{"form": form})
	require.NoError(t, err)

	form["business_name"] = "caller"
	a.Payload["form"].(map[string]any)["business_name"] = "returned"
	a.Payload["form"].(map[string]any)["docs_required"].([]any)[0] = "changed"

	got, err := l.Get(a.ID)
	require.NoError(t, err)
	stored := got.Payload["form"].(map[string]any)
	assert.Equal(t, "Maua Store", stored["business_name"])
	assert.Equal(t, []any{"ID"}, stored["docs_required"])
}

func TestLedger_SharedRepositoryKeepsFirstDecision(t *testing.T) {
	dir := t.TempDir()
	repo := newMemRepo()
	ctx := context.Background()

	server := NewLedger(audit.NewSink(dir, audit.AuditFile), repo)
	a, err := server.Enqueue(ctx, "submit_form_confirm", nil)
	require.NoError(t, err)

	operator := NewLedger(nil, repo)
	_, err = operator.Restore(ctx)
	require.NoError(t, err)
	_, err = operator.Approve(ctx, a.ID)
	require.NoError(t, err)

	// The first ledger still holds a pending copy in memory.
	_, err = server.Decline(ctx, a.ID, "late")
	assert.ErrorIs(t, err, ErrNotPending)

	after, err := server.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, after.Status)
	assert.Empty(t, after.Reason)
	assert.Empty(t, server.ListPending())

	events := readEvents(t, filepath.Join(dir, audit.AuditFile))
	require.Len(t, events, 1)
	assert.Equal(t, "hitl.enqueue", events[0]["event"])
}

func TestLedger_PersistFailureLeavesStateUnchanged(t *testing.T) {
	repo := newMemRepo()
	l := NewLedger(nil, repo)
	ctx := context.Background()

	a, err := l.Enqueue(ctx, "submit_form_confirm", nil)
	require.NoError(t, err)

	repo.fail.Store(true)
	_, err = l.Enqueue(ctx, "submit_form_confirm", nil)
	assert.Error(t, err)
	_, err = l.Approve(ctx, a.ID)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotPending)

	pending := l.ListPending()
	require.Len(t, pending, 1)
	assert.Equal(t, StatusPending, pending[0].Status)
}

func TestLedger_RestoreFromRepository(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()

	first := NewLedger(nil, repo)
	a, err := first.Enqueue(ctx, "submit_form_confirm", map[string]any{"business_name": "Maua Store"})
	require.NoError(t, err)
	b, err := first.Enqueue(ctx, "triage_recommendation", nil)
	require.NoError(t, err)
	_, err = first.Decline(ctx, b.ID, "duplicate")
	require.NoError(t, err)

	second := NewLedger(nil, repo)
	n, err := second.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	pending := second.ListPending()
	require.Len(t, pending, 1)
	assert.Equal(t, a.ID, pending[0].ID)

	got, err := second.Get(b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDeclined, got.Status)
	assert.Equal(t, "duplicate", got.Reason)

	_, err = second.Approve(ctx, a.ID)
	require.NoError(t, err)
}
