package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ksasa/router/internal/hitl"
	"github.com/ksasa/router/internal/store"
)

// #region admin
// admin is the operator's view of the ledger. localAdmin works on the
// database directly; remoteAdmin goes through a running server so its
// in-memory ledger sees the decision.
type admin interface {
	Pending(ctx context.Context) ([]hitl.Action, error)
	Approve(ctx context.Context, id string) (hitl.Action, error)
	Decline(ctx context.Context, id, reason string) (hitl.Action, error)
	Close() error
}

func openAdmin(ctx context.Context, g *globalFlags, serverURL string) (admin, error) {
	if serverURL != "" {
		return &remoteAdmin{
			base:   strings.TrimRight(serverURL, "/"),
			client: &http.Client{Timeout: 10 * time.Second},
		}, nil
	}
	st, _, ledger, err := openLedger(ctx, g.cfg)
	if err != nil {
		return nil, err
	}
	return &localAdmin{store: st, ledger: ledger}, nil
}

// #endregion admin

// #region local
type localAdmin struct {
	store  *store.Store
	ledger *hitl.Ledger
}

func (l *localAdmin) Pending(context.Context) ([]hitl.Action, error) {
	return l.ledger.ListPending(), nil
}

func (l *localAdmin) Approve(ctx context.Context, id string) (hitl.Action, error) {
	return l.ledger.Approve(ctx, id)
}

func (l *localAdmin) Decline(ctx context.Context, id, reason string) (hitl.Action, error) {
	return l.ledger.Decline(ctx, id, reason)
}

func (l *localAdmin) Close() error { return l.store.Close() }

// #endregion local

// #region remote
type remoteAdmin struct {
	base   string
	client *http.Client
}

func (r *remoteAdmin) Pending(ctx context.Context) ([]hitl.Action, error) {
	var out struct {
		Items []hitl.Action `json:"items"`
	}
	if err := r.do(ctx, http.MethodGet, "/admin/pending", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (r *remoteAdmin) Approve(ctx context.Context, id string) (hitl.Action, error) {
	var a hitl.Action
	err := r.do(ctx, http.MethodPost, "/admin/approve", map[string]string{"pending_id": id}, &a)
	return a, err
}

func (r *remoteAdmin) Decline(ctx context.Context, id, reason string) (hitl.Action, error) {
	var a hitl.Action
	err := r.do(ctx, http.MethodPost, "/admin/decline", map[string]string{"pending_id": id, "reason": reason}, &a)
	return a, err
}

func (r *remoteAdmin) Close() error { return nil }

func (r *remoteAdmin) do(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, r.base+path, &buf)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return json.NewDecoder(resp.Body).Decode(out)
	case http.StatusNotFound:
		return hitl.ErrNotFound
	case http.StatusConflict:
		return hitl.ErrNotPending
	default:
		return fmt.Errorf("%s %s: unexpected status %s", method, path, resp.Status)
	}
}

// #endregion remote
