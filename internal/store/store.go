// Package store persists the pending-action ledger and mirrors the audit
// trail into SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ksasa/router/internal/audit"
	"github.com/ksasa/router/internal/hitl"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS pending_actions (
	id            TEXT PRIMARY KEY,
	type          TEXT NOT NULL,
	payload_json  TEXT NOT NULL,
	status        TEXT NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL,
	decided_at    TEXT
);

CREATE TABLE IF NOT EXISTS audit_events (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	ts            TEXT NOT NULL,
	event         TEXT,
	body_json     TEXT NOT NULL
);
`

// #endregion schema

// timeLayout is fixed-width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region store-struct
// Store wraps a SQLite database.
type Store struct {
	db *sql.DB
}

// AuditRow is one mirrored audit event.
type AuditRow struct {
	ID    int64           `json:"id"`
	TS    time.Time       `json:"ts"`
	Event string          `json:"event,omitempty"`
	Body  json.RawMessage `json:"body"`
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion constructor

// #region actions
// SaveAction inserts the row for a.ID or records its decision. A row that is
// no longer pending is never rewritten; that case returns hitl.ErrNotPending.
func (s *Store) SaveAction(ctx context.Context, a hitl.Action) error {
	payload, err := json.Marshal(a.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	var decided any
	if a.DecidedAt != nil {
		decided = a.DecidedAt.UTC().Format(timeLayout)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO pending_actions (id, type, payload_json, status, reason, created_at, decided_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			reason = excluded.reason,
			decided_at = excluded.decided_at
		 WHERE pending_actions.status = 'pending'`,
		a.ID, a.Type, string(payload), string(a.Status), nullIfEmpty(a.Reason),
		a.CreatedAt.UTC().Format(timeLayout), decided,
	)
	if err != nil {
		return fmt.Errorf("save action %s: %w", a.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save action %s: %w", a.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("save action %s: %w", a.ID, hitl.ErrNotPending)
	}
	return nil
}

// LoadActions returns every stored action in creation order.
func (s *Store) LoadActions(ctx context.Context) ([]hitl.Action, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, payload_json, status, reason, created_at, decided_at
		 FROM pending_actions ORDER BY created_at, rowid`,
	)
	if err != nil {
		return nil, fmt.Errorf("load actions: %w", err)
	}
	defer rows.Close()

	var out []hitl.Action
	for rows.Next() {
		var a hitl.Action
		var payload, status, created string
		var reason, decided sql.NullString

		if err := rows.Scan(&a.ID, &a.Type, &payload, &status, &reason, &created, &decided); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &a.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload %s: %w", a.ID, err)
		}
		a.Status = hitl.Status(status)
		if reason.Valid {
			a.Reason = reason.String
		}
		a.CreatedAt, _ = time.Parse(timeLayout, created)
		if decided.Valid {
			t, err := time.Parse(timeLayout, decided.String)
			if err == nil {
				a.DecidedAt = &t
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// #endregion actions

// #region audit-mirror
// MirrorEvent stores a copy of an audit event. It satisfies audit.Mirror.
func (s *Store) MirrorEvent(ctx context.Context, ts time.Time, ev audit.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	name, _ := ev["event"].(string)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_events (ts, event, body_json) VALUES (?, ?, ?)`,
		ts.UTC().Format(timeLayout), nullIfEmpty(name), string(body),
	)
	if err != nil {
		return fmt.Errorf("mirror audit event: %w", err)
	}
	return nil
}

// ListAudit returns the most recent mirrored events, newest first.
func (s *Store) ListAudit(ctx context.Context, limit int) ([]AuditRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, event, body_json FROM audit_events ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var out []AuditRow
	for rows.Next() {
		var r AuditRow
		var ts, body string
		var event sql.NullString
		if err := rows.Scan(&r.ID, &ts, &event, &body); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		r.TS, _ = time.Parse(timeLayout, ts)
		if event.Valid {
			r.Event = event.String
		}
		r.Body = json.RawMessage(body)
		out = append(out, r)
	}
	return out, rows.Err()
}

// #endregion audit-mirror

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
