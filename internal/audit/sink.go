// Package audit writes append-only newline-delimited JSON event logs.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ksasa/router/internal/logging"
)

// #region types
// File names inside the audit directory.
const (
	AuditFile     = "audit.log"
	TelemetryFile = "telemetry.log"
)

// TimeFormat is UTC ISO-8601 with microseconds.
const TimeFormat = "2006-01-02T15:04:05.000000Z"

// Event is one audit record: caller-supplied fields plus "ts".
type Event map[string]any

// Writer records events. Sink is the file-backed implementation.
type Writer interface {
	Write(ctx context.Context, ev Event) error
}

// Mirror receives a copy of every event after it is durably appended.
type Mirror interface {
	MirrorEvent(ctx context.Context, ts time.Time, ev Event) error
}

// #endregion types

// #region sink
// Sink appends JSON lines to one file. One mutex serializes appends so lines
// never interleave. The file is never truncated or rotated.
type Sink struct {
	mu     sync.Mutex
	dir    string
	path   string
	clock  func() time.Time
	mirror Mirror
	log    *slog.Logger
}

// NewSink creates a sink for dir/name. Nothing touches the filesystem until the
// first Write.
func NewSink(dir, name string) *Sink {
	return &Sink{
		dir:   dir,
		path:  filepath.Join(dir, name),
		clock: time.Now,
		log:   logging.New("audit"),
	}
}

// WithClock overrides the clock for deterministic tests.
func (s *Sink) WithClock(clock func() time.Time) *Sink {
	s.clock = clock
	return s
}

// WithMirror attaches a secondary store. It receives events in the same order
// they are appended to the file. Mirror failures are logged only.
func (s *Sink) WithMirror(m Mirror) *Sink {
	s.mirror = m
	return s
}

// Path returns the log file path.
func (s *Sink) Path() string { return s.path }

// #endregion sink

// #region write
// Write appends ev with a "ts" field, creating the directory if needed. A
// caller-supplied "ts" is kept as is. The caller's map is not modified.
func (s *Sink) Write(ctx context.Context, ev Event) error {
	now := s.clock().UTC()
	rec := make(Event, len(ev)+1)
	rec["ts"] = now.Format(TimeFormat)
	for k, v := range ev {
		rec[k] = v
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.appendLine(line); err != nil {
		return err
	}

	// Mirrored under the same lock so the mirror sees file order.
	if s.mirror != nil {
		if err := s.mirror.MirrorEvent(ctx, now, rec); err != nil {
			s.log.Warn("audit mirror failed", "path", s.path, "error", err)
		}
	}
	return nil
}

// appendLine must be called with s.mu held.
func (s *Sink) appendLine(line []byte) error {

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("append audit log: %w", err)
	}
	return f.Close()
}

// #endregion write

// #region best-effort
// Record writes ev and logs instead of returning a failure, for callers whose
// primary response must not depend on audit durability.
func Record(ctx context.Context, w Writer, ev Event) {
	if w == nil {
		return
	}
	if err := w.Write(ctx, ev); err != nil {
		logging.New("audit").Warn("audit write failed", "event", ev["event"], "error", err)
	}
}

// #endregion best-effort
