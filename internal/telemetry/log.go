package telemetry

import (
	"context"
	"math"

	"github.com/ksasa/router/internal/audit"
)

// #region request-log
// Request is one telemetry line. The raw prompt is never written; only its hash.
type Request struct {
	AuditID    string
	Domain     string
	Prompt     string
	LatencyMs  float64
	Confidence float64
	Success    bool
}

// Log appends request lines to <dir>/telemetry.log. It has its own lock,
// independent of the audit log.
type Log struct {
	sink *audit.Sink
}

// NewLog creates a telemetry log under dir.
func NewLog(dir string) *Log {
	return &Log{sink: audit.NewSink(dir, audit.TelemetryFile)}
}

// Path returns the log file path.
func (l *Log) Path() string { return l.sink.Path() }

// Write appends one request line.
func (l *Log) Write(ctx context.Context, r Request) error {
	return l.sink.Write(ctx, audit.Event{
		"event":       "request",
		"audit_id":    r.AuditID,
		"domain":      r.Domain,
		"prompt_hash": PromptHash(r.Prompt),
		"latency_ms":  math.Round(r.LatencyMs*100) / 100,
		"confidence":  r.Confidence,
		"success":     r.Success,
	})
}

// #endregion request-log
