// Package telemetry keeps volatile request metrics and the request telemetry log.
package telemetry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// #region snapshot
// Snapshot is the derived view exposed on /metrics.
type Snapshot struct {
	TotalRequests      int64   `json:"total_requests"`
	AverageLatencyMs   float64 `json:"average_latency_ms"`
	TaskCompletionRate float64 `json:"task_completion_rate"`
}

// #endregion snapshot

// #region metrics
// Metrics counts requests in memory. Counters reset with the process. Each
// observation is also exported through OpenTelemetry, which is a no-op unless
// the host installs a meter provider.
type Metrics struct {
	mu             sync.Mutex
	total          int64
	success        int64
	totalLatencyMs float64

	requests metric.Int64Counter
	latency  metric.Float64Histogram
}

// NewMetrics creates zeroed counters. A nil meter uses the global provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter("github.com/ksasa/router/internal/telemetry")
	}
	requests, err := meter.Int64Counter("ksasa.requests",
		metric.WithDescription("Routed requests by outcome"))
	if err != nil {
		return nil, fmt.Errorf("create request counter: %w", err)
	}
	latency, err := meter.Float64Histogram("ksasa.request.latency",
		metric.WithDescription("Request latency"), metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("create latency histogram: %w", err)
	}
	return &Metrics{requests: requests, latency: latency}, nil
}

// Record adds one request observation.
func (m *Metrics) Record(ctx context.Context, latencyMs float64, success bool) {
	m.mu.Lock()
	m.total++
	m.totalLatencyMs += latencyMs
	if success {
		m.success++
	}
	m.mu.Unlock()

	attrs := metric.WithAttributes(attribute.Bool("success", success))
	m.requests.Add(ctx, 1, attrs)
	m.latency.Record(ctx, latencyMs, attrs)
}

// Snapshot returns the averages, rounded to 2 and 4 decimals.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.total == 0 {
		return Snapshot{}
	}
	return Snapshot{
		TotalRequests:      m.total,
		AverageLatencyMs:   round(m.totalLatencyMs/float64(m.total), 2),
		TaskCompletionRate: round(float64(m.success)/float64(m.total), 4),
	}
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

// #endregion metrics

// #region prompt-hash
// PromptHash returns the first 16 hex characters of the SHA-256 of s, so
// telemetry can correlate prompts without storing them.
func PromptHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}

// #endregion prompt-hash
