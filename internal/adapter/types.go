package adapter

import (
	"context"

	"github.com/ksasa/router/internal/evidence"
)

// #region adapter
// Adapter produces a domain reply for one request. Implementations hold no
// per-request state and are shared across concurrent requests.
type Adapter interface {
	Handle(ctx context.Context, message string, c Context) Reply
}

// Retriever is the read side of the evidence store.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) []evidence.Scored
}

// #endregion adapter

// #region reply
// Reply is the uniform result of every adapter. Reply text is never empty.
type Reply struct {
	Reply      string              `json:"reply"`
	Confidence float64             `json:"confidence"`
	Citations  []evidence.Citation `json:"citations"`
	Audit      map[string]any      `json:"audit"`
}

// #endregion reply

// #region confidence-policy
// ConfidencePolicy bounds citation-derived confidence.
type ConfidencePolicy struct {
	Floor   float64 `yaml:"floor"`
	Ceiling float64 `yaml:"ceiling"`
}

// DefaultPolicy clamps citation-derived confidence into [0.5, 0.9].
func DefaultPolicy() ConfidencePolicy {
	return ConfidencePolicy{Floor: 0.5, Ceiling: 0.9}
}

// Score returns def when there are no citations, otherwise the best citation
// score clamped into [Floor, Ceiling].
func (p ConfidencePolicy) Score(cites []evidence.Citation, def float64) float64 {
	best, ok := maxScore(cites)
	if !ok {
		return def
	}
	return max(p.Floor, min(p.Ceiling, best))
}

// Raise returns base, lifted to the best citation score when that is higher.
// The result never exceeds Ceiling unless base already does.
func (p ConfidencePolicy) Raise(cites []evidence.Citation, base float64) float64 {
	best, ok := maxScore(cites)
	if !ok {
		return base
	}
	return max(base, min(p.Ceiling, best))
}

func maxScore(cites []evidence.Citation) (float64, bool) {
	if len(cites) == 0 {
		return 0, false
	}
	best := cites[0].Score
	for _, c := range cites[1:] {
		best = max(best, c.Score)
	}
	return best, true
}

// #endregion confidence-policy

// #region options
// Options are shared by all adapters.
type Options struct {
	Retriever  Retriever // nil disables retrieval
	Policy     ConfidencePolicy
	TopK       int
	SnippetLen int
}

func (o Options) withDefaults() Options {
	if o.Policy == (ConfidencePolicy{}) {
		o.Policy = DefaultPolicy()
	}
	if o.TopK <= 0 {
		o.TopK = evidence.DefaultConfig().TopK
	}
	if o.SnippetLen <= 0 {
		o.SnippetLen = evidence.DefaultConfig().SnippetLen
	}
	return o
}

// citations prefers evidence supplied by the caller and otherwise queries the
// retriever with the message.
func (o Options) citations(ctx context.Context, message string, c Context) []evidence.Citation {
	if supplied, ok := c.Citations("evidence"); ok {
		return evidence.Sanitize(supplied, o.SnippetLen)
	}
	if o.Retriever == nil {
		return []evidence.Citation{}
	}
	return evidence.Citations(o.Retriever.Retrieve(ctx, message, o.TopK), o.SnippetLen)
}

// #endregion options
