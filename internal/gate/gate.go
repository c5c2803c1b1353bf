// Package gate decides whether a follow-up action needs human approval.
package gate

import (
	"fmt"
	"strings"
)

// #region gate
// Gate classifies action requests. It is immutable after construction.
type Gate struct {
	review  map[string]struct{}
	preview map[string]struct{}
}

// NewGate builds a gate from cfg. A type listed in both sets is reviewed.
func NewGate(cfg Config) *Gate {
	g := &Gate{
		review:  make(map[string]struct{}, len(cfg.Review)),
		preview: make(map[string]struct{}, len(cfg.Preview)),
	}
	for _, t := range cfg.Review {
		g.review[normalize(t)] = struct{}{}
	}
	for _, t := range cfg.Preview {
		g.preview[normalize(t)] = struct{}{}
	}
	return g
}

// Evaluate returns the decision for req. Review wins over preview; anything
// unlisted is only logged.
func (g *Gate) Evaluate(req Request) Decision {
	t := normalize(req.Type)
	if _, ok := g.review[t]; ok {
		return Decision{Kind: KindReview, Reason: fmt.Sprintf("%s requires human approval", t)}
	}
	if _, ok := g.preview[t]; ok {
		return Decision{Kind: KindPreview, Reason: fmt.Sprintf("%s renders a preview", t)}
	}
	return Decision{Kind: KindLog, Reason: "no approval required"}
}

// RequiresReview reports whether actionType is held for approval.
func (g *Gate) RequiresReview(actionType string) bool {
	_, ok := g.review[normalize(actionType)]
	return ok
}

func normalize(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

// #endregion gate
