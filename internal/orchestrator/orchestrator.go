package orchestrator

// #region imports
import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/ksasa/router/internal/adapter"
	"github.com/ksasa/router/internal/evidence"
	"github.com/ksasa/router/internal/logging"
)

// #endregion

// #region orchestrator-struct

// Orchestrator maps domains to adapters and dispatches requests. Adapters are
// shared by all requests; the table itself is guarded for late registration.
type Orchestrator struct {
	mu       sync.RWMutex
	adapters map[Domain]adapter.Adapter
	log      *slog.Logger
}

// #endregion

// #region constructor

// New creates an orchestrator with no adapters registered.
func New() *Orchestrator {
	return &Orchestrator{
		adapters: make(map[Domain]adapter.Adapter),
		log:      logging.New("orchestrator"),
	}
}

// #endregion

// #region register

// Register binds a to domain, replacing any previous binding.
func (o *Orchestrator) Register(domain Domain, a adapter.Adapter) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.adapters[domain]; ok {
		o.log.Info("replacing adapter", "domain", domain)
	}
	o.adapters[domain] = a
}

// Domains returns the registered domains in sorted order.
func (o *Orchestrator) Domains() []Domain {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]Domain, 0, len(o.adapters))
	for d := range o.adapters {
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}

// #endregion

// #region handle

// Handle dispatches to the adapter registered for domain. The lookup is an
// exact match; callers normalize wire input first. An unknown domain yields a
// well-formed reply with zero confidence instead of an error.
func (o *Orchestrator) Handle(ctx context.Context, domain Domain, message string, c adapter.Context) adapter.Reply {
	o.mu.RLock()
	a, ok := o.adapters[domain]
	o.mu.RUnlock()

	if !ok {
		o.log.Debug("unsupported domain", "domain", domain)
		return Unsupported(domain)
	}

	reply := a.Handle(ctx, message, c)
	o.log.Debug("dispatched", "domain", domain,
		"confidence", reply.Confidence, "citations", len(reply.Citations))
	return reply
}

// Unsupported builds the reply returned for domains without an adapter.
func Unsupported(domain Domain) adapter.Reply {
	return adapter.Reply{
		Reply:      "Unsupported domain: " + string(domain),
		Confidence: 0.0,
		Citations:  []evidence.Citation{},
		Audit: map[string]any{
			"domain": string(domain),
			"status": StatusUnsupported,
		},
	}
}

// #endregion
