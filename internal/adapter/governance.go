package adapter

import (
	"context"
	"strings"
)

// #region governance
// RequiredFormFields are the business registration fields, in prompt order.
var RequiredFormFields = []string{
	"business_name",
	"owner_name",
	"id_number",
	"business_type",
	"address",
	"contact",
	"docs_required",
}

const formReadyReply = "[governance] Fomu imekamilika. Tumia hatua: 'submit_form_preview' kupata faili ya hakikisho, " +
	"kisha 'submit_form_confirm' kuwasilisha (hitaji HITL)."

// Governance checks business registration forms for completeness.
type Governance struct {
	opts Options
}

// NewGovernance creates the governance adapter.
func NewGovernance(opts Options) *Governance {
	return &Governance{opts: opts.withDefaults()}
}

// Handle lists missing form fields, or directs a complete form to the
// preview-then-confirm flow.
func (g *Governance) Handle(ctx context.Context, message string, c Context) Reply {
	cites := g.opts.citations(ctx, message, c)
	missing := MissingFields(c.Map("form"))

	if len(missing) > 0 {
		return Reply{
			Reply: "[governance] Tafadhali toa taarifa zifuatazo: " + strings.Join(missing, ", ") + ". " +
				"Tuma kama JSON 'form' katika ombi linalofuata, au andika majibu yako moja kwa moja.",
			Confidence: g.opts.Policy.Score(cites, 0.6),
			Citations:  cites,
			Audit:      map[string]any{"action": "form_fill", "missing": missing},
		}
	}

	return Reply{
		Reply:      formReadyReply,
		Confidence: g.opts.Policy.Raise(cites, 0.7),
		Citations:  cites,
		Audit:      map[string]any{"action": "form_ready", "missing": []string{}},
	}
}

// MissingFields returns the required fields that are absent or blank in form.
func MissingFields(form map[string]any) []string {
	missing := []string{}
	for _, k := range RequiredFormFields {
		if isBlank(form[k]) {
			missing = append(missing, k)
		}
	}
	return missing
}

// #endregion governance
