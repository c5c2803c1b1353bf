package adapter

import (
	"context"
	"strings"
)

// #region health
const (
	summaryLimit = 300

	aftercareText = "Maelekezo ya baada ya huduma: Pumzika, kunywa maji ya kutosha, tumia dawa kama ulivyoelekezwa " +
		"(mf. paracetamol kulingana na dozi sahihi), na rudi kliniki ukizidiwa au dalili zikiongezeka."
	triageText = "Mapendekezo ya triage: Fuata hali; rudi haraka ikiwa upumuaji unakuwa mgumu, homa kali >38.5C, " +
		"maumivu makali, au kutapika kupita kiasi. (Hakuna utambuzi; taarifa ya jumla tu)"
	humanReviewNotice = "Tahadhari: Inahitaji ukaguzi wa binadamu."
)

// Health summarizes visit notes and returns canned aftercare and triage
// guidance. It never diagnoses.
type Health struct {
	opts Options
}

// NewHealth creates the health adapter.
func NewHealth(opts Options) *Health {
	return &Health{opts: opts.withDefaults()}
}

// Handle composes the summary, aftercare and triage sections. Urgent requests
// carry a human-review notice.
func (h *Health) Handle(ctx context.Context, message string, c Context) Reply {
	notes := c.String("visit_notes_text")
	if notes == "" {
		notes = message
	}
	cites := h.opts.citations(ctx, notes, c)
	urgent := c.Bool("urgent_flag")

	var b strings.Builder
	b.WriteString("[health]\n")
	b.WriteString("Muhtasari: " + summarize(notes, summaryLimit))
	b.WriteString("\n\n" + aftercareText)
	b.WriteString("\n\n" + triageText)
	if urgent {
		b.WriteString("\n\n" + humanReviewNotice)
	}

	return Reply{
		Reply:      b.String(),
		Confidence: h.opts.Policy.Score(cites, 0.6),
		Citations:  cites,
		Audit: map[string]any{
			"action":       "summarize_and_aftercare",
			"human_review": urgent,
			"urgent":       urgent,
		},
	}
}

// summarize keeps the first limit runes and marks truncation with "...".
func summarize(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// #endregion health
