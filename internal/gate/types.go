package gate

// #region decision-kind
// Kind says what happens to a follow-up action.
type Kind string

const (
	// KindReview holds the action in the pending-action ledger until an
	// operator approves or declines it.
	KindReview Kind = "review"
	// KindPreview renders the payload for the citizen without committing it.
	KindPreview Kind = "preview"
	// KindLog only records the action in the audit trail.
	KindLog Kind = "log"
)

// #endregion decision-kind

// #region action-types
// Action types produced by the adapters' follow-up flows.
const (
	ActionFormPreview     = "submit_form_preview"
	ActionFormConfirm     = "submit_form_confirm"
	ActionTriageRecommend = "triage_recommendation"
)

// #endregion action-types

// #region config
// Config lists which action types go to review and which to preview.
type Config struct {
	Review  []string `yaml:"review"`
	Preview []string `yaml:"preview"`
}

// DefaultConfig routes confirmations and triage recommendations to review.
func DefaultConfig() Config {
	return Config{
		Review:  []string{ActionFormConfirm, ActionTriageRecommend},
		Preview: []string{ActionFormPreview},
	}
}

// #endregion config

// #region request
// Request is a follow-up action proposed by a client.
type Request struct {
	Type    string         `json:"action_type"`
	Payload map[string]any `json:"payload"`
}

// Decision is the gate's verdict for one request.
type Decision struct {
	Kind   Kind
	Reason string
}

// #endregion request
