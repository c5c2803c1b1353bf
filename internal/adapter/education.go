package adapter

import (
	"context"
	"strings"

	"github.com/ksasa/router/internal/lesson"
)

// #region education
// unsafeKeywords flag lesson requests that involve hazardous materials.
var unsafeKeywords = []string{"acid", "explosive", "knife"}

const safetyWarning = "Tahadhari: Ombi linaweza kuwa na vifaa visivyo salama; tafadhali kagua kabla ya kutekeleza."

// Education builds lesson plans grounded in curriculum evidence.
type Education struct {
	opts    Options
	planner *lesson.Planner
}

// NewEducation creates the education adapter. planner must not be nil.
func NewEducation(opts Options, planner *lesson.Planner) *Education {
	return &Education{opts: opts.withDefaults(), planner: planner}
}

// Handle generates a lesson plan and flags requests mentioning unsafe materials.
func (e *Education) Handle(ctx context.Context, message string, c Context) Reply {
	cites := e.opts.citations(ctx, message, c)
	flagged := containsAny(strings.ToLower(message), unsafeKeywords)

	grade := c.String("grade")
	if grade == "" {
		grade = c.String("grade_level")
	}
	req := lesson.Request{
		Grade:           grade,
		Subject:         c.String("subject"),
		DurationMinutes: c.Int("duration_minutes", 30),
		Language:        c.String("language"),
	}

	reply, source := e.planner.Plan(ctx, req, cites)
	if flagged {
		reply += "\n" + safetyWarning
	}

	return Reply{
		Reply:      reply,
		Confidence: e.opts.Policy.Score(cites, 0.6),
		Citations:  cites,
		Audit: map[string]any{
			"action":    "generate_lesson_plan",
			"flagged":   flagged,
			"generator": string(source),
		},
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// #endregion education
