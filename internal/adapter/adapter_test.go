package adapter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksasa/router/internal/evidence"
	"github.com/ksasa/router/internal/lesson"
)

// #region fakes
type fixedRetriever struct {
	scores []float64
	query  string
}

func (r *fixedRetriever) Retrieve(_ context.Context, query string, k int) []evidence.Scored {
	r.query = query
	var out []evidence.Scored
	for i, s := range r.scores {
		if i == k {
			break
		}
		out = append(out, evidence.Scored{
			Fragment: evidence.Fragment{Text: "dondoo ya ushahidi", Source: "seed:test.txt"},
			Score:    s,
		})
	}
	return out
}

func fullForm() map[string]any {
	return map[string]any{
		"business_name": "Maua Store",
		"owner_name":    "Amina Njeri",
		"id_number":     "12345678",
		"business_type": "retail",
		"address":       "Nairobi",
		"contact":       "+254700000000",
		"docs_required": []any{"ID", "KRA PIN"},
	}
}

// #endregion fakes

// #region confidence-tests
func TestPolicyScore(t *testing.T) {
	p := DefaultPolicy()
	cases := []struct {
		name   string
		scores []float64
		want   float64
	}{
		{"no citations uses default", nil, 0.6},
		{"low score floored", []float64{0.1, 0.2}, 0.5},
		{"mid score kept", []float64{0.3, 0.75}, 0.75},
		{"high score capped", []float64{0.99}, 0.9},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var cites []evidence.Citation
			for _, s := range tc.scores {
				cites = append(cites, evidence.Citation{Score: s})
			}
			assert.InDelta(t, tc.want, p.Score(cites, 0.6), 1e-9)
		})
	}
}

func TestPolicyRaise(t *testing.T) {
	p := DefaultPolicy()
	assert.InDelta(t, 0.7, p.Raise(nil, 0.7), 1e-9)
	assert.InDelta(t, 0.7, p.Raise([]evidence.Citation{{Score: 0.2}}, 0.7), 1e-9)
	assert.InDelta(t, 0.85, p.Raise([]evidence.Citation{{Score: 0.85}}, 0.7), 1e-9)
	assert.InDelta(t, 0.9, p.Raise([]evidence.Citation{{Score: 1}}, 0.7), 1e-9)
}

func TestPolicyIsConfigurable(t *testing.T) {
	p := ConfidencePolicy{Floor: 0.2, Ceiling: 0.95}
	assert.InDelta(t, 0.2, p.Score([]evidence.Citation{{Score: 0}}, 0.6), 1e-9)
	assert.InDelta(t, 0.95, p.Score([]evidence.Citation{{Score: 1}}, 0.6), 1e-9)
}

// #endregion confidence-tests

// #region education-tests
func TestEducation_TemplateWithoutCitations(t *testing.T) {
	a := NewEducation(Options{}, lesson.NewPlanner(nil))
	r := a.Handle(context.Background(), "Nataka mpango wa somo", Context{
		"grade": float64(3), "subject": "Hisabati",
	})

	require.NotEmpty(t, r.Reply)
	assert.Contains(t, r.Reply, "Darasa la 3")
	assert.Contains(t, r.Reply, "Dakika 30")
	assert.InDelta(t, 0.6, r.Confidence, 1e-9)
	assert.Empty(t, r.Citations)
	assert.Equal(t, false, r.Audit["flagged"])
	assert.Equal(t, "generate_lesson_plan", r.Audit["action"])
	assert.Equal(t, "template", r.Audit["generator"])
}

func TestEducation_GradeLevelAlias(t *testing.T) {
	a := NewEducation(Options{}, lesson.NewPlanner(nil))
	r := a.Handle(context.Background(), "somo", Context{"grade_level": "5", "duration_minutes": float64(45)})
	assert.Contains(t, r.Reply, "Darasa la 5 - Dakika 45")
}

func TestEducation_FlagsUnsafeKeywords(t *testing.T) {
	a := NewEducation(Options{}, lesson.NewPlanner(nil))
	r := a.Handle(context.Background(), "Jaribio la sayansi kutumia ACID", Context{})

	assert.Equal(t, true, r.Audit["flagged"])
	assert.True(t, strings.HasSuffix(r.Reply, "\n"+safetyWarning))
}

func TestEducation_CitationConfidenceClamped(t *testing.T) {
	ret := &fixedRetriever{scores: []float64{0.95, 0.4}}
	a := NewEducation(Options{Retriever: ret}, lesson.NewPlanner(nil))
	r := a.Handle(context.Background(), "hisabati", Context{})

	require.Len(t, r.Citations, 2)
	assert.Equal(t, "hisabati", ret.query)
	assert.InDelta(t, 0.9, r.Confidence, 1e-9)
}

func TestEducation_UsesGeneratorWhenAvailable(t *testing.T) {
	gen := lesson.GeneratorFunc(func(context.Context, string, []string) (string, error) {
		return "Mpango wa modeli", nil
	})
	a := NewEducation(Options{}, lesson.NewPlanner(gen))
	r := a.Handle(context.Background(), "somo", Context{})
	assert.Equal(t, "Mpango wa modeli", r.Reply)
	assert.Equal(t, "model", r.Audit["generator"])
}

func TestEducation_GeneratorFailureStillReplies(t *testing.T) {
	gen := lesson.GeneratorFunc(func(context.Context, string, []string) (string, error) {
		return "", errors.New("unavailable")
	})
	a := NewEducation(Options{}, lesson.NewPlanner(gen))
	r := a.Handle(context.Background(), "somo", Context{"subject": "Sayansi"})
	assert.Contains(t, r.Reply, "Mpango wa Somo (Sayansi)")
}

func TestEducation_SuppliedEvidenceSkipsRetrieval(t *testing.T) {
	ret := &fixedRetriever{scores: []float64{0.1}}
	a := NewEducation(Options{Retriever: ret}, lesson.NewPlanner(nil))
	r := a.Handle(context.Background(), "somo", Context{
		"evidence": []any{map[string]any{"source": "seed:x", "snippet": "y", "score": 0.8}},
	})
	require.Len(t, r.Citations, 1)
	assert.Equal(t, "seed:x", r.Citations[0].Source)
	assert.Empty(t, ret.query)
	assert.InDelta(t, 0.8, r.Confidence, 1e-9)
}

func TestSuppliedEvidenceIsBounded(t *testing.T) {
	long := strings.Repeat("ushahidi ", 40)
	c := Context{"evidence": []any{
		map[string]any{"source": "seed:high", "snippet": long, "score": 1.5},
		map[string]any{"source": "seed:low", "snippet": "y", "score": -0.2},
	}}

	for name, a := range map[string]Adapter{
		"education":  NewEducation(Options{SnippetLen: 50}, lesson.NewPlanner(nil)),
		"health":     NewHealth(Options{SnippetLen: 50}),
		"governance": NewGovernance(Options{SnippetLen: 50}),
	} {
		t.Run(name, func(t *testing.T) {
			r := a.Handle(context.Background(), "somo", c)
			require.Len(t, r.Citations, 2)
			assert.Equal(t, 1.0, r.Citations[0].Score)
			assert.Equal(t, 0.0, r.Citations[1].Score)
			assert.Len(t, []rune(r.Citations[0].Snippet), 50)
			assert.LessOrEqual(t, r.Confidence, 0.9)
		})
	}
}

// #endregion education-tests

// #region health-tests
func TestHealth_UrgentRequiresHumanReview(t *testing.T) {
	a := NewHealth(Options{})
	r := a.Handle(context.Background(), "homa kali", Context{"urgent_flag": true})

	assert.Contains(t, r.Reply, humanReviewNotice)
	assert.Equal(t, true, r.Audit["human_review"])
	assert.Equal(t, true, r.Audit["urgent"])
}

func TestHealth_NotUrgentHasNoNotice(t *testing.T) {
	a := NewHealth(Options{})
	r := a.Handle(context.Background(), "homa kali", Context{"urgent_flag": false})

	assert.NotContains(t, r.Reply, humanReviewNotice)
	assert.Equal(t, false, r.Audit["human_review"])
}

func TestHealth_SummaryTruncation(t *testing.T) {
	a := NewHealth(Options{})
	notes := strings.Repeat("n", 350)
	r := a.Handle(context.Background(), "ignored", Context{"visit_notes_text": notes})

	assert.Contains(t, r.Reply, "Muhtasari: "+strings.Repeat("n", 300)+"...")
	assert.NotContains(t, r.Reply, strings.Repeat("n", 301))

	short := a.Handle(context.Background(), "kikohozi siku tatu", Context{})
	assert.Contains(t, short.Reply, "Muhtasari: kikohozi siku tatu\n")
	assert.NotContains(t, short.Reply, "kikohozi siku tatu...")
}

func TestHealth_SectionsAndConfidence(t *testing.T) {
	a := NewHealth(Options{Retriever: &fixedRetriever{scores: []float64{0.3}}})
	r := a.Handle(context.Background(), "kuhara", Context{})

	assert.True(t, strings.HasPrefix(r.Reply, "[health]\n"))
	assert.Contains(t, r.Reply, aftercareText)
	assert.Contains(t, r.Reply, triageText)
	assert.InDelta(t, 0.5, r.Confidence, 1e-9)
}

// #endregion health-tests

// #region governance-tests
func TestGovernance_MissingFieldsListedExactly(t *testing.T) {
	form := fullForm()
	delete(form, "id_number")
	form["contact"] = "  "
	form["docs_required"] = []any{}

	a := NewGovernance(Options{})
	r := a.Handle(context.Background(), "sajili biashara", Context{"form": form})

	assert.Equal(t, []string{"id_number", "contact", "docs_required"}, r.Audit["missing"])
	assert.Equal(t, "form_fill", r.Audit["action"])
	assert.Contains(t, r.Reply, "id_number, contact, docs_required")
	assert.InDelta(t, 0.6, r.Confidence, 1e-9)
}

func TestGovernance_NoFormMissesEverything(t *testing.T) {
	a := NewGovernance(Options{})
	r := a.Handle(context.Background(), "sajili", Context{})
	assert.Equal(t, RequiredFormFields, r.Audit["missing"])
}

func TestGovernance_PresentFieldsNeverReportedMissing(t *testing.T) {
	for _, drop := range RequiredFormFields {
		form := fullForm()
		delete(form, drop)
		missing := MissingFields(form)
		assert.Equal(t, []string{drop}, missing, "dropping %s", drop)
	}
}

func TestGovernance_CompleteForm(t *testing.T) {
	a := NewGovernance(Options{})
	r := a.Handle(context.Background(), "sajili", Context{"form": fullForm()})

	assert.Equal(t, formReadyReply, r.Reply)
	assert.Equal(t, "form_ready", r.Audit["action"])
	assert.Equal(t, []string{}, r.Audit["missing"])
	assert.InDelta(t, 0.7, r.Confidence, 1e-9)
}

func TestGovernance_CompleteFormConfidenceRaisedByCitations(t *testing.T) {
	a := NewGovernance(Options{Retriever: &fixedRetriever{scores: []float64{0.88}}})
	r := a.Handle(context.Background(), "sajili", Context{"form": fullForm()})
	assert.InDelta(t, 0.88, r.Confidence, 1e-9)

	low := NewGovernance(Options{Retriever: &fixedRetriever{scores: []float64{0.1}}})
	r = low.Handle(context.Background(), "sajili", Context{"form": fullForm()})
	assert.InDelta(t, 0.7, r.Confidence, 1e-9)
}

// #endregion governance-tests

// #region context-tests
func TestContextAccessors(t *testing.T) {
	c := Context{
		"grade":    float64(4),
		"age":      "12",
		"urgent":   "yes",
		"form":     map[string]any{"a": "b"},
		"fraction": 2.5,
	}
	assert.Equal(t, "4", c.String("grade"))
	assert.Equal(t, "2.5", c.String("fraction"))
	assert.Equal(t, "", c.String("missing"))
	assert.Equal(t, 12, c.Int("age", 0))
	assert.Equal(t, 30, c.Int("missing", 30))
	assert.True(t, c.Bool("urgent"))
	assert.False(t, c.Bool("missing"))
	assert.Equal(t, "b", c.Map("form")["a"])
	assert.Nil(t, c.Map("grade"))
}

// #endregion context-tests
