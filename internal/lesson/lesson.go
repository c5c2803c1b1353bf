// Package lesson builds Kiswahili lesson plans, either through an external
// generation backend or from a deterministic template.
package lesson

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ksasa/router/internal/evidence"
	"github.com/ksasa/router/internal/logging"
)

// #region types
// Request carries the lesson parameters read from the caller's context.
type Request struct {
	Grade           string
	Subject         string
	DurationMinutes int
	Language        string
}

// Generator is the external text generation capability.
type Generator interface {
	Generate(ctx context.Context, prompt string, evidence []string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string, evidence []string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string, evidence []string) (string, error) {
	return f(ctx, prompt, evidence)
}

// Source names which path produced a plan.
type Source string

const (
	SourceModel    Source = "model"
	SourceTemplate Source = "template"
)

// maxEvidenceLines caps how many citations are quoted in the prompt.
const maxEvidenceLines = 6

// #endregion types

// #region planner
// Planner produces lesson plans. A nil generator always uses the template.
type Planner struct {
	gen Generator
	log *slog.Logger
}

// NewPlanner creates a planner around an optional generator.
func NewPlanner(gen Generator) *Planner {
	return &Planner{gen: gen, log: logging.New("lesson")}
}

// Plan returns the lesson plan text and which path produced it. Generator
// errors and empty generations fall back to the template.
func (p *Planner) Plan(ctx context.Context, req Request, cites []evidence.Citation) (string, Source) {
	req = withDefaults(req)
	if p.gen == nil {
		return Template(req), SourceTemplate
	}

	lines := evidenceLines(cites)
	text, err := p.gen.Generate(ctx, Prompt(req, lines), lines)
	if err != nil {
		p.log.Warn("generation unavailable, using template", "error", err)
		return Template(req), SourceTemplate
	}
	text = strings.TrimSpace(text)
	if text == "" {
		p.log.Warn("generation returned empty text, using template")
		return Template(req), SourceTemplate
	}
	return text, SourceModel
}

func withDefaults(req Request) Request {
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = 30
	}
	if req.Subject == "" {
		req.Subject = "Somo"
	}
	if req.Language == "" {
		req.Language = "sw"
	}
	req.Language = strings.ToLower(req.Language)
	return req
}

// #endregion planner

// #region prompt
const systemPrompt = "Wewe ni msaidizi wa elimu unayetengeneza mpango wa somo kwa shule ya msingi kwa Kiswahili." +
	" Zingatia malengo ya kujifunza, vifaa, shughuli zenye mgawanyo wa muda, na tathmini." +
	" Hakikisha mpango ni salama na unafaa umri."

// Prompt renders the instruction sent to the generation backend.
func Prompt(req Request, evidenceLines []string) string {
	req = withDefaults(req)
	user := fmt.Sprintf("Tengeneza mpango wa somo wa dakika %d kwa '%s', Darasa la %s.\n"+
		"Ushahidi (RAG):\n%s\n"+
		"Jibu kwa muundo: Malengo ya Kujifunza, Vifaa, Shughuli (kwa mgawanyo wa muda), Tathmini.",
		req.DurationMinutes, req.Subject, req.Grade, strings.Join(evidenceLines, "\n"))
	return "[SYSTEM]\n" + systemPrompt + "\n[/SYSTEM]\n[USER]\n" + user + "\n[/USER]"
}

func evidenceLines(cites []evidence.Citation) []string {
	var lines []string
	for i, c := range cites {
		if i == maxEvidenceLines {
			break
		}
		lines = append(lines, fmt.Sprintf("- Chanzo: %s | Dondoo: %s", c.Source, c.Snippet))
	}
	return lines
}

// #endregion prompt

// #region template
// Template renders the fallback plan. Activity boundaries scale with the
// lesson length and match 0-5/5-20/20-28/28-30 for a 30 minute lesson.
func Template(req Request) string {
	req = withDefaults(req)
	d := req.DurationMinutes
	intro, main, wrap := d*5/30, d*20/30, d*28/30

	var b strings.Builder
	fmt.Fprintf(&b, "Mpango wa Somo (%s) - Darasa la %s - Dakika %d\n", req.Subject, req.Grade, d)
	b.WriteString("Malengo ya Kujifunza:\n")
	b.WriteString("- Mwanafunzi ataweza kueleza dhana kuu za " + req.Subject + "\n")
	b.WriteString("Vifaa/Vitendea Kazi:\n")
	b.WriteString("- Ubao, kalamu, karatasi (au vifaa vinavyofaa)\n")
	b.WriteString("Shughuli kwa Mgawanyo wa Muda:\n")
	fmt.Fprintf(&b, "- Dakika 0-%d: Utangulizi na uanzishaji wa maarifa ya awali\n", intro)
	fmt.Fprintf(&b, "- Dakika %d-%d: Shughuli kuu kwa vikundi/vinafsi\n", intro, main)
	fmt.Fprintf(&b, "- Dakika %d-%d: Majumuisho na mazoezi ya haraka\n", main, wrap)
	fmt.Fprintf(&b, "- Dakika %d-%d: Tathmini fupi na kazi ya nyumbani\n", wrap, d)
	b.WriteString("Tathmini:\n")
	b.WriteString("- Maswali mafupi ya kukagua ufahamu\n")
	return b.String()
}

// #endregion template
