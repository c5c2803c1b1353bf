package evidence

import "strings"

// #region split
// Split cuts text into consecutive size-rune segments with no overlap. The
// trailing partial segment is kept; whitespace-only segments are dropped.
func Split(text, source string, size int) []Fragment {
	if size <= 0 {
		size = DefaultConfig().SegmentSize
	}
	runes := []rune(text)
	var out []Fragment
	for i := 0; i < len(runes); i += size {
		end := min(i+size, len(runes))
		piece := string(runes[i:end])
		if strings.TrimSpace(piece) == "" {
			continue
		}
		out = append(out, Fragment{Text: piece, Source: source})
	}
	return out
}

// #endregion split

// #region citations
// Citations converts retrieval results into citations, truncating snippets to
// snippetLen runes and clamping scores into [0, 1].
func Citations(results []Scored, snippetLen int) []Citation {
	if snippetLen <= 0 {
		snippetLen = DefaultConfig().SnippetLen
	}
	cites := make([]Citation, 0, len(results))
	for _, r := range results {
		cites = append(cites, Citation{
			Source:  r.Fragment.Source,
			Snippet: truncateRunes(r.Fragment.Text, snippetLen),
			Score:   clamp01(r.Score),
		})
	}
	return cites
}

// Sanitize applies the same bounds to citations that did not come from the
// store: snippets truncated to snippetLen runes and scores clamped into [0, 1].
func Sanitize(cites []Citation, snippetLen int) []Citation {
	if snippetLen <= 0 {
		snippetLen = DefaultConfig().SnippetLen
	}
	out := make([]Citation, len(cites))
	for i, c := range cites {
		out[i] = Citation{
			Source:  c.Source,
			Snippet: truncateRunes(c.Snippet, snippetLen),
			Score:   clamp01(c.Score),
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// #endregion citations
