package evidence

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// #region lexical
// lexicalSearch scores each fragment by the share of query tokens it contains.
func (s *Store) lexicalSearch(query string, k int) []Scored {
	q := tokenSet(query)
	denom := float64(max(len(q), 1))

	scores := make([]float64, len(s.fragments))
	for i, ft := range s.tokens {
		hits := 0
		for tok := range q {
			if _, ok := ft[tok]; ok {
				hits++
			}
		}
		scores[i] = float64(hits) / denom
	}
	return s.topK(scores, k, nil)
}

// tokenSet splits on whitespace after lower-casing and NFC normalization.
func tokenSet(text string) map[string]struct{} {
	fields := strings.Fields(norm.NFC.String(strings.ToLower(text)))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// #endregion lexical

// #region vector
// vectorSearch ranks fragments by inner product with the normalized query embedding.
func (s *Store) vectorSearch(ctx context.Context, query string, k int) ([]Scored, error) {
	out, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(out))
	}
	q := normalize(out[0])

	scores := make([]float64, len(s.vectors))
	valid := make([]bool, len(s.vectors))
	for i, v := range s.vectors {
		if len(v) != len(q) {
			continue
		}
		scores[i] = dot(q, v)
		valid[i] = true
	}
	return s.topK(scores, k, valid), nil
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	n := math.Sqrt(sum)
	out := make([]float32, len(v))
	if n == 0 {
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// #endregion vector

// #region top-k
// topK orders fragment indices by descending score, ties kept in insertion
// order. Entries with valid[i] == false are skipped when valid is non-nil.
func (s *Store) topK(scores []float64, k int, valid []bool) []Scored {
	idx := make([]int, 0, len(scores))
	for i := range scores {
		if valid != nil && !valid[i] {
			continue
		}
		idx = append(idx, i)
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})
	if len(idx) > k {
		idx = idx[:k]
	}
	out := make([]Scored, 0, len(idx))
	for _, i := range idx {
		out = append(out, Scored{Fragment: s.fragments[i], Score: scores[i]})
	}
	return out
}

// #endregion top-k
