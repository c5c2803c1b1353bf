package evidence

import "context"

// #region fragment
// Fragment is a fixed-size slice of a corpus document. Fragments are created at
// build time and never mutated.
type Fragment struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// Scored pairs a fragment with its similarity to one query.
type Scored struct {
	Fragment Fragment
	Score    float64
}

// Result is the outcome of one search: the hits plus the strategy that
// produced them. Degraded is set when a vector store answered lexically.
type Result struct {
	Hits     []Scored
	Mode     Mode
	Degraded bool
}

// #endregion fragment

// #region citation
// Citation is the per-request view of a scored fragment attached to a reply.
type Citation struct {
	Source  string  `json:"source"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

// #endregion citation

// #region mode
// Mode records which retrieval strategy the store settled on at build time.
type Mode string

const (
	ModeLexical Mode = "lexical"
	ModeVector  Mode = "vector"
)

// #endregion mode

// #region embedder
// Embedder maps texts into a shared vector space. Vectors need not be
// normalized; the store normalizes them.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// #endregion embedder

// #region config
// Config holds segmentation and retrieval limits.
type Config struct {
	SegmentSize int `yaml:"segment_size"` // runes per fragment
	SnippetLen  int `yaml:"snippet_len"`  // runes per citation snippet
	TopK        int `yaml:"top_k"`        // used when Retrieve is called with k <= 0
	Workers     int `yaml:"workers"`      // concurrent document loaders
	EmbedBatch  int `yaml:"embed_batch"`  // fragments per Embed call
}

// DefaultConfig returns the standard segmentation: 400-rune fragments, 200-rune snippets, top 4.
func DefaultConfig() Config {
	return Config{
		SegmentSize: 400,
		SnippetLen:  200,
		TopK:        4,
		Workers:     4,
		EmbedBatch:  32,
	}
}

// #endregion config
