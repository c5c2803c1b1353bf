package evidence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ksasa/router/internal/logging"
)

// #region store
// Store holds the fragment index. Build it once at start-up; afterwards it is
// read-only and safe for concurrent Retrieve calls.
type Store struct {
	cfg      Config
	embedder Embedder
	log      *slog.Logger

	fragments []Fragment
	tokens    []map[string]struct{}
	vectors   [][]float32 // nil unless mode == ModeVector
	mode      Mode
}

// NewStore creates an empty store. A nil embedder pins the store to lexical mode.
func NewStore(cfg Config, embedder Embedder) *Store {
	def := DefaultConfig()
	if cfg.SegmentSize <= 0 {
		cfg.SegmentSize = def.SegmentSize
	}
	if cfg.SnippetLen <= 0 {
		cfg.SnippetLen = def.SnippetLen
	}
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.EmbedBatch <= 0 {
		cfg.EmbedBatch = def.EmbedBatch
	}
	return &Store{
		cfg:      cfg,
		embedder: embedder,
		log:      logging.New("evidence"),
		mode:     ModeLexical,
	}
}

// #endregion store

// #region build
// Build ingests the corpus directory and indexes its fragments, replacing any
// previous index. Embedding failures never surface: the store falls back to
// lexical mode. Only a corpus directory that exists but cannot be listed is an
// error.
func (s *Store) Build(ctx context.Context, dir string) error {
	s.fragments, s.tokens, s.vectors, s.mode = nil, nil, nil, ModeLexical

	docs, err := s.readCorpus(ctx, dir)
	if err != nil {
		return err
	}

	var frags []Fragment
	for _, d := range docs {
		frags = append(frags, Split(d.text, d.source, s.cfg.SegmentSize)...)
	}
	if len(frags) == 0 {
		s.log.Info("evidence store is empty", "dir", dir)
		return nil
	}

	tokens := make([]map[string]struct{}, len(frags))
	for i, f := range frags {
		tokens[i] = tokenSet(f.Text)
	}
	s.fragments = frags
	s.tokens = tokens

	if s.embedder != nil {
		vecs, err := s.embedAll(ctx, frags)
		if err != nil {
			s.log.Warn("vector index unavailable, using lexical retrieval", "error", err)
		} else {
			s.vectors = vecs
			s.mode = ModeVector
		}
	}

	s.log.Info("evidence store built",
		"documents", len(docs), "fragments", len(frags), "mode", s.mode)
	return nil
}

func (s *Store) embedAll(ctx context.Context, frags []Fragment) ([][]float32, error) {
	vecs := make([][]float32, 0, len(frags))
	for start := 0; start < len(frags); start += s.cfg.EmbedBatch {
		end := min(start+s.cfg.EmbedBatch, len(frags))
		texts := make([]string, 0, end-start)
		for _, f := range frags[start:end] {
			texts = append(texts, f.Text)
		}
		batch, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed fragments %d-%d: %w", start, end, err)
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("embed fragments %d-%d: got %d vectors", start, end, len(batch))
		}
		for _, v := range batch {
			vecs = append(vecs, normalize(v))
		}
	}
	return vecs, nil
}

// #endregion build

// #region retrieve
// Retrieve returns up to k fragments ranked by similarity to query. k <= 0
// uses the configured default. An empty store returns nil.
func (s *Store) Retrieve(ctx context.Context, query string, k int) []Scored {
	return s.Search(ctx, query, k).Hits
}

// Search is Retrieve with the strategy that actually served the call. A vector
// store whose query embedding fails answers lexically for that call only.
func (s *Store) Search(ctx context.Context, query string, k int) Result {
	if len(s.fragments) == 0 {
		return Result{Mode: s.mode}
	}
	if k <= 0 {
		k = s.cfg.TopK
	}
	if s.mode == ModeVector {
		hits, err := s.vectorSearch(ctx, query, k)
		if err == nil {
			return Result{Hits: hits, Mode: ModeVector}
		}
		s.log.Warn("vector search failed, falling back to lexical", "error", err)
		return Result{Hits: s.lexicalSearch(query, k), Mode: ModeLexical, Degraded: true}
	}
	return Result{Hits: s.lexicalSearch(query, k), Mode: ModeLexical}
}

// #endregion retrieve

// #region accessors
// Mode reports the retrieval strategy chosen at build time.
func (s *Store) Mode() Mode { return s.mode }

// Len returns the number of indexed fragments.
func (s *Store) Len() int { return len(s.fragments) }

// SnippetLen is the citation snippet length the store was configured with.
func (s *Store) SnippetLen() int { return s.cfg.SnippetLen }

// #endregion accessors
