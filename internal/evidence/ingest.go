package evidence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// #region document
// document is one ingested corpus file before segmentation.
type document struct {
	text   string
	source string
}

type loader func(path string) (string, error)

// loaders maps a lower-cased file extension to its reader.
var loaders = map[string]loader{
	".json": loadJSON,
	".yaml": loadYAML,
	".yml":  loadYAML,
	".txt":  loadText,
	".md":   loadText,
	".pdf":  loadPlaceholder,
	".doc":  loadPlaceholder,
	".docx": loadPlaceholder,
}

// #endregion document

// #region read-corpus
// readCorpus loads every recognized file in dir. Files are read concurrently but
// returned in file-name order. A missing directory yields no documents.
func (s *Store) readCorpus(ctx context.Context, dir string) ([]document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Warn("corpus directory missing, store will be empty", "dir", dir)
			return nil, nil
		}
		return nil, fmt.Errorf("read corpus dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := loaders[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	docs := make([]*document, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.Workers, 1))
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			load := loaders[strings.ToLower(filepath.Ext(name))]
			text, err := load(filepath.Join(dir, name))
			if err != nil {
				s.log.Warn("skipping unreadable corpus file", "file", name, "error", err)
				return nil
			}
			docs[i] = &document{text: text, source: "seed:" + name}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}

	out := make([]document, 0, len(docs))
	for _, d := range docs {
		if d != nil {
			out = append(out, *d)
		}
	}
	return out, nil
}

// #endregion read-corpus

// #region loaders
func loadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// loadJSON re-serializes a structured record compactly so fragments carry
// normalized JSON rather than the file's formatting.
func loadJSON(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return "", fmt.Errorf("parse json: %w", err)
	}
	return buf.String(), nil
}

func loadYAML(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return "", fmt.Errorf("parse yaml: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode yaml record: %w", err)
	}
	return string(out), nil
}

// loadPlaceholder stands in for binary formats that are not parsed yet.
func loadPlaceholder(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return "Placeholder content for " + filepath.Base(path), nil
}

// #endregion loaders
