package adapter

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/ksasa/router/internal/evidence"
)

// #region context
// Context is the loosely typed request context decoded from the wire.
type Context map[string]any

// String returns the value at key rendered as text, or "" when absent.
// Integral JSON numbers render without a decimal point.
func (c Context) String(key string) string {
	switch v := c[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Int returns the integer at key, or def when absent or not numeric.
func (c Context) Int(key string, def int) int {
	switch v := c[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// Bool reports whether key holds true or a "true"/"1"/"yes" string.
func (c Context) Bool(key string) bool {
	switch v := c[key].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return true
		}
	}
	return false
}

// Map returns the nested object at key, or nil.
func (c Context) Map(key string) map[string]any {
	switch v := c[key].(type) {
	case map[string]any:
		return v
	case Context:
		return v
	}
	return nil
}

// Citations decodes caller-supplied evidence at key. It accepts typed
// citations or JSON-decoded objects with source/snippet/score fields.
func (c Context) Citations(key string) ([]evidence.Citation, bool) {
	switch v := c[key].(type) {
	case []evidence.Citation:
		return v, len(v) > 0
	case []any:
		var out []evidence.Citation
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			cc := Context(m)
			score, _ := m["score"].(float64)
			out = append(out, evidence.Citation{
				Source:  cc.String("source"),
				Snippet: cc.String("snippet"),
				Score:   score,
			})
		}
		return out, len(out) > 0
	}
	return nil, false
}

// #endregion context

// #region blank
// isBlank mirrors "no usable value": nil, empty or whitespace text, false,
// zero numbers and empty collections.
func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case bool:
		return !x
	case float64:
		return x == 0
	case int:
		return x == 0
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}

// #endregion blank
