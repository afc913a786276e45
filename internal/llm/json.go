package llm

import (
	"encoding/json"
	"strings"

	"github.com/charlie-robison/pythia/internal/pipeline"
)

// ExtractJSON locates a JSON object in model output that may be wrapped in
// markdown code fences or surrounding prose, unmarshals it into dst, and
// returns a pipeline.ErrMalformed error when no well-formed object can be
// found.
func ExtractJSON(text string, dst any) error {
	cleaned := CleanJSON(text)
	if cleaned == "" {
		return pipeline.Malformed(nil, "llm: no JSON object in response")
	}
	if err := json.Unmarshal([]byte(cleaned), dst); err != nil {
		return pipeline.Malformed(err, "llm: parse response JSON")
	}
	return nil
}

// CleanJSON strips markdown code fences and slices out the outermost JSON
// object from surrounding prose. Returns "" when no braces are present.
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return strings.TrimSpace(text[start : end+1])
}

// AsString coerces a loosely-typed JSON value to a string, treating nil and
// non-string scalars as their natural text form.
func AsString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	case float64:
		n, _ := json.Marshal(s)
		return string(n)
	case bool:
		if s {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// AsStringList coerces a loosely-typed JSON value to a list of non-empty
// strings. A bare string becomes a single-element list.
func AsStringList(v any) []string {
	switch s := v.(type) {
	case []any:
		var out []string
		for _, item := range s {
			if str := strings.TrimSpace(AsString(item)); str != "" {
				out = append(out, str)
			}
		}
		return out
	case []string:
		var out []string
		for _, item := range s {
			if str := strings.TrimSpace(item); str != "" {
				out = append(out, str)
			}
		}
		return out
	case string:
		if str := strings.TrimSpace(s); str != "" {
			return []string{str}
		}
		return nil
	default:
		return nil
	}
}

// AsFloat coerces a loosely-typed JSON value to a float64.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// AsMap coerces a loosely-typed JSON value to an object, returning nil for
// anything that is not one.
func AsMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}

// AsMapList returns the object elements of a loosely-typed JSON array,
// skipping anything that is not an object.
func AsMapList(v any) []map[string]any {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []map[string]any
	for _, item := range items {
		if m := AsMap(item); m != nil {
			out = append(out, m)
		}
	}
	return out
}
