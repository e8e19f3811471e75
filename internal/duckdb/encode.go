package duckdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tinytelemetry/chanlog/internal/model"
)

// flatten prepares a context or extra value for JSON serialization.
// Structured errors become {codes, messages, data}, plain errors become a
// single-message variant of the same shape, and every string is forced to
// valid UTF-8.
func flatten(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case model.StructuredError:
		return map[string]any{
			"codes":    sanitizeStrings(val.ErrorCodes()),
			"messages": sanitizeStrings(val.ErrorMessages()),
			"data":     flattenMap(val.ErrorData()),
		}
	case error:
		var se model.StructuredError
		if errors.As(val, &se) {
			return flatten(se)
		}
		return map[string]any{
			"codes":    []string{},
			"messages": []string{sanitize(val.Error())},
			"data":     map[string]any{},
		}
	case string:
		return sanitize(val)
	case []byte:
		return sanitize(string(val))
	case map[string]any:
		return flattenMap(val)
	case map[string]string:
		out := make(map[string]any, len(val))
		for k, s := range val {
			out[sanitize(k)] = sanitize(s)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = flatten(item)
		}
		return out
	case []string:
		return sanitizeStrings(val)
	default:
		return v
	}
}

func flattenMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[sanitize(k)] = flatten(v)
	}
	return out
}

func sanitize(s string) string {
	return strings.ToValidUTF8(s, "")
}

func sanitizeStrings(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = sanitize(s)
	}
	return out
}

// encodeJSON returns the JSON text for a context/extra map, or nil for SQL NULL.
func encodeJSON(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(flattenMap(m))
	if err != nil {
		return nil, fmt.Errorf("encoding json: %w", err)
	}
	return string(data), nil
}

// decodeJSON parses stored JSON text. Malformed or non-object values yield nil.
func decodeJSON(raw *string) map[string]any {
	if raw == nil || *raw == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(*raw), &out); err != nil {
		return nil
	}
	return out
}
