// Package normalize maps raw, loosely-typed AI JSON into the canonical,
// sanitized schema. AI providers are inconsistent about casing, so every
// field is read under both snake_case and camelCase keys. All functions here
// are pure: no network, no storage.
package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Object decodes a JSON object, tolerating surrounding noise the gateway's
// fence stripping missed.
func Object(raw string) (map[string]any, error) {
	raw = clip(raw, "{", "}")
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}
	return m, nil
}

// Array decodes a JSON array the same way.
func Array(raw string) ([]any, error) {
	raw = clip(raw, "[", "]")
	var a []any
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return nil, fmt.Errorf("response is not a JSON array: %w", err)
	}
	return a, nil
}

// clip cuts the text down to the outermost open/close pair, dropping any
// preamble or trailing commentary.
func clip(raw, open, close string) string {
	start := strings.Index(raw, open)
	end := strings.LastIndex(raw, close)
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

// getStr returns the first non-empty string under any of the given keys.
func getStr(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return ""
}

// getNum returns the first numeric value under any of the given keys.
// JSON numbers decode as float64; numeric strings are tolerated too.
func getNum(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case string:
			var f float64
			if _, err := fmt.Sscanf(strings.TrimSpace(n), "%g", &f); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// getList returns the first array value under any of the given keys.
func getList(m map[string]any, keys ...string) []any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if a, ok := v.([]any); ok {
				return a
			}
		}
	}
	return nil
}

// getObj returns the first object value under any of the given keys.
func getObj(m map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if o, ok := v.(map[string]any); ok {
				return o
			}
		}
	}
	return nil
}

// strList sanitizes an []any of strings, dropping empties and capping both
// item length and item count.
func strList(items []any, maxItems, maxLen int) []string {
	var out []string
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = SanitizeText(s, maxLen)
		if s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == maxItems {
			break
		}
	}
	return out
}

// clampInt clamps v into [lo, hi].
func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
