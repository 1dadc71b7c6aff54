package aiclient

import (
	"encoding/json"
	"strings"
)

// ExtractJSON pulls a JSON object out of a model reply and unmarshals it
// into out. Model replies rarely match the requested schema exactly: they
// wrap the object in prose, markdown fences, or trailing commentary. The
// strategy is strict unmarshal first, then the outermost balanced {...}
// span. Returns false when no usable object was found; callers fall back
// to a best-effort default instead of failing.
func ExtractJSON(raw string, out interface{}) bool {
	trimmed := strings.TrimSpace(stripFences(raw))
	if trimmed == "" {
		return false
	}

	if json.Unmarshal([]byte(trimmed), out) == nil {
		return true
	}

	candidate := outermostObject(trimmed)
	if candidate == "" {
		return false
	}
	return json.Unmarshal([]byte(candidate), out) == nil
}

// stripFences removes a markdown code fence wrapper if present.
func stripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return trimmed
}

// outermostObject returns the first balanced top-level {...} span, honoring
// string literals and escapes so braces inside values don't break matching.
func outermostObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}
