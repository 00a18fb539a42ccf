package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DecodeLLMJSON decodes content into target, tolerating the ways real
// LLM responses deviate from bare JSON: markdown code fences around the
// payload, and leading/trailing prose around a single JSON object or
// array. Every stage's structured response passes through this
// function rather than a bare json.Unmarshal.
func DecodeLLMJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return fmt.Errorf("llm: empty content")
	}

	if err := json.Unmarshal([]byte(trimmed), target); err == nil {
		return nil
	}

	stripped := stripCodeFenceBlock(trimmed)
	if err := json.Unmarshal([]byte(stripped), target); err == nil {
		return nil
	}

	sanitized := sanitizeJSONPayload(stripped)
	if sanitized == "" {
		return fmt.Errorf("llm: could not locate a JSON payload in response")
	}
	if err := json.Unmarshal([]byte(sanitized), target); err != nil {
		return fmt.Errorf("llm: decode json payload: %w", err)
	}
	return nil
}

// stripCodeFenceBlock removes a leading/trailing ``` or ```json fence.
func stripCodeFenceBlock(s string) string {
	if !strings.Contains(s, "```") {
		return s
	}
	start := strings.Index(s, "```")
	rest := s[start+3:]
	if newline := strings.IndexByte(rest, '\n'); newline != -1 {
		firstLine := strings.TrimSpace(rest[:newline])
		if firstLine == "json" || firstLine == "" {
			rest = rest[newline+1:]
		}
	}
	if end := strings.LastIndex(rest, "```"); end != -1 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// sanitizeJSONPayload extracts the first balanced {...} or [...] region,
// tolerating prose before and after it.
func sanitizeJSONPayload(s string) string {
	objStart := strings.IndexByte(s, '{')
	arrStart := strings.IndexByte(s, '[')

	start := -1
	var open, close byte
	switch {
	case objStart == -1 && arrStart == -1:
		return ""
	case objStart == -1:
		start, open, close = arrStart, '[', ']'
	case arrStart == -1:
		start, open, close = objStart, '{', '}'
	case objStart < arrStart:
		start, open, close = objStart, '{', '}'
	default:
		start, open, close = arrStart, '[', ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
