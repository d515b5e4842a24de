// internal/llmutil/clean.go
package llmutil

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// fenceRegex extracts content wrapped in a markdown code fence, with or
// without a language tag. Backticks are written as \x60 because Go raw
// strings cannot contain them.
var fenceRegex = regexp.MustCompile("(?s)\x60\x60\x60[a-zA-Z]*\\s*(.*?)\\s*\x60\x60\x60")

// CleanJSON repairs the kinds of malformed JSON language models produce:
// markdown fences, // and /* */ comments, trailing commas, surrounding
// prose, and raw control characters inside string values.
//
// It is idempotent on already-valid JSON: repeated application is a no-op.
func CleanJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if json.Valid([]byte(s)) {
		return s
	}
	s = stripFences(s)
	s = stripComments(s)
	s = stripTrailingCommas(s)

	if json.Valid([]byte(s)) {
		return s
	}

	// Direct parse failed: salvage the first balanced bracket span and
	// re-escape control characters the model left bare inside strings.
	if span, ok := extractSpan(s); ok {
		s = span
	}
	s = escapeControlChars(s)
	s = stripTrailingCommas(s)
	return strings.TrimSpace(s)
}

// ParseJSON cleans a raw model response and unmarshals it into T.
func ParseJSON[T any](raw string) (*T, error) {
	cleaned := CleanJSON(raw)

	var result T
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model JSON response: %w. Cleaned JSON (truncated): %s",
			err, Truncate(cleaned, 500))
	}
	return &result, nil
}

// Truncate shortens a string to at most maxLen bytes for error messages.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func stripFences(s string) string {
	if !strings.Contains(s, "```") {
		return s
	}
	matches := fenceRegex.FindStringSubmatch(s)
	if len(matches) > 1 && (strings.Contains(matches[1], "{") || strings.Contains(matches[1], "[")) {
		return matches[1]
	}
	return s
}

// stripComments removes // line comments and /* */ block comments that sit
// outside of string literals.
func stripComments(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			sb.WriteByte(c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}

		switch {
		case c == '"':
			inString = true
			sb.WriteByte(c)
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				sb.WriteByte('\n')
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			i += 2
			for i+1 < len(s) && !(s[i] == '*' && s[i+1] == '/') {
				i++
			}
			i++ // skip the trailing '/'
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// stripTrailingCommas drops commas that directly precede a closing bracket,
// ignoring commas inside string literals.
func stripTrailingCommas(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			sb.WriteByte(c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}

		if c == '"' {
			inString = true
			sb.WriteByte(c)
			continue
		}

		if c == ',' {
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue // drop the comma
			}
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// extractSpan finds the first '{' or '[' and returns the balanced bracket
// span starting there, respecting string and escape state. It discards any
// surrounding prose. Returns false when no balanced span exists.
func extractSpan(s string) (string, bool) {
	start := -1
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			start = i
			break
		}
	}
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]

		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// escapeControlChars re-escapes bare newlines, carriage returns and tabs
// found inside string values. Models frequently emit multi-line rationale
// strings without escaping them.
func escapeControlChars(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]

		if !inString {
			if c == '"' {
				inString = true
			}
			sb.WriteByte(c)
			continue
		}

		if escaped {
			escaped = false
			sb.WriteByte(c)
			continue
		}

		switch c {
		case '\\':
			escaped = true
			sb.WriteByte(c)
		case '"':
			inString = false
			sb.WriteByte(c)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
