package ai

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrUnparsableOutput indicates no JSON value could be recovered from the
// generated text. Callers treat it as recoverable and fall back to their
// deterministic path.
var ErrUnparsableOutput = errors.New("no parsable JSON found in generated output")

// ExtractJSON recovers a JSON value from noisy generated text. Generative
// output routinely wraps the payload in code fences or surrounds it with
// prose, so recovery is graduated: strip fences, try a direct parse, scan
// for the first balanced object/array span, then slice from the first to the
// last matching bracket. Returns ErrUnparsableOutput when every step fails.
func ExtractJSON(raw string) ([]byte, error) {
	s := stripMarkdownCodeBlocks(raw)
	if s == "" {
		return nil, ErrUnparsableOutput
	}

	if json.Valid([]byte(s)) {
		return []byte(s), nil
	}

	if span, ok := balancedSpan(s); ok && json.Valid([]byte(span)) {
		return []byte(span), nil
	}

	for _, pair := range [][2]byte{{'{', '}'}, {'[', ']'}} {
		start := strings.IndexByte(s, pair[0])
		end := strings.LastIndexByte(s, pair[1])
		if start == -1 || end <= start {
			continue
		}
		candidate := s[start : end+1]
		if json.Valid([]byte(candidate)) {
			return []byte(candidate), nil
		}
	}

	return nil, ErrUnparsableOutput
}

// balancedSpan returns the first balanced {...} or [...] span in s, tracking
// string literals and escapes so braces inside values don't break the count.
func balancedSpan(s string) (string, bool) {
	start := -1
	var open, close byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			start = i
			open = s[i]
			close = '}'
			if open == '[' {
				close = ']'
			}
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
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == open:
			depth++
		case ch == close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// stripMarkdownCodeBlocks removes markdown code block markers from a string.
func stripMarkdownCodeBlocks(s string) string {
	s = strings.TrimSpace(s)
	// Check for ```json or ``` at start
	if cut, found := strings.CutPrefix(s, "```json"); found {
		s = cut
	} else if cut, found := strings.CutPrefix(s, "```"); found {
		s = cut
	}
	// Check for ``` at end
	if cut, found := strings.CutSuffix(s, "```"); found {
		s = cut
	}
	return strings.TrimSpace(s)
}
