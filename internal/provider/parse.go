package provider

import (
	"encoding/json"
	"strings"

	"github.com/MimeLyc/subtrans-engine/internal/subtitle"
)

// parseChunkOutput aligns the model response with the chunk entries. It
// accepts the indexed-object contract, tolerating code fences, surrounding
// prose, and a plain string-array fallback. Anything that cannot be aligned
// 1:1 with the entries is a permanent error: guessing alignment would corrupt
// the track silently.
func parseChunkOutput(content string, entries []subtitle.Entry) ([]string, *ProviderError) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, permanentErr("empty response from provider", nil)
	}

	candidates := []string{content}
	if fenced := stripCodeFence(content); fenced != "" {
		candidates = append(candidates, fenced)
	}
	if extracted := extractJSONArray(content); extracted != "" {
		candidates = append(candidates, extracted)
	}

	for _, candidate := range candidates {
		if texts, ok := parseIndexedLines(candidate, entries); ok {
			return texts, nil
		}
		if texts, ok := parseStringArray(candidate, len(entries)); ok {
			return texts, nil
		}
	}

	return nil, permanentErr("response is not a json translation array matching the input lines", nil)
}

// parseIndexedLines parses `[{"index":N,"text":...}]` and orders the texts
// by entry. Indexes may arrive as the original entry indexes or renumbered
// from 1; both are accepted as long as the set matches exactly.
func parseIndexedLines(content string, entries []subtitle.Entry) ([]string, bool) {
	var lines []indexedLine
	if err := json.Unmarshal([]byte(content), &lines); err != nil {
		return nil, false
	}
	if len(lines) != len(entries) {
		return nil, false
	}

	byIndex := make(map[int]string, len(lines))
	for _, line := range lines {
		if _, dup := byIndex[line.Index]; dup {
			return nil, false
		}
		byIndex[line.Index] = line.Text
	}

	// original entry indexes
	texts := make([]string, 0, len(entries))
	complete := true
	for _, entry := range entries {
		text, ok := byIndex[entry.Index]
		if !ok {
			complete = false
			break
		}
		texts = append(texts, text)
	}
	if complete {
		return texts, true
	}

	// renumbered from 1
	texts = texts[:0]
	for i := range entries {
		text, ok := byIndex[i+1]
		if !ok {
			return nil, false
		}
		texts = append(texts, text)
	}
	return texts, true
}

func parseStringArray(content string, want int) ([]string, bool) {
	var texts []string
	if err := json.Unmarshal([]byte(content), &texts); err != nil {
		return nil, false
	}
	if len(texts) != want {
		return nil, false
	}
	return texts, true
}

// stripCodeFence returns the body of the first ``` fence, or "".
func stripCodeFence(content string) string {
	idx := strings.Index(content, "```")
	if idx < 0 {
		return ""
	}
	inner := content[idx+3:]
	// skip a language tag on the fence line, e.g. ```json
	if nl := strings.Index(inner, "\n"); nl >= 0 {
		inner = inner[nl+1:]
	}
	if end := strings.Index(inner, "```"); end >= 0 {
		inner = inner[:end]
	}
	return strings.TrimSpace(inner)
}

// extractJSONArray finds the outermost balanced [ ... ] block in s.
func extractJSONArray(s string) string {
	start := strings.Index(s, "[")
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		if c == '[' {
			depth++
		} else if c == ']' {
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
