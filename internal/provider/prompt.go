package provider

import (
	"encoding/json"
	"fmt"
	"strings"
)

type indexedLine struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

type linesPayload struct {
	Lines []indexedLine `json:"lines"`
}

// buildUserMessage serializes the chunk entries as indexed JSON lines. The
// model echoes the indexes back, which makes reordered output safe to align.
func buildUserMessage(req Request) (string, error) {
	payload := linesPayload{Lines: make([]indexedLine, 0, len(req.Chunk.Entries))}
	for _, entry := range req.Chunk.Entries {
		payload.Lines = append(payload.Lines, indexedLine{Index: entry.Index, Text: entry.Text})
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chunk lines: %w", err)
	}
	return string(data), nil
}

// buildSystemPrompt builds the translation system prompt for one chunk.
func buildSystemPrompt(req Request) string {
	var prompt strings.Builder

	prompt.WriteString("You are a professional subtitle translation expert specializing in cross-language media localization. Translate subtitles from " + req.SourceLanguage + " to " + req.TargetLanguage + ".\n\n")

	if req.Style != "" {
		prompt.WriteString("=== STYLE ===\n")
		prompt.WriteString(req.Style + "\n\n")
	}

	if len(req.Terms) > 0 {
		prompt.WriteString("=== TERM MAPPINGS ===\n")
		prompt.WriteString("For every source term below you MUST use the mapped target term exactly:\n")
		for source, target := range req.Terms {
			prompt.WriteString(fmt.Sprintf("- %s => %s\n", source, target))
		}
		prompt.WriteString("\n")
	}

	if len(req.Chunk.PrecedingContext) > 0 {
		prompt.WriteString("=== PRECEDING DIALOGUE (already translated) ===\n")
		prompt.WriteString("Keep terminology and tone consistent with these lines. Do NOT translate them again:\n")
		for _, entry := range req.Chunk.PrecedingContext {
			prompt.WriteString(fmt.Sprintf("%s => %s\n", entry.Text, entry.TranslatedText))
		}
		prompt.WriteString("\n")
	}

	if len(req.Chunk.FollowingContextHint) > 0 {
		prompt.WriteString("=== UPCOMING DIALOGUE (source only) ===\n")
		prompt.WriteString("These lines come next. Use them to resolve ambiguity only; do NOT translate them:\n")
		for _, entry := range req.Chunk.FollowingContextHint {
			prompt.WriteString(entry.Text + "\n")
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("=== TRANSLATION GUIDELINES ===\n")
	prompt.WriteString("1. Keep names, places, and terminology consistent across all lines\n")
	prompt.WriteString("2. Ensure " + req.TargetLanguage + " flows naturally while preserving meaning\n")
	prompt.WriteString("3. Keep subtitle length appropriate for screen reading\n")
	prompt.WriteString("4. Do NOT merge, split, reorder, or drop lines\n")
	prompt.WriteString("5. If an input line is empty, output text for that index MUST be an empty string\n")
	prompt.WriteString("6. Preserve line breaks inside a text as \\n escapes; do NOT output literal newline characters in JSON text\n")

	prompt.WriteString("\n=== OUTPUT FORMAT ===\n")
	prompt.WriteString("Return ONLY a JSON array of objects {\"index\": <input index>, \"text\": \"<translation>\"}.\n")
	prompt.WriteString("One object per input line, same index values as the input.\n")
	prompt.WriteString("No markdown, no explanations. The output count must exactly match the input count.\n")

	return prompt.String()
}
