package provider

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/subtrans-engine/internal/chunker"
	"github.com/MimeLyc/subtrans-engine/internal/subtitle"
)

func TestBuildUserMessage(t *testing.T) {
	req := Request{Chunk: chunker.Chunk{Entries: []subtitle.Entry{
		{Index: 4, Text: "First line"},
		{Index: 5, Text: "Line with \"quotes\""},
		{Index: 6, Text: ""},
	}}}

	raw, err := buildUserMessage(req)
	require.NoError(t, err)

	var payload linesPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	require.Len(t, payload.Lines, 3)

	assert.Equal(t, 4, payload.Lines[0].Index)
	assert.Equal(t, "First line", payload.Lines[0].Text)
	assert.Equal(t, `Line with "quotes"`, payload.Lines[1].Text)
	assert.Equal(t, "", payload.Lines[2].Text, "empty source lines travel as empty strings")
}

func TestBuildSystemPromptSections(t *testing.T) {
	req := Request{
		Chunk: chunker.Chunk{
			Entries: []subtitle.Entry{{Index: 3, Text: "Current line"}},
			PrecedingContext: []subtitle.TranslatedEntry{
				{Entry: subtitle.Entry{Index: 1, Text: "Hello"}, TranslatedText: "Bonjour"},
			},
			FollowingContextHint: []subtitle.Entry{{Index: 4, Text: "See you"}},
		},
		SourceLanguage: "English",
		TargetLanguage: "French",
		Style:          "casual register, keep slang",
		Terms:          map[string]string{"Stormwind": "Hurlevent"},
	}

	prompt := buildSystemPrompt(req)

	assert.Contains(t, prompt, "from English to French")
	assert.Contains(t, prompt, "=== STYLE ===")
	assert.Contains(t, prompt, "casual register, keep slang")
	assert.Contains(t, prompt, "=== TERM MAPPINGS ===")
	assert.Contains(t, prompt, "Stormwind => Hurlevent")
	assert.Contains(t, prompt, "=== PRECEDING DIALOGUE (already translated) ===")
	assert.Contains(t, prompt, "Hello => Bonjour")
	assert.Contains(t, prompt, "=== UPCOMING DIALOGUE (source only) ===")
	assert.Contains(t, prompt, "See you")
	assert.Contains(t, prompt, "Do NOT merge, split, reorder, or drop lines")
	assert.Contains(t, prompt, "MUST be an empty string")
	assert.Contains(t, prompt, "=== OUTPUT FORMAT ===")
	assert.NotContains(t, prompt, "Current line", "chunk entries belong to the user message, not the prompt")
}

func TestBuildSystemPromptOmitsEmptySections(t *testing.T) {
	req := Request{
		Chunk:          chunker.Chunk{Entries: []subtitle.Entry{{Index: 1, Text: "Hi"}}},
		SourceLanguage: "English",
		TargetLanguage: "German",
	}

	prompt := buildSystemPrompt(req)

	assert.NotContains(t, prompt, "=== STYLE ===")
	assert.NotContains(t, prompt, "=== TERM MAPPINGS ===")
	assert.NotContains(t, prompt, "=== PRECEDING DIALOGUE")
	assert.NotContains(t, prompt, "=== UPCOMING DIALOGUE")
	assert.Contains(t, prompt, "=== TRANSLATION GUIDELINES ===")
}
