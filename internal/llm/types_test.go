package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChatCompletionOptions(t *testing.T) {
	opts := NewChatCompletionOptions().
		WithSystemPrompt("You are a translator.").
		WithMaxTokens(256).
		WithTemperature(0.2)

	assert.Equal(t, "You are a translator.", opts.SystemPrompt)
	assert.Equal(t, 256, opts.MaxTokens)
	assert.Equal(t, 0.2, opts.Temperature)
}

func TestErrorImplementation(t *testing.T) {
	err := &Error{
		Message: "rate limited",
		Type:    "rate_limit_error",
		Code:    "429",
	}

	assert.Contains(t, err.Error(), "rate limited")
	assert.Contains(t, err.Error(), "rate_limit_error")
}

func TestUsageAdd(t *testing.T) {
	total := Usage{}
	total.Add(Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15})
	total.Add(Usage{PromptTokens: 2, CompletionTokens: 3, TotalTokens: 5})

	assert.Equal(t, 12, total.PromptTokens)
	assert.Equal(t, 8, total.CompletionTokens)
	assert.Equal(t, 20, total.TotalTokens)
}
