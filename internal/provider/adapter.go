package provider

import (
	"context"
	"errors"
	"net"
	"net/url"
	"time"

	"github.com/MimeLyc/subtrans-engine/internal/llm"
	"github.com/MimeLyc/subtrans-engine/pkg/log"
)

// ChatClient is the slice of the LLM client the adapter needs.
type ChatClient interface {
	ChatCompletion(ctx context.Context, messages []llm.Message, opts *llm.ChatCompletionOptions) (*llm.ChatResponse, error)
}

// Adapter wraps a chat client into the single-call translation contract:
// per-attempt timeout comes from the client, transient failures retry with
// exponential backoff up to the policy ceiling, permanent failures and
// cancellations propagate immediately.
type Adapter struct {
	client ChatClient
	policy RetryPolicy
}

func NewAdapter(client ChatClient, policy RetryPolicy) *Adapter {
	return &Adapter{client: client, policy: policy}
}

// TranslateChunk translates one chunk, returning texts 1:1 with the chunk
// entries. A response whose shape cannot be aligned with the input is a
// permanent error.
func (a *Adapter) TranslateChunk(ctx context.Context, req Request) (*Result, error) {
	if len(req.Chunk.Entries) == 0 {
		return &Result{}, nil
	}

	userMessage, err := buildUserMessage(req)
	if err != nil {
		return nil, permanentErr("failed to encode chunk", err)
	}

	messages := []llm.Message{{Role: "user", Content: userMessage}}
	opts := llm.NewChatCompletionOptions().
		WithSystemPrompt(buildSystemPrompt(req)).
		WithTemperature(0.2)
	if req.ModelID != "" {
		opts = opts.WithModel(req.ModelID)
	}

	attempts := a.policy.attempts()
	var lastErr *ProviderError

	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := a.client.ChatCompletion(ctx, messages, opts)
		if err != nil {
			if ctx.Err() != nil {
				// a deliberate abort, not a provider failure
				return nil, ctx.Err()
			}
			lastErr = classify(err)
			if !lastErr.Transient {
				return nil, lastErr
			}
			if attempt == attempts {
				break
			}
			delay := a.policy.delayFor(attempt)
			log.Warn("transient provider failure (attempt %d/%d), retrying in %s: %v", attempt, attempts, delay, err)
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}

		if len(resp.Choices) == 0 {
			return nil, permanentErr("provider returned no choices", nil)
		}

		texts, perr := parseChunkOutput(resp.Choices[0].Message.Content, req.Chunk.Entries)
		if perr != nil {
			return nil, perr
		}
		return &Result{Texts: texts, Usage: resp.Usage}, nil
	}

	return nil, lastErr
}

// classify sorts a chat client failure into the transient/permanent split.
func classify(err error) *ProviderError {
	var apiErr *llm.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 408, apiErr.StatusCode == 429, apiErr.StatusCode >= 500:
			return transientErr("provider is rate limited or unavailable", err)
		case apiErr.StatusCode >= 400:
			return permanentErr("provider rejected the request", err)
		}
		switch apiErr.Type {
		case "rate_limit_error", "server_error", "overloaded_error", "timeout":
			return transientErr("provider reported a retryable condition", err)
		default:
			return permanentErr("provider reported an error", err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return transientErr("provider call timed out", err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return transientErr("provider is unreachable", err)
	}

	return permanentErr("provider call failed", err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
