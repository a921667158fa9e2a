package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MimeLyc/subtrans-engine/internal/chunker"
	"github.com/MimeLyc/subtrans-engine/internal/llm"
)

// Request carries one chunk translation call.
type Request struct {
	Chunk          chunker.Chunk
	SourceLanguage string
	TargetLanguage string
	// Style is a freeform register instruction, e.g. "casual, keep slang".
	Style string
	// Terms are glossary mappings that must be applied verbatim.
	Terms map[string]string
	// ModelID overrides the client's configured model when set.
	ModelID string
}

// Result is a successful chunk translation, 1:1 with the chunk entries.
type Result struct {
	Texts []string
	Usage llm.Usage
}

// Translator is the single-call provider contract the engine depends on.
type Translator interface {
	TranslateChunk(ctx context.Context, req Request) (*Result, error)
}

// RetryPolicy controls local retry of transient provider failures.
type RetryPolicy struct {
	// MaxAttempts is the total attempt ceiling per chunk, including the
	// first call. Values below 1 fall back to 1.
	MaxAttempts int
	// BaseDelay is the first backoff delay; it doubles on every further
	// retry.
	BaseDelay time.Duration
}

// DefaultRetryPolicy matches the documented rate-limit-tolerant defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) delayFor(attempt int) time.Duration {
	delay := p.BaseDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// ProviderError classifies a failed provider call. Transient failures
// (timeouts, rate limits, upstream outages) are worth retrying; permanent
// ones (auth, malformed requests, broken output shape) are not.
type ProviderError struct {
	Transient bool
	Message   string
	Cause     error
}

func (e *ProviderError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.Cause != nil {
		return fmt.Sprintf("provider error (%s): %s: %v", kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("provider error (%s): %s", kind, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// IsTransient reports whether err is a transient provider error.
func IsTransient(err error) bool {
	var perr *ProviderError
	return errors.As(err, &perr) && perr.Transient
}

// IsPermanent reports whether err is a permanent provider error.
func IsPermanent(err error) bool {
	var perr *ProviderError
	return errors.As(err, &perr) && !perr.Transient
}

func transientErr(message string, cause error) *ProviderError {
	return &ProviderError{Transient: true, Message: message, Cause: cause}
}

func permanentErr(message string, cause error) *ProviderError {
	return &ProviderError{Transient: false, Message: message, Cause: cause}
}
