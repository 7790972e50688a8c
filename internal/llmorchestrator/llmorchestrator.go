// Package llmorchestrator submits (system, user) prompts to an
// LLMProvider with bounded retry and the context-length recovery step
// (spec.md §4.10), grounded on
// GriffinCanCode-good-listener/backend/platform/resilience/retry.go's
// generic backoff policy and on original_source/app/services/llm.py's
// context-length handling and thinking-tag stripping.
package llmorchestrator

import (
	"context"
	"regexp"
	"strings"

	"meetingpipeline/internal/apperrors"
	"meetingpipeline/internal/provider"
	"meetingpipeline/internal/resilience"
)

// Orchestrator wraps an LLMProvider with retry and context-length
// recovery. One instance per provider is enough; it holds no
// request-scoped state.
type Orchestrator struct {
	llm provider.LLMProvider
}

func New(llm provider.LLMProvider) *Orchestrator {
	return &Orchestrator{llm: llm}
}

// Complete submits the prompt with 3 attempts, 1s/2s/4s backoff and 20%
// jitter on transient errors (TIMEOUT, UPSTREAM_5XX, RATE_LIMITED).
// Deterministic failures (AUTH) surface immediately. On CONTEXT_LENGTH
// max_tokens is halved once and the call retried outside the backoff
// loop; if that retry also fails, the error surfaces.
func (o *Orchestrator) Complete(ctx context.Context, system, user string, opts provider.LLMOptions) (string, int, error) {
	text, tokens, err := o.completeWithBackoff(ctx, system, user, opts)
	if err != nil && apperrors.Is(err, apperrors.ContextLength) && opts.MaxTokens > 1 {
		halved := opts
		halved.MaxTokens = opts.MaxTokens / 2
		text, tokens, err = o.completeWithBackoff(ctx, system, user, halved)
	}
	if err != nil {
		return "", 0, err
	}
	return RemoveThinkingTags(text), tokens, nil
}

func (o *Orchestrator) completeWithBackoff(ctx context.Context, system, user string, opts provider.LLMOptions) (string, int, error) {
	cfg := resilience.DefaultConfig(apperrors.Retryable)
	var text string
	var tokens int
	_, err := resilience.Do(ctx, cfg, func(attempt int) error {
		var callErr error
		text, tokens, callErr = o.llm.Complete(ctx, system, user, opts)
		return callErr
	})
	return text, tokens, err
}

var thinkTagRE = regexp.MustCompile(`(?is)<think>.*?</think>`)

// RemoveThinkingTags strips <think>...</think> reasoning blocks some
// models emit ahead of their actual answer, grounded on
// original_source/app/services/llm.py's remove_thinking_tags (narrowed
// to the standard-tag case; the original's HTML-heuristic fallbacks
// were model-specific workarounds this repo's providers don't need).
func RemoveThinkingTags(text string) string {
	if text == "" {
		return text
	}
	cleaned := thinkTagRE.ReplaceAllString(text, "")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.Trim(cleaned, "\"")
	return strings.TrimSpace(cleaned)
}
