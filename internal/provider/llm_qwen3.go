package provider

import (
	"context"
	"net/http"
	"time"

	"meetingpipeline/internal/apperrors"
)

var sharedHTTPClient = &http.Client{Timeout: 3 * time.Minute}

// Qwen3Provider talks to an OpenAI-compatible chat-completions endpoint
// exposed by DashScope's compatible-mode API, grounded on the same
// llm_factory.py pattern that swaps base_url/model between providers.
type Qwen3Provider struct {
	baseURL string
	apiKey  string
}

func NewQwen3Provider(baseURL, apiKey string) *Qwen3Provider {
	return &Qwen3Provider{baseURL: baseURL, apiKey: apiKey}
}

func (p *Qwen3Provider) Name() string { return "qwen3" }

func (p *Qwen3Provider) Ready(ctx context.Context) error {
	if p.apiKey == "" {
		return apperrors.New(apperrors.UpstreamAuth, "qwen3 api key not configured")
	}
	return nil
}

func (p *Qwen3Provider) Complete(ctx context.Context, system, user string, opts LLMOptions) (string, int, error) {
	model := opts.ModelName
	if model == "" {
		model = "qwen3-max"
	}
	reqBody := chatCompletionRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	return doOpenAICompatibleChat(ctx, sharedHTTPClient, p.baseURL, p.apiKey, reqBody)
}
