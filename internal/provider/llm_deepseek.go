package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"meetingpipeline/internal/apperrors"
)

// DeepSeekProvider talks to an OpenAI-compatible chat-completions endpoint,
// grounded on app/services/llm.py's use of the OpenAI SDK against a
// DeepSeek-compatible base_url.
type DeepSeekProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewDeepSeekProvider(baseURL, apiKey string) *DeepSeekProvider {
	return &DeepSeekProvider{baseURL: baseURL, apiKey: apiKey, client: &http.Client{Timeout: 3 * time.Minute}}
}

func (p *DeepSeekProvider) Name() string { return "deepseek" }

func (p *DeepSeekProvider) Ready(ctx context.Context) error {
	if p.apiKey == "" {
		return apperrors.New(apperrors.UpstreamAuth, "deepseek api key not configured")
	}
	return nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (p *DeepSeekProvider) Complete(ctx context.Context, system, user string, opts LLMOptions) (string, int, error) {
	model := opts.ModelName
	if model == "" {
		model = "deepseek-chat"
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
	return doOpenAICompatibleChat(ctx, p.client, p.baseURL, p.apiKey, reqBody)
}

func doOpenAICompatibleChat(ctx context.Context, client *http.Client, baseURL, apiKey string, body chatCompletionRequest) (string, int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", 0, apperrors.Wrap(err, apperrors.Internal, "marshal chat request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", 0, apperrors.Wrap(err, apperrors.Internal, "build chat request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", 0, apperrors.Wrap(ctx.Err(), apperrors.Cancelled, "chat request cancelled")
		}
		return "", 0, apperrors.Wrap(err, apperrors.UpstreamTimeout, "chat request failed")
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, apperrors.Wrap(err, apperrors.Internal, "read chat response")
	}

	switch {
	case resp.StatusCode == 401 || resp.StatusCode == 403:
		return "", 0, apperrors.New(apperrors.UpstreamAuth, "llm provider rejected credentials")
	case resp.StatusCode == 429:
		return "", 0, apperrors.New(apperrors.UpstreamRateLimited, "llm provider rate limited the request")
	case resp.StatusCode == 400 && bytes.Contains(b, []byte("context_length")):
		return "", 0, apperrors.New(apperrors.ContextLength, "prompt exceeds model context length")
	case resp.StatusCode >= 500:
		return "", 0, apperrors.Newf(apperrors.UpstreamUnavailable, "llm provider returned %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return "", 0, apperrors.Newf(apperrors.Internal, "llm provider error %d: %s", resp.StatusCode, string(b))
	}

	var out chatCompletionResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return "", 0, apperrors.Wrap(err, apperrors.Internal, "decode chat response")
	}
	if out.Error != nil {
		return "", 0, apperrors.Newf(apperrors.Internal, "llm provider error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", 0, apperrors.New(apperrors.Internal, "llm provider returned no choices")
	}
	return out.Choices[0].Message.Content, out.Usage.TotalTokens, nil
}
