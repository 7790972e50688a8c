package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"time"

	"meetingpipeline/internal/apperrors"
)

// OllamaEmbeddingProvider computes text embeddings via an Ollama-style
// /api/embeddings endpoint, adapted from model/ollama.go (NewOllamaEmbedder
// / Embed) generalized to batch requests and a configurable dimension.
type OllamaEmbeddingProvider struct {
	apiURL string
	model  string
	dim    int
	client *http.Client
}

func NewOllamaEmbeddingProvider(apiURL, model string, dim int) *OllamaEmbeddingProvider {
	return &OllamaEmbeddingProvider{apiURL: apiURL, model: model, dim: dim, client: &http.Client{Timeout: 30 * time.Second}}
}

func (e *OllamaEmbeddingProvider) Dimension() int { return e.dim }

func (e *OllamaEmbeddingProvider) Ready(ctx context.Context) error {
	if e.apiURL == "" {
		return apperrors.New(apperrors.UpstreamUnavailable, "embedding provider not configured")
	}
	return nil
}

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed computes one embedding per text, sequentially (Ollama's
// /api/embeddings endpoint takes a single prompt per call, matching the
// teacher's one-text-at-a-time OllamaEmbedder.Embed).
func (e *OllamaEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.embedOne(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *OllamaEmbeddingProvider) embedOne(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbeddingRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "marshal embedding request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "build embedding request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.Wrap(ctx.Err(), apperrors.Cancelled, "embedding call cancelled")
		}
		return nil, apperrors.Wrap(err, apperrors.UpstreamTimeout, "embedding request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, apperrors.Newf(apperrors.UpstreamUnavailable, "embedding api error %d: %s", resp.StatusCode, string(b))
	}

	var out ollamaEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "decode embedding response")
	}

	normalizeL2(out.Embedding)
	vec := make([]float32, len(out.Embedding))
	for i, v := range out.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// normalizeL2 rescales vec to unit length in place, matching
// model/ollama.go's normalize64.
func normalizeL2(vec []float64) {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	for i, v := range vec {
		vec[i] = v / norm
	}
}
