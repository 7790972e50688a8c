package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"meetingpipeline/internal/apperrors"
	"meetingpipeline/internal/model"
)

// FunASRVoiceEmbeddingProvider extracts a speaker embedding from a short
// audio clip via a FunASR-standalone speaker-embedding endpoint, grounded
// on voice_matcher.py's _extract_vector (an in-process CAM++ model call
// in Python), adapted to the same multipart-HTTP pattern FunASRProvider
// already uses for recognition, since this repo's Go process talks to the
// FunASR service exclusively over HTTP rather than hosting the model.
type FunASRVoiceEmbeddingProvider struct {
	baseURL string
	client  *http.Client
}

func NewFunASRVoiceEmbeddingProvider(baseURL string) *FunASRVoiceEmbeddingProvider {
	return &FunASRVoiceEmbeddingProvider{baseURL: baseURL, client: &http.Client{Timeout: 30 * time.Second}}
}

func (p *FunASRVoiceEmbeddingProvider) Dimension() int { return model.VoiceprintDim }

func (p *FunASRVoiceEmbeddingProvider) Ready(ctx context.Context) error {
	if p.baseURL == "" {
		return apperrors.New(apperrors.UpstreamUnavailable, "voice embedding provider not configured")
	}
	return nil
}

type voiceEmbeddingResponse struct {
	SpkEmbedding []float64 `json:"spk_embedding"`
}

func (p *FunASRVoiceEmbeddingProvider) EmbedVoice(ctx context.Context, audio []byte) ([]float32, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "clip.wav")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "build multipart request")
	}
	if _, err := fw.Write(audio); err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "write audio payload")
	}
	if err := mw.Close(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "close multipart writer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/speaker-embedding", &body)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "build request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.Wrap(ctx.Err(), apperrors.Cancelled, "voice embedding call cancelled")
		}
		return nil, apperrors.Wrap(err, apperrors.UpstreamTimeout, "voice embedding request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, apperrors.Newf(apperrors.UpstreamUnavailable, "voice embedding service returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return nil, apperrors.Newf(apperrors.Internal, "voice embedding error %d: %s", resp.StatusCode, string(b))
	}

	var out voiceEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "decode voice embedding response")
	}
	if len(out.SpkEmbedding) != model.VoiceprintDim {
		return nil, apperrors.Newf(apperrors.VectorDimMismatch, "voice embedding service returned dim %d, want %d", len(out.SpkEmbedding), model.VoiceprintDim)
	}

	vec := make([]float32, len(out.SpkEmbedding))
	for i, v := range out.SpkEmbedding {
		vec[i] = float32(v)
	}
	return vec, nil
}
