package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"meetingpipeline/internal/archive"
	"meetingpipeline/internal/asrengine"
	"meetingpipeline/internal/audiopre"
	"meetingpipeline/internal/config"
	"meetingpipeline/internal/history"
	"meetingpipeline/internal/hotword"
	"meetingpipeline/internal/model"
	"meetingpipeline/internal/pipeline"
	"meetingpipeline/internal/provider"
	"meetingpipeline/internal/template"
)

type fakeASR struct{}

func (f *fakeASR) Recognize(ctx context.Context, audio []byte, opts provider.ASROptions) (string, []model.TranscriptSegment, error) {
	return "", nil, nil
}
func (f *fakeASR) RecognizeURL(ctx context.Context, url string, opts provider.ASROptions) (string, []model.TranscriptSegment, error) {
	return "", nil, nil
}
func (f *fakeASR) RequiresURL() bool               { return false }
func (f *fakeASR) Ready(ctx context.Context) error { return nil }
func (f *fakeASR) Name() string                    { return "fake" }

type fakeLLM struct{}

func (f *fakeLLM) Complete(ctx context.Context, system, user string, opts provider.LLMOptions) (string, int, error) {
	return "# Minutes\nok.", 10, nil
}
func (f *fakeLLM) Ready(ctx context.Context) error { return nil }
func (f *fakeLLM) Name() string                    { return "fake" }

type fakeEmbedding struct{ dim int }

func (f *fakeEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}
func (f *fakeEmbedding) Dimension() int                   { return f.dim }
func (f *fakeEmbedding) Ready(ctx context.Context) error { return nil }

type fakeVoiceEmbedding struct{ dim int }

func (f *fakeVoiceEmbedding) EmbedVoice(ctx context.Context, audio []byte) ([]float32, error) {
	return make([]float32, f.dim), nil
}
func (f *fakeVoiceEmbedding) Dimension() int                   { return f.dim }
func (f *fakeVoiceEmbedding) Ready(ctx context.Context) error { return nil }

type fakeVector struct {
	records map[string]model.VectorRecord
}

func newFakeVector() *fakeVector { return &fakeVector{records: map[string]model.VectorRecord{}} }

func (f *fakeVector) EnsureCollection(ctx context.Context, name string, dim int) error { return nil }
func (f *fakeVector) Upsert(ctx context.Context, name string, records []model.VectorRecord) error {
	for _, r := range records {
		f.records[r.ID] = r
	}
	return nil
}
func (f *fakeVector) Delete(ctx context.Context, name string, ids []string) error {
	for _, id := range ids {
		delete(f.records, id)
	}
	return nil
}
func (f *fakeVector) Query(ctx context.Context, name string, vec []float32, k int, filter map[string]any) ([]provider.VectorQueryResult, error) {
	return nil, nil
}
func (f *fakeVector) Ready(ctx context.Context) error { return nil }

type fakeVoiceprintStore struct {
	registered []model.VoiceprintRecord
}

func (f *fakeVoiceprintStore) Register(ctx context.Context, rec model.VoiceprintRecord) error {
	f.registered = append(f.registered, rec)
	return nil
}
func (f *fakeVoiceprintStore) MatchTop1(ctx context.Context, embedding []float32) (string, string, float64, bool, error) {
	return "", "", 0, false, nil
}
func (f *fakeVoiceprintStore) Count(ctx context.Context) (int, error) { return len(f.registered), nil }
func (f *fakeVoiceprintStore) Ready(ctx context.Context) error        { return nil }

func newTestServer(t *testing.T) *Server {
	providers := &provider.Providers{
		ASR:        map[string]provider.ASRProvider{"funasr": &fakeASR{}},
		LLM:        map[string]provider.LLMProvider{"deepseek": &fakeLLM{}},
		Embedding:  &fakeEmbedding{dim: 8},
		VoiceEmbed: &fakeVoiceEmbedding{dim: model.VoiceprintDim},
		Vector:     newFakeVector(),
		Voiceprint: &fakeVoiceprintStore{},
	}

	cfg := config.Load()
	cfg.TempDir = t.TempDir()
	cfg.ASRDeadline = time.Minute
	cfg.LLMDeadline = time.Minute

	hotwords := hotword.New(t.TempDir() + "/missing.json")
	preprocessor := audiopre.New(t.TempDir())
	engine := asrengine.New(0)
	templates, err := template.New(8000)
	if err != nil {
		t.Fatalf("template.New: %v", err)
	}
	hist := history.New(providers.Embedding, providers.Vector, nil, nil, 5, 0.3)
	archiveSvc := archive.New(providers.Embedding, providers.Vector)
	controller := pipeline.New(cfg, providers, hotwords, preprocessor, engine, nil, templates, hist, archiveSvc)

	return NewServer(":0", Deps{
		Controller: controller,
		Archive:    archiveSvc,
		Hotwords:   hotwords,
		Providers:  providers,
		ASRModel:   "funasr",
		LLMModel:   "deepseek",
	})
}

func multipartRequest(t *testing.T, fields map[string]string) *http.Request {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/process", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealthReportsProviderReadiness(t *testing.T) {
	s := newTestServer(t)
	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "healthy" {
		t.Fatalf("status = %q", body.Status)
	}
	if body.Providers["asr"] != "ready" {
		t.Fatalf("asr readiness = %q", body.Providers["asr"])
	}
}

func TestProcessTextContentReturnsSuccess(t *testing.T) {
	s := newTestServer(t)
	req := multipartRequest(t, map[string]string{
		"text_content": "今天讨论了产品迭代",
		"template":     "default",
		"asr_model":    "funasr",
		"llm_model":    "deepseek",
	})
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	var out processResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Status != "success" {
		t.Fatalf("status = %q", out.Status)
	}
	if out.RawText != "今天讨论了产品迭代" {
		t.Fatalf("raw_text = %q", out.RawText)
	}
}

func TestProcessRejectsAmbiguousInput(t *testing.T) {
	s := newTestServer(t)
	req := multipartRequest(t, map[string]string{
		"text_content": "a",
		"audio_id":     "stored-1",
	})
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest && resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected an error status, got %d", resp.StatusCode)
	}
}

func TestHotwordsReturnsEmptyBaselineForMissingFile(t *testing.T) {
	s := newTestServer(t)
	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/hotwords", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	var out hotwordsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Total != 0 {
		t.Fatalf("expected empty baseline table, got total=%d", out.Total)
	}
}
