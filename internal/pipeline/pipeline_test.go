package pipeline

import (
	"context"
	"testing"
	"time"

	"meetingpipeline/internal/apperrors"
	"meetingpipeline/internal/asrengine"
	"meetingpipeline/internal/audiopre"
	"meetingpipeline/internal/config"
	"meetingpipeline/internal/hotword"
	"meetingpipeline/internal/history"
	"meetingpipeline/internal/model"
	"meetingpipeline/internal/provider"
	"meetingpipeline/internal/template"
)

type fakeASR struct {
	segments []model.TranscriptSegment
	text     string
	err      error
}

func (f *fakeASR) Recognize(ctx context.Context, audio []byte, opts provider.ASROptions) (string, []model.TranscriptSegment, error) {
	if f.err != nil {
		return "", nil, f.err
	}
	return f.text, f.segments, nil
}
func (f *fakeASR) RecognizeURL(ctx context.Context, url string, opts provider.ASROptions) (string, []model.TranscriptSegment, error) {
	return f.Recognize(ctx, nil, opts)
}
func (f *fakeASR) RequiresURL() bool            { return false }
func (f *fakeASR) Ready(ctx context.Context) error { return nil }
func (f *fakeASR) Name() string                 { return "fake" }

type fakeLLM struct{}

func (f *fakeLLM) Complete(ctx context.Context, system, user string, opts provider.LLMOptions) (string, int, error) {
	return "# Minutes\nGenerated content.", 42, nil
}
func (f *fakeLLM) Ready(ctx context.Context) error { return nil }
func (f *fakeLLM) Name() string                    { return "fake" }

func newTestController(t *testing.T, asrProv provider.ASRProvider) *Controller {
	cfg := config.Load()
	cfg.TempDir = t.TempDir()
	cfg.ASRDeadline = time.Minute
	cfg.LLMDeadline = time.Minute

	providers := &provider.Providers{
		ASR: map[string]provider.ASRProvider{"fake": asrProv},
		LLM: map[string]provider.LLMProvider{"fake": &fakeLLM{}},
	}

	hotwords := hotword.New(t.TempDir() + "/missing-hotwords.json")
	preprocessor := audiopre.New(t.TempDir())
	engine := asrengine.New(0)
	templates, err := template.New(8000)
	if err != nil {
		t.Fatalf("template.New: %v", err)
	}
	hist := history.New(nil, nil, nil, nil, 5, 0.3)

	return New(cfg, providers, hotwords, preprocessor, engine, nil, templates, hist, nil)
}

func TestRunRejectsWhenNoInputSupplied(t *testing.T) {
	c := newTestController(t, &fakeASR{})
	_, err := c.Run(context.Background(), Request{ASRModel: "fake", LLMModel: "fake"})
	if !apperrors.Is(err, apperrors.BadInput) {
		t.Fatalf("expected BadInput, got %v", err)
	}
}

func TestRunRejectsWhenMultipleInputKindsSupplied(t *testing.T) {
	c := newTestController(t, &fakeASR{})
	req := Request{
		TextContent:  "hello",
		DocumentFile: &model.AudioSource{Filename: "a.txt", Bytes: []byte("x")},
		ASRModel:     "fake", LLMModel: "fake",
	}
	_, err := c.Run(context.Background(), req)
	if !apperrors.Is(err, apperrors.BadInput) {
		t.Fatalf("expected BadInput, got %v", err)
	}
}

func TestRunTextPathReturnsRawTextAndEmptyTranscript(t *testing.T) {
	c := newTestController(t, &fakeASR{})
	resp, err := c.Run(context.Background(), Request{TextContent: "今天讨论了产品迭代", ASRModel: "fake", LLMModel: "fake"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.Status != "success" {
		t.Fatalf("Status = %q", resp.Status)
	}
	if resp.RawText != "今天讨论了产品迭代" {
		t.Fatalf("RawText = %q", resp.RawText)
	}
	if len(resp.Transcript) != 0 {
		t.Fatalf("expected empty transcript for text path, got %d segments", len(resp.Transcript))
	}
	if resp.HTMLContent == "" {
		t.Fatalf("expected non-empty html content")
	}
	if resp.UsageTokens != 42 {
		t.Fatalf("UsageTokens = %d", resp.UsageTokens)
	}
}

func TestRunAudioPathMergesSegmentsWithTimestampShift(t *testing.T) {
	asrProv := &fakeASR{
		text: "hello there",
		segments: []model.TranscriptSegment{
			{Text: "hello", StartS: 0, EndS: 2, SpeakerID: 0},
			{Text: "there", StartS: 2, EndS: 5, SpeakerID: 0},
		},
	}
	c := newTestController(t, asrProv)

	req := Request{
		AudioSources: []model.AudioSource{
			{Kind: model.SourceUploaded, Filename: "a.wav", Bytes: []byte("fake-audio-1")},
			{Kind: model.SourceUploaded, Filename: "b.wav", Bytes: []byte("fake-audio-2")},
		},
		ASRModel: "fake", LLMModel: "fake",
	}
	resp, err := c.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(resp.Transcript) != 4 {
		t.Fatalf("expected 4 merged segments, got %d", len(resp.Transcript))
	}

	for i := 0; i < len(resp.Transcript)-1; i++ {
		if resp.Transcript[i+1].StartS < resp.Transcript[i].StartS {
			t.Fatalf("expected monotonic start times across merged files, got %v", resp.Transcript)
		}
	}
	// second file's segments should be shifted by the first file's duration (5s)
	if resp.Transcript[2].StartS < 5 {
		t.Fatalf("expected second file's segments shifted past first file's duration, got StartS=%v", resp.Transcript[2].StartS)
	}
}

func TestRunAudioPathKeepsProviderLabelsForSingleSpeakerMonologue(t *testing.T) {
	// Every segment carries the real (not sentinel) label 0, i.e. a
	// monologue recognized by a provider that does label speakers. This
	// must not be mistaken for "no labels produced" and routed through the
	// silence diarizer, which would fabricate extra speakers out of pause
	// gaps.
	asrProv := &fakeASR{
		text: "hello there friend",
		segments: []model.TranscriptSegment{
			{Text: "hello", StartS: 0, EndS: 2, SpeakerID: 0},
			{Text: "there", StartS: 5, EndS: 7, SpeakerID: 0},
			{Text: "friend", StartS: 10, EndS: 12, SpeakerID: 0},
		},
	}
	c := newTestController(t, asrProv)

	req := Request{
		AudioSources: []model.AudioSource{
			{Kind: model.SourceUploaded, Filename: "a.wav", Bytes: []byte("fake-audio")},
		},
		EnableDiarization: true,
		ASRModel:           "fake", LLMModel: "fake",
	}
	resp, err := c.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, seg := range resp.Transcript {
		if seg.SpeakerID != 0 {
			t.Fatalf("expected every segment to keep the provider's real speaker id 0, got %d in %v", seg.SpeakerID, resp.Transcript)
		}
	}
}

func TestRunAudioPathSingleSourceReportsNoFileErrors(t *testing.T) {
	cfg := config.Load()
	cfg.TempDir = t.TempDir()
	cfg.ASRDeadline = time.Minute
	cfg.LLMDeadline = time.Minute

	providers := &provider.Providers{
		ASR: map[string]provider.ASRProvider{
			"good": &fakeASR{text: "ok", segments: []model.TranscriptSegment{{Text: "ok", StartS: 0, EndS: 1}}},
		},
		LLM: map[string]provider.LLMProvider{"fake": &fakeLLM{}},
	}
	hotwords := hotword.New(t.TempDir() + "/missing-hotwords.json")
	preprocessor := audiopre.New(t.TempDir())
	engine := asrengine.New(0)
	templates, err := template.New(8000)
	if err != nil {
		t.Fatalf("template.New: %v", err)
	}
	hist := history.New(nil, nil, nil, nil, 5, 0.3)
	c := New(cfg, providers, hotwords, preprocessor, engine, nil, templates, hist, nil)

	// A single source that the provider recognizes successfully must come
	// back with an empty per-file error list: the partial-failure
	// bookkeeping must not report anything on the all-success path.
	req := Request{
		AudioSources: []model.AudioSource{
			{Kind: model.SourceUploaded, Filename: "a.wav", Bytes: []byte("fake-audio")},
		},
		ASRModel: "good", LLMModel: "fake",
	}
	resp, err := c.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(resp.FileErrors) != 0 {
		t.Fatalf("expected no file errors, got %v", resp.FileErrors)
	}
}
