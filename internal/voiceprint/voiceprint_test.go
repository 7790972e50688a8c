package voiceprint

import (
	"context"
	"testing"

	"meetingpipeline/internal/model"
)

type fakeEmbedder struct {
	embedding []float32
	err       error
}

func (f *fakeEmbedder) EmbedVoice(ctx context.Context, audio []byte) ([]float32, error) {
	return f.embedding, f.err
}
func (f *fakeEmbedder) Dimension() int                  { return model.VoiceprintDim }
func (f *fakeEmbedder) Ready(ctx context.Context) error { return nil }

type fakeStore struct {
	count            int
	employeeID, name string
	similarity       float64
	found            bool
	err              error
}

func (f *fakeStore) Register(ctx context.Context, rec model.VoiceprintRecord) error { return nil }
func (f *fakeStore) MatchTop1(ctx context.Context, embedding []float32) (string, string, float64, bool, error) {
	return f.employeeID, f.name, f.similarity, f.found, f.err
}
func (f *fakeStore) Count(ctx context.Context) (int, error) { return f.count, nil }
func (f *fakeStore) Ready(ctx context.Context) error        { return nil }

// fakeExtractor stands in for *audiopre.Preprocessor's ffmpeg-backed
// ExtractClip so these tests never shell out to a real binary.
type fakeExtractor struct {
	clip []byte
	ok   bool
}

func (f *fakeExtractor) ExtractClip(ctx context.Context, audio []byte, startS, endS float64) ([]byte, bool) {
	return f.clip, f.ok
}

func TestMatchAttachesNameAboveThreshold(t *testing.T) {
	segs := []model.TranscriptSegment{
		{SpeakerID: 0, StartS: 0, EndS: 5, Text: "hello"},
		{SpeakerID: 0, StartS: 5, EndS: 6, Text: "world"},
		{SpeakerID: 1, StartS: 6, EndS: 7, Text: "hi"},
	}
	embedder := &fakeEmbedder{embedding: make([]float32, model.VoiceprintDim)}
	store := &fakeStore{count: 1, employeeID: "EMP001", name: "张三", similarity: 0.9, found: true}
	extractor := &fakeExtractor{clip: []byte("RIFF...WAVEfmt clip"), ok: true}

	m := New(embedder, store, extractor, 0.75)
	m.Match(context.Background(), make([]byte, 16000*2*10), segs)

	for _, s := range segs[:2] {
		if s.SpeakerName != "张三" || s.EmployeeID != "EMP001" || !s.HasVoiceMatch {
			t.Fatalf("speaker 0 segment not matched: %+v", s)
		}
	}
	if !segs[2].HasVoiceMatch {
		t.Fatalf("speaker 1 should also match since the fake store returns the same top-1 hit regardless of the query embedding")
	}
}

func TestMatchSkipsWhenStoreEmpty(t *testing.T) {
	segs := []model.TranscriptSegment{{SpeakerID: 0, StartS: 0, EndS: 5}}
	embedder := &fakeEmbedder{embedding: make([]float32, model.VoiceprintDim)}
	store := &fakeStore{count: 0}
	extractor := &fakeExtractor{clip: []byte("clip"), ok: true}

	m := New(embedder, store, extractor, 0.75)
	m.Match(context.Background(), make([]byte, 1000), segs)

	if segs[0].HasVoiceMatch {
		t.Fatalf("empty voiceprint store should never produce a match")
	}
}

func TestMatchIsNonFatalBelowThreshold(t *testing.T) {
	segs := []model.TranscriptSegment{{SpeakerID: 0, StartS: 0, EndS: 5}}
	embedder := &fakeEmbedder{embedding: make([]float32, model.VoiceprintDim)}
	store := &fakeStore{count: 1, employeeID: "EMP001", name: "张三", similarity: 0.5, found: true}
	extractor := &fakeExtractor{clip: []byte("clip"), ok: true}

	m := New(embedder, store, extractor, 0.75)
	m.Match(context.Background(), make([]byte, 16000*2*10), segs)

	if segs[0].HasVoiceMatch {
		t.Fatalf("similarity below threshold should not attach a match")
	}
}

func TestMatchIsNonFatalWhenExtractorFails(t *testing.T) {
	// No ffmpeg on PATH, or the cut otherwise failed: ok=false. Matching
	// must be skipped for that speaker rather than embedding garbage.
	segs := []model.TranscriptSegment{{SpeakerID: 0, StartS: 0, EndS: 5}}
	embedder := &fakeEmbedder{embedding: make([]float32, model.VoiceprintDim)}
	store := &fakeStore{count: 1, employeeID: "EMP001", name: "张三", similarity: 0.9, found: true}
	extractor := &fakeExtractor{ok: false}

	m := New(embedder, store, extractor, 0.75)
	m.Match(context.Background(), make([]byte, 16000*2*10), segs)

	if segs[0].HasVoiceMatch {
		t.Fatalf("a failed clip extraction must not produce a match")
	}
}

func TestLongestSegmentPerSpeakerPicksLongest(t *testing.T) {
	segs := []model.TranscriptSegment{
		{SpeakerID: 0, StartS: 0, EndS: 1},
		{SpeakerID: 0, StartS: 10, EndS: 20},
	}
	best := longestSegmentPerSpeaker(segs)
	if best[0].StartS != 10 {
		t.Fatalf("expected the 10s segment to win, got start %v", best[0].StartS)
	}
}

func TestClipWindowTrimsCentrallyWhenTooLong(t *testing.T) {
	start, end := clipWindow(0, 30)
	if got := end - start; got != maxClipSeconds {
		t.Fatalf("window length = %v, want %v", got, maxClipSeconds)
	}
	// centered within [0, 30]: (15 - 5, 15 + 5) = (10, 20)
	if start != 10 || end != 20 {
		t.Fatalf("clipWindow(0, 30) = (%v, %v), want (10, 20)", start, end)
	}
}

func TestClipWindowLeavesShortSegmentUnchanged(t *testing.T) {
	start, end := clipWindow(2, 5)
	if start != 2 || end != 5 {
		t.Fatalf("clipWindow(2, 5) = (%v, %v), want unchanged", start, end)
	}
}
