// Package provider defines the narrow capability interfaces the core
// depends on (spec.md §4.1) and a config-keyed factory that constructs
// process-singleton instances of each.
package provider

import (
	"context"

	"meetingpipeline/internal/model"
)

// ASROptions configures one recognize call.
type ASROptions struct {
	EnablePunctuation  bool
	EnableDiarization  bool
	HotwordBlob        string
	LanguageHint       string
}

// ASRProvider drives a speech-recognition backend.
type ASRProvider interface {
	Recognize(ctx context.Context, audio []byte, opts ASROptions) (fullText string, segments []model.TranscriptSegment, err error)
	// RecognizeURL is used by providers whose capability flag requires a
	// remote URL rather than raw bytes.
	RecognizeURL(ctx context.Context, url string, opts ASROptions) (fullText string, segments []model.TranscriptSegment, err error)
	// RequiresURL reports whether this provider only accepts URLs.
	RequiresURL() bool
	Ready(ctx context.Context) error
	Name() string
}

// LLMOptions configures one completion call.
type LLMOptions struct {
	Temperature float32
	MaxTokens   int
	ModelName   string
}

// LLMProvider drives a large-language-model backend.
type LLMProvider interface {
	Complete(ctx context.Context, system, user string, opts LLMOptions) (text string, usageTokens int, err error)
	Ready(ctx context.Context) error
	Name() string
}

// EmbeddingProvider turns text into fixed-dimension vectors.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Ready(ctx context.Context) error
}

// VoiceEmbeddingProvider turns a short audio clip into a fixed-dimension
// voiceprint embedding, distinct from EmbeddingProvider (text -> vector)
// since the two operate on different modalities and backends.
type VoiceEmbeddingProvider interface {
	EmbedVoice(ctx context.Context, audio []byte) ([]float32, error)
	Dimension() int
	Ready(ctx context.Context) error
}

// VectorQueryResult is one hit from VectorStore.Query.
type VectorQueryResult struct {
	ID       string
	Score    float64 // similarity, already converted from distance
	Metadata map[string]any
	Document string
}

// VectorStore is the archive/voiceprint persistence contract.
type VectorStore interface {
	EnsureCollection(ctx context.Context, name string, dim int) error
	Upsert(ctx context.Context, name string, records []model.VectorRecord) error
	Delete(ctx context.Context, name string, ids []string) error
	Query(ctx context.Context, name string, vec []float32, k int, filter map[string]any) ([]VectorQueryResult, error)
	Ready(ctx context.Context) error
}

// VoiceprintStore is a thin facade over VectorStore bound to the
// 192-dim voiceprint collection (spec.md §4.1).
type VoiceprintStore interface {
	Register(ctx context.Context, rec model.VoiceprintRecord) error
	MatchTop1(ctx context.Context, embedding []float32) (employeeID, name string, similarity float64, found bool, err error)
	Count(ctx context.Context) (int, error)
	Ready(ctx context.Context) error
}

// Similarity converts an L2 distance into the core's similarity score
// (spec.md §4.1, §8): s = 1/(1+d), monotonically decreasing in d.
func Similarity(l2Distance float64) float64 {
	return 1 / (1 + l2Distance)
}
