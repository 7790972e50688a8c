// Package model holds the data types shared across the meeting-ingestion
// pipeline: transcripts, hotword tables, templates, and the records
// persisted to the vector and voiceprint stores.
package model

import "time"

// SourceKind tags which variant of AudioSource is populated.
type SourceKind int

const (
	SourceUploaded SourceKind = iota
	SourceLocalPath
	SourceRemoteURL
	SourceStoredID
)

// AudioSource is a tagged union of the four ways an audio item can reach
// the pipeline. Exactly one of Bytes/Path/URL/StoredID is meaningful,
// selected by Kind.
type AudioSource struct {
	Kind     SourceKind
	Bytes    []byte
	Filename string
	Path     string
	URL      string
	StoredID string
}

func NewUploadedSource(filename string, data []byte) AudioSource {
	return AudioSource{Kind: SourceUploaded, Filename: filename, Bytes: data}
}

func NewLocalPathSource(path string) AudioSource {
	return AudioSource{Kind: SourceLocalPath, Path: path}
}

func NewRemoteURLSource(url string) AudioSource {
	return AudioSource{Kind: SourceRemoteURL, URL: url}
}

func NewStoredIDSource(id string) AudioSource {
	return AudioSource{Kind: SourceStoredID, StoredID: id}
}

// TranscriptSegment is one speaker turn of recognized text.
type TranscriptSegment struct {
	Text            string
	StartS          float64
	EndS            float64
	SpeakerID       int
	SpeakerName     string
	EmployeeID      string
	VoiceSimilarity float64
	HasVoiceMatch   bool
}

// Transcript is an ordered sequence of segments plus the flattened text.
type Transcript struct {
	Segments []TranscriptSegment
	FullText string
}

// HotwordTable is the merged view of a hotword configuration document:
// category -> ordered words, plus alias -> canonical mappings per category.
type HotwordTable struct {
	Categories map[string][]string
	Mappings   map[string]map[string]string
}

// TemplateKind tags which variant of TemplateSpec resolution succeeded.
type TemplateKind int

const (
	TemplatePreset TemplateKind = iota
	TemplateFile
	TemplateInlineJSON
	TemplateRaw
)

// TemplateSpec is the resolved system prompt produced by the template
// resolver, tagged with the variant it was resolved from. It carries no
// user portion; the user prompt (transcript/history/requirement text) is
// built separately by the resolver's BuildUserPrompt.
type TemplateSpec struct {
	Kind   TemplateKind
	System string
}

// HistoryMode selects how the history/RAG service builds context.
type HistoryMode string

const (
	HistoryAuto      HistoryMode = "auto"
	HistoryRetrieval HistoryMode = "retrieval"
	HistorySummary   HistoryMode = "summary"
)

// HistoryRequest names prior meetings to draw context from.
type HistoryRequest struct {
	IDs  []int
	Mode HistoryMode
}

// MinuteRecord is an approved meeting minute submitted for archival.
type MinuteRecord struct {
	Markdown      string
	SourceID      int
	UserID        string
	MeetingDate   *time.Time
	Department    string
}

// VectorRecord is one embedded chunk stored in (or returned from) a
// VectorStore collection.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Document  string
	Metadata  map[string]any
}

// VoiceprintRecord is one employee's registered voice embedding.
type VoiceprintRecord struct {
	EmployeeID string
	Name       string
	Embedding  []float32
	Metadata   map[string]any
}

// VoiceprintDim is the fixed voiceprint embedding dimension (spec.md §3).
const VoiceprintDim = 192
