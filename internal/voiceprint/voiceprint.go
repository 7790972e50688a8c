// Package voiceprint extracts per-speaker voice embeddings from ASR
// segments and matches them against a registered employee voiceprint
// store, attaching name/employee_id/similarity to every segment sharing
// that speaker id (spec.md §4.5).
package voiceprint

import (
	"context"
	"sort"

	"meetingpipeline/internal/model"
	"meetingpipeline/internal/provider"
)

// maxClipSeconds bounds the contiguous speech window sent to the
// embedding provider; longer segments are trimmed centrally so the
// highest-energy middle portion is kept rather than a boundary slice.
const maxClipSeconds = 10.0

// ClipExtractor cuts a speaker's time window out of the full request audio
// into a standalone, playable clip. Implemented by *audiopre.Preprocessor,
// which shells out to ffmpeg the same way it does for Process — kept as a
// narrow interface here so Matcher doesn't need to know audiopre's full
// surface, and so tests can fake it without invoking ffmpeg.
type ClipExtractor interface {
	ExtractClip(ctx context.Context, audio []byte, startS, endS float64) ([]byte, bool)
}

// Matcher drives voice-embedding extraction and top-1 voiceprint lookup.
// Grounded on funasr_standalone/voice_matcher.py's match_speakers, with
// the per-speaker longest-segment selection made explicit rather than
// relying on the caller to have already isolated each speaker's clip.
type Matcher struct {
	embedder  provider.VoiceEmbeddingProvider
	store     provider.VoiceprintStore
	extractor ClipExtractor
	threshold float64
}

func New(embedder provider.VoiceEmbeddingProvider, store provider.VoiceprintStore, extractor ClipExtractor, threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = 0.75
	}
	return &Matcher{embedder: embedder, store: store, extractor: extractor, threshold: threshold}
}

// Match extracts one clip per distinct speaker_id present in segs (the
// longest contiguous segment with that id, cut out of audio by time
// window), embeds it, and attaches match results in place. Failures for
// any single speaker are swallowed — the segment keeps its bare numeric
// id, per spec.md §4.5's "non-fatal" contract. This includes the case
// where the extractor itself can't produce a clip (no ffmpeg on PATH):
// voice matching is simply skipped for that speaker rather than treated
// as an error.
func (m *Matcher) Match(ctx context.Context, audio []byte, segs []model.TranscriptSegment) {
	if m.store == nil || m.embedder == nil || m.extractor == nil {
		return
	}
	if count, err := m.store.Count(ctx); err != nil || count == 0 {
		return
	}

	bestBySpeaker := longestSegmentPerSpeaker(segs)
	for speakerID, seg := range bestBySpeaker {
		startS, endS := clipWindow(seg.StartS, seg.EndS)
		clip, ok := m.extractor.ExtractClip(ctx, audio, startS, endS)
		if !ok {
			continue
		}

		vec, err := m.embedder.EmbedVoice(ctx, clip)
		if err != nil {
			continue
		}

		employeeID, name, similarity, found, err := m.store.MatchTop1(ctx, vec)
		if err != nil || !found || similarity < m.threshold {
			continue
		}

		for i := range segs {
			if segs[i].SpeakerID == speakerID {
				segs[i].SpeakerName = name
				segs[i].EmployeeID = employeeID
				segs[i].VoiceSimilarity = similarity
				segs[i].HasVoiceMatch = true
			}
		}
	}
}

// longestSegmentPerSpeaker returns, for each distinct speaker id, the
// single longest segment attributed to it.
func longestSegmentPerSpeaker(segs []model.TranscriptSegment) map[int]model.TranscriptSegment {
	best := make(map[int]model.TranscriptSegment)
	for _, s := range segs {
		dur := s.EndS - s.StartS
		cur, ok := best[s.SpeakerID]
		if !ok || dur > (cur.EndS-cur.StartS) {
			best[s.SpeakerID] = s
		}
	}
	return best
}

// clipWindow narrows [startS, endS) to at most maxClipSeconds, trimming
// centrally so the highest-energy middle portion of a long segment is kept
// rather than a boundary slice, per spec.md §4.5. The actual cut is left to
// a ClipExtractor, which operates on the real audio file rather than
// assumed sample offsets.
func clipWindow(startS, endS float64) (float64, float64) {
	if endS <= startS {
		return startS, startS
	}
	if endS-startS <= maxClipSeconds {
		return startS, endS
	}
	mid := (startS + endS) / 2
	start := mid - maxClipSeconds/2
	if start < startS {
		start = startS
	}
	return start, start + maxClipSeconds
}

// SpeakerIDs returns the distinct speaker ids present in segs, sorted
// ascending, for callers that need deterministic iteration order.
func SpeakerIDs(segs []model.TranscriptSegment) []int {
	seen := make(map[int]bool)
	var ids []int
	for _, s := range segs {
		if !seen[s.SpeakerID] {
			seen[s.SpeakerID] = true
			ids = append(ids, s.SpeakerID)
		}
	}
	sort.Ints(ids)
	return ids
}
