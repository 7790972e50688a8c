// Package diarize assigns dense speaker ids to ASR segments, either by
// normalizing raw labels the ASR provider already produced, or by
// overlap-matching against an independent diarizer's speaker turns.
package diarize

import (
	"context"

	"meetingpipeline/internal/model"
)

// Turn is one speaker-homogeneous region produced by a diarizer, grounded
// on the RTTM shape parsed in app/services/parallel_processor.py's
// parse_rttm (start, end, speaker label) rather than carrying RTTM text
// itself through the pipeline.
type Turn struct {
	StartS  float64
	EndS    float64
	Speaker string
}

// Diarizer partitions audio into speaker turns, grounded on
// zudsniper-meet-recording-processor/internal/diarize.Diarizer, generalized
// from "mutate a transcript in place" to "return turns" so the core can
// overlap-match them against ASR segments independently.
type Diarizer interface {
	Diarize(ctx context.Context, audio []byte) ([]Turn, error)
	Ready(ctx context.Context) error
	Name() string
}

// SilenceDiarizer is a placeholder heuristic: alternates speakers whenever
// the gap between two segments exceeds a threshold. Grounded on
// zudsniper.../internal/diarize/silence.go's Silence, adapted to emit Turn
// values from segment boundaries rather than mutating a transcript, since
// this package's diarizer operates on time ranges before segments exist.
type SilenceDiarizer struct {
	GapThresholdS float64
}

func NewSilenceDiarizer() *SilenceDiarizer {
	return &SilenceDiarizer{GapThresholdS: 1.5}
}

func (d *SilenceDiarizer) Name() string                      { return "silence" }
func (d *SilenceDiarizer) Ready(ctx context.Context) error    { return nil }

// Diarize has no signal from raw audio bytes alone; it's meant to be
// driven from AssignBySegments below using the ASR provider's own segment
// boundaries as a stand-in for voice-activity detection when no external
// diarizer is configured.
func (d *SilenceDiarizer) Diarize(ctx context.Context, audio []byte) ([]Turn, error) {
	return nil, nil
}

// AssignBySegments alternates speaker turns directly over ASR segment
// boundaries when no turns are available, used as the silence diarizer's
// actual fallback path (spec.md §4.4's "voice-activity segmentation"
// reduced, in the silence heuristic, to "the ASR provider's own segment
// boundaries").
func (d *SilenceDiarizer) AssignBySegments(segs []model.TranscriptSegment) []Turn {
	if len(segs) == 0 {
		return nil
	}
	turns := make([]Turn, 0, len(segs))
	speaker := 0
	for i, s := range segs {
		if i > 0 {
			gap := s.StartS - segs[i-1].EndS
			if gap > d.GapThresholdS {
				speaker++
			}
		}
		turns = append(turns, Turn{StartS: s.StartS, EndS: s.EndS, Speaker: speakerLabel(speaker)})
	}
	return turns
}

func speakerLabel(i int) string {
	return "SPEAKER_" + itoa(i)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	return string(buf[pos:])
}

// AssignSpeakers maps each raw speaker label already present on segs
// (non-empty SpeakerID space from the ASR provider) to a dense 0-based id
// in order of first appearance (spec.md §4.4). Segments mutate in place.
func AssignSpeakers(segs []model.TranscriptSegment) {
	next := 0
	seen := make(map[int]int)
	for i := range segs {
		raw := segs[i].SpeakerID
		if raw < 0 {
			continue
		}
		dense, ok := seen[raw]
		if !ok {
			dense = next
			seen[raw] = dense
			next++
		}
		segs[i].SpeakerID = dense
	}
}

// AssignByOverlap assigns each segment the turn with maximum time-overlap,
// breaking ties by earlier turn start, falling back to nearest-midpoint
// when no turn overlaps at all (spec.md §4.4's overlap rule), then
// densifies the resulting raw turn indices into 0-based ids in order of
// first appearance.
func AssignByOverlap(segs []model.TranscriptSegment, turns []Turn) {
	if len(turns) == 0 {
		return
	}
	rawIDs := make([]int, len(segs))
	for i, seg := range segs {
		rawIDs[i] = bestTurn(seg.StartS, seg.EndS, turns)
	}

	next := 0
	seen := make(map[int]int)
	for i, raw := range rawIDs {
		dense, ok := seen[raw]
		if !ok {
			dense = next
			seen[raw] = dense
			next++
		}
		segs[i].SpeakerID = dense
	}
}

func bestTurn(a, b float64, turns []Turn) int {
	bestIdx := -1
	bestOverlap := 0.0
	for idx, t := range turns {
		overlap := overlapDuration(a, b, t.StartS, t.EndS)
		if overlap <= 0 {
			continue
		}
		switch {
		case bestIdx == -1, overlap > bestOverlap:
			bestOverlap, bestIdx = overlap, idx
		case overlap == bestOverlap && t.StartS < turns[bestIdx].StartS:
			bestIdx = idx
		}
	}
	if bestIdx != -1 {
		return bestIdx
	}

	// No overlap anywhere: fall back to nearest turn by midpoint distance.
	segMid := (a + b) / 2
	nearest := 0
	nearestDist := -1.0
	for idx, t := range turns {
		turnMid := (t.StartS + t.EndS) / 2
		dist := abs(segMid - turnMid)
		if nearestDist < 0 || dist < nearestDist {
			nearestDist = dist
			nearest = idx
		}
	}
	return nearest
}

func overlapDuration(a, b, tStart, tEnd float64) float64 {
	lo := max(a, tStart)
	hi := min(b, tEnd)
	if hi < lo {
		return 0
	}
	return hi - lo
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func abs(a float64) float64 {
	if a < 0 {
		return -a
	}
	return a
}
