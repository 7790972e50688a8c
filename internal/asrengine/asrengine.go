// Package asrengine drives a configured ASRProvider with the rendered
// hotword blob and enforces the per-file duration cap common to every
// provider (spec.md §4.6).
package asrengine

import (
	"context"

	"meetingpipeline/internal/apperrors"
	"meetingpipeline/internal/model"
	"meetingpipeline/internal/provider"
)

// MaxDurationS is the default per-file duration cap (spec.md §4.6,
// §9 — applied uniformly to every provider, a deliberate redesign from
// the Python original's per-provider caps).
const MaxDurationS = 18000.0

// Engine wraps an ASRProvider with input validation and hotword biasing.
type Engine struct {
	maxDurationS float64
}

func New(maxDurationS float64) *Engine {
	if maxDurationS <= 0 {
		maxDurationS = MaxDurationS
	}
	return &Engine{maxDurationS: maxDurationS}
}

// Input bundles the audio source and recognition options the engine
// forwards to the provider, plus the measured duration the caller
// determined while preprocessing (so asrengine itself never decodes
// audio headers).
type Input struct {
	Audio        []byte
	URL          string
	DurationS    float64
	EnablePunctuation bool
	EnableDiarization bool
	HotwordBlob  string
	LanguageHint string
}

// Recognize validates the duration cap, enforces the provider's URL-only
// capability flag, and dispatches to Recognize/RecognizeURL accordingly.
func (e *Engine) Recognize(ctx context.Context, p provider.ASRProvider, in Input) (string, []model.TranscriptSegment, error) {
	if in.DurationS > e.maxDurationS {
		return "", nil, apperrors.Newf(apperrors.DurationExceeded, "audio duration %.1fs exceeds cap %.1fs", in.DurationS, e.maxDurationS)
	}

	opts := provider.ASROptions{
		EnablePunctuation: in.EnablePunctuation,
		EnableDiarization: in.EnableDiarization,
		HotwordBlob:       in.HotwordBlob,
		LanguageHint:      in.LanguageHint,
	}

	if p.RequiresURL() {
		if in.URL == "" {
			return "", nil, apperrors.New(apperrors.UnsupportedFormat, "selected asr provider requires a publicly reachable url")
		}
		return p.RecognizeURL(ctx, in.URL, opts)
	}

	if len(in.Audio) > 0 {
		return p.Recognize(ctx, in.Audio, opts)
	}
	if in.URL != "" {
		return p.RecognizeURL(ctx, in.URL, opts)
	}
	return "", nil, apperrors.New(apperrors.BadInput, "no audio bytes or url provided")
}
