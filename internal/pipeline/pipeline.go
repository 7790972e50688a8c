// Package pipeline implements the per-request state machine that turns
// a polymorphic input into a structured meeting minute (spec.md §4.12),
// grounded on wh1plash-rag/loader/service/service.go's channel/waitgroup
// worker pattern (generalized from a directory-watching file pipeline to
// a bounded per-request audio worker pool) and on
// original_source/app/api/endpoints.py's process_meeting_audio dispatch
// for the input-kind branching.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"meetingpipeline/internal/apperrors"
	"meetingpipeline/internal/archive"
	"meetingpipeline/internal/asrengine"
	"meetingpipeline/internal/audiopre"
	"meetingpipeline/internal/config"
	"meetingpipeline/internal/diarize"
	"meetingpipeline/internal/docparser"
	"meetingpipeline/internal/hotword"
	"meetingpipeline/internal/history"
	"meetingpipeline/internal/llmorchestrator"
	"meetingpipeline/internal/mdrender"
	"meetingpipeline/internal/model"
	"meetingpipeline/internal/provider"
	"meetingpipeline/internal/template"
	"meetingpipeline/internal/voiceprint"
)

// Request bundles one /process call's input. Exactly one of
// AudioSources/DocumentFile/TextContent may be populated
// (VALIDATE_INPUT, spec.md §4.12).
type Request struct {
	AudioSources      []model.AudioSource
	DocumentFile      *model.AudioSource
	TextContent       string
	Template          string
	UserRequirement   string
	History           model.HistoryRequest
	ASRModel          string
	LLMModel          string
	LLMTemperature    float32
	LLMMaxTokens      int
	EnableDiarization bool
}

// FileError reports one audio item's failure within a partially
// successful multi-file batch.
type FileError struct {
	Index int
	Error string
}

// Response mirrors the /process JSON contract (spec.md §6).
type Response struct {
	Status      string
	Message     string
	RawText     string
	Transcript  []model.TranscriptSegment
	NeedRAG     bool
	HTMLContent string
	UsageTokens int
	FileErrors  []FileError
}

// Controller owns every component the pipeline orchestrates. One
// instance is built at startup and shared across requests; it holds no
// per-request mutable state of its own.
type Controller struct {
	providers    *provider.Providers
	hotwords     *hotword.Registry
	preprocessor *audiopre.Preprocessor
	asr          *asrengine.Engine
	voiceMatcher *voiceprint.Matcher
	templates    *template.Resolver
	history      *history.Service
	archive      *archive.Service
	cfg          *config.Config
}

func New(cfg *config.Config, providers *provider.Providers, hotwords *hotword.Registry, preprocessor *audiopre.Preprocessor, asr *asrengine.Engine, voiceMatcher *voiceprint.Matcher, templates *template.Resolver, hist *history.Service, arch *archive.Service) *Controller {
	return &Controller{
		providers:    providers,
		hotwords:     hotwords,
		preprocessor: preprocessor,
		asr:          asr,
		voiceMatcher: voiceMatcher,
		templates:    templates,
		history:      hist,
		archive:      arch,
		cfg:          cfg,
	}
}

// Run drives the full state machine. The temp directory step
// (ROLLBACK_TEMP) always executes on exit, success or failure.
func (c *Controller) Run(ctx context.Context, req Request) (*Response, error) {
	deadline := c.cfg.ASRDeadline + c.cfg.LLMDeadline
	if deadline <= 0 {
		deadline = 2*time.Hour + 3*time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	tempDir, err := os.MkdirTemp(c.cfg.TempDir, "pipeline-req-*")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "create request temp directory")
	}
	defer os.RemoveAll(tempDir) // ROLLBACK_TEMP, every exit path

	if err := validateInput(req); err != nil {
		return nil, err
	}

	var rawText string
	var segments []model.TranscriptSegment
	var fileErrors []FileError

	switch {
	case len(req.AudioSources) > 0:
		rawText, segments, fileErrors, err = c.runAudioPath(ctx, req)
	case req.DocumentFile != nil:
		rawText, err = c.runDocPath(*req.DocumentFile)
	default:
		rawText = req.TextContent
	}
	if err != nil {
		return nil, err
	}
	if rawText == "" && len(fileErrors) > 0 {
		return &Response{Status: "error", Message: "all audio files failed to process", FileErrors: fileErrors}, nil
	}

	templateSpec := c.templates.Resolve(req.Template)

	historyCtx, histErr := c.history.Build(ctx, req.History, rawText, req.UserRequirement)
	if histErr != nil {
		historyCtx = "" // C9 is best-effort (spec.md §7): log and continue
		slog.Warn("history context build failed; continuing without it", "error", histErr.Error())
	}

	userRequirementSection := ""
	if strings.TrimSpace(req.UserRequirement) != "" {
		userRequirementSection = fmt.Sprintf("User requirement (highest priority): %s", req.UserRequirement)
	}
	userPrompt := c.templates.BuildUserPrompt(rawText, historyCtx, userRequirementSection)

	llmProvider, err := c.providers.ResolveLLM(req.LLMModel)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.BadInput, "resolve llm provider")
	}
	orchestrator := llmorchestrator.New(llmProvider)

	temperature := req.LLMTemperature
	if temperature == 0 {
		temperature = 0.7
	}
	maxTokens := req.LLMMaxTokens
	if maxTokens == 0 {
		maxTokens = 2000
	}

	markdown, usage, err := orchestrator.Complete(ctx, templateSpec.System, userPrompt, provider.LLMOptions{
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindOf(err), "llm completion failed")
	}

	resp := &Response{
		Status:      "success",
		RawText:     rawText,
		Transcript:  segments,
		NeedRAG:     historyCtx != "",
		HTMLContent: mdrender.ToHTML(markdown),
		UsageTokens: usage,
		FileErrors:  fileErrors,
	}
	if len(fileErrors) > 0 {
		resp.Message = fmt.Sprintf("%d of %d audio files failed", len(fileErrors), len(req.AudioSources))
	}
	return resp, nil
}

func validateInput(req Request) error {
	kinds := 0
	if len(req.AudioSources) > 0 {
		kinds++
	}
	if req.DocumentFile != nil {
		kinds++
	}
	if strings.TrimSpace(req.TextContent) != "" {
		kinds++
	}
	if kinds == 0 {
		return apperrors.New(apperrors.BadInput, "no input supplied: one of files, document, or text_content is required")
	}
	if kinds > 1 {
		return apperrors.New(apperrors.BadInput, "exactly one input kind may be supplied per request")
	}
	return nil
}

func (c *Controller) runDocPath(source model.AudioSource) (string, error) {
	text, err := docparser.Parse(source.Filename, source.Bytes)
	if err != nil {
		return "", err
	}
	return text, nil
}

type audioJobResult struct {
	index     int
	rawText   string
	segments  []model.TranscriptSegment
	durationS float64
	err       error
}

// runAudioPath fans audio sources out across a bounded worker pool
// (min(N_audio, GOMAXPROCS, 4), spec.md §5), then merges results in
// submission order with cumulative timestamp shifting.
func (c *Controller) runAudioPath(ctx context.Context, req Request) (string, []model.TranscriptSegment, []FileError, error) {
	n := len(req.AudioSources)
	workers := n
	if gm := runtime.GOMAXPROCS(0); workers > gm {
		workers = gm
	}
	if workers > 4 {
		workers = 4
	}
	if workers < 1 {
		workers = 1
	}

	asrProvider, err := c.providers.ResolveASR(req.ASRModel)
	if err != nil {
		return "", nil, nil, apperrors.Wrap(err, apperrors.BadInput, "resolve asr provider")
	}

	jobs := make(chan int, n)
	results := make(chan audioJobResult, n)
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results <- c.processOneAudio(ctx, asrProvider, req.AudioSources[idx], req.EnableDiarization, idx)
			}
		}()
	}
	wg.Wait()
	close(results)

	ordered := make([]audioJobResult, n)
	for r := range results {
		ordered[r.index] = r
	}

	var fileErrors []FileError
	var mergedText []string
	var mergedSegs []model.TranscriptSegment
	cumulativeOffset := 0.0

	for _, r := range ordered {
		if r.err != nil {
			fileErrors = append(fileErrors, FileError{Index: r.index, Error: r.err.Error()})
			continue
		}
		for _, seg := range r.segments {
			seg.StartS += cumulativeOffset
			seg.EndS += cumulativeOffset
			mergedSegs = append(mergedSegs, seg)
		}
		if r.rawText != "" {
			mergedText = append(mergedText, r.rawText)
		}
		cumulativeOffset += r.durationS
	}

	if len(fileErrors) == n {
		return "", nil, fileErrors, nil
	}

	diarize.AssignSpeakers(mergedSegs)
	return strings.Join(mergedText, " "), mergedSegs, fileErrors, nil
}

// processOneAudio runs PREPROCESS → ASR → (DIARIZE → VOICE_MATCH) for a
// single source. C3 and C5 failures are absorbed here (best-effort,
// spec.md §7); only C6's error propagates to the caller.
func (c *Controller) processOneAudio(ctx context.Context, asrProvider provider.ASRProvider, source model.AudioSource, enableDiarization bool, index int) audioJobResult {
	audioBytes := source.Bytes
	url := source.URL

	var durationS float64
	if len(audioBytes) > 0 {
		processed, ok := c.preprocessor.Process(ctx, audioBytes)
		if ok {
			audioBytes = processed
		}
		if d, ok := c.preprocessor.Duration(ctx, audioBytes); ok {
			durationS = d
		}
	}

	hotwordBlob := c.hotwords.Render()
	fullText, segments, err := c.asr.Recognize(ctx, asrProvider, asrengine.Input{
		Audio:             audioBytes,
		URL:               url,
		DurationS:         durationS,
		EnablePunctuation: true,
		EnableDiarization: enableDiarization,
		HotwordBlob:       hotwordBlob,
	})
	if err != nil {
		return audioJobResult{index: index, err: err}
	}

	if enableDiarization {
		hasLabels := false
		for _, s := range segments {
			if s.SpeakerID >= 0 {
				hasLabels = true
				break
			}
		}
		if !hasLabels {
			diarizer := diarize.NewSilenceDiarizer()
			turns := diarizer.AssignBySegments(segments)
			diarize.AssignByOverlap(segments, turns)
		} else {
			diarize.AssignSpeakers(segments)
		}

		if c.voiceMatcher != nil {
			c.voiceMatcher.Match(ctx, audioBytes, segments)
		}
	}

	if durationS == 0 && len(segments) > 0 {
		durationS = segments[len(segments)-1].EndS
	}

	return audioJobResult{index: index, rawText: fullText, segments: segments, durationS: durationS}
}
