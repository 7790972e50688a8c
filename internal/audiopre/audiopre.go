// Package audiopre normalizes audio to 16kHz mono with band-pass and
// loudness filtering when ffmpeg is available, never failing the request.
package audiopre

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
)

// Preprocessor drives an external ffmpeg binary, grounded on
// zudsniper-meet-recording-processor/internal/media.ExtractAudio's
// exec.CommandContext pattern, generalized from a fixed resample-only
// filter chain to the band-pass + loudnorm chain spec.md §4.3 names, and
// from "always run" to "probe once, then pass through if unavailable".
type Preprocessor struct {
	tmpDir        string
	available     bool
	probeAvailable bool
}

// New probes for ffmpeg (and ffprobe, used by Duration) on PATH once at
// construction (spec.md §5: the probe result doesn't change mid-process).
func New(tmpDir string) *Preprocessor {
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	_, err := exec.LookPath("ffmpeg")
	_, probeErr := exec.LookPath("ffprobe")
	return &Preprocessor{tmpDir: tmpDir, available: err == nil, probeAvailable: probeErr == nil}
}

func (p *Preprocessor) Ready(ctx context.Context) bool { return p.available }

// Process returns a 16kHz mono, band-pass + loudness-normalized WAV when
// ffmpeg is available, or the input unchanged otherwise. It never returns
// an error that should abort the request: any ffmpeg failure is logged and
// falls back to passthrough, per spec.md §4.3's "never fails the request"
// contract. Process removes both temp files it writes on every exit path
// and returns the result as bytes, so the caller has no file to clean up.
func (p *Preprocessor) Process(ctx context.Context, audio []byte) (out []byte, processed bool) {
	if !p.available {
		return audio, false
	}

	inPath := filepath.Join(p.tmpDir, "audiopre_in_"+uuid.NewString()+".bin")
	outPath := filepath.Join(p.tmpDir, "audiopre_out_"+uuid.NewString()+".wav")
	defer os.Remove(inPath)
	defer os.Remove(outPath)

	if err := os.WriteFile(inPath, audio, 0o600); err != nil {
		slog.Warn("audio preprocessing skipped, passing original through", "error", err.Error())
		return audio, false
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y", "-i", inPath,
		"-ac", "1", "-ar", "16000",
		"-af", "highpass=f=200,lowpass=f=3000,loudnorm",
		"-f", "wav",
		outPath,
	)
	if err := cmd.Run(); err != nil {
		slog.Warn("audio preprocessing failed, passing original through", "error", err.Error())
		return audio, false
	}

	result, err := os.ReadFile(outPath)
	if err != nil {
		slog.Warn("audio preprocessing output unreadable, passing original through", "error", err.Error())
		return audio, false
	}
	return result, true
}

// ExtractClip cuts [startS, endS) out of audio via ffmpeg's -ss/-t range
// selection and re-encodes it as a standalone mono 16kHz WAV file, grounded
// on funasr_standalone/voice_matcher.py's _extract_audio_segment. audio may
// be in whatever container Process left it in (a WAV it produced, or the
// original upload's own container if ffmpeg was unavailable) — ffmpeg
// demuxes it the same way either way, so the caller never needs to know
// which. ok is false when ffmpeg is unavailable or the cut fails; callers
// must treat that as "no clip for this window", not an error.
func (p *Preprocessor) ExtractClip(ctx context.Context, audio []byte, startS, endS float64) (clip []byte, ok bool) {
	if !p.available || endS <= startS || len(audio) == 0 {
		return nil, false
	}

	inPath := filepath.Join(p.tmpDir, "audiopre_clip_in_"+uuid.NewString()+".bin")
	outPath := filepath.Join(p.tmpDir, "audiopre_clip_out_"+uuid.NewString()+".wav")
	defer os.Remove(inPath)
	defer os.Remove(outPath)

	if err := os.WriteFile(inPath, audio, 0o600); err != nil {
		return nil, false
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y", "-i", inPath,
		"-ss", strconv.FormatFloat(startS, 'f', 3, 64),
		"-t", strconv.FormatFloat(endS-startS, 'f', 3, 64),
		"-ac", "1", "-ar", "16000",
		"-f", "wav",
		outPath,
	)
	if err := cmd.Run(); err != nil {
		return nil, false
	}

	result, err := os.ReadFile(outPath)
	if err != nil {
		return nil, false
	}
	return result, true
}

type ffprobeFormat struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration reports the audio's length in seconds via ffprobe, when
// available. ok is false when ffprobe is absent or the probe fails; the
// caller's duration cap is then simply not enforced for that file rather
// than rejecting audio the pipeline can't actually measure.
func (p *Preprocessor) Duration(ctx context.Context, audio []byte) (seconds float64, ok bool) {
	if !p.probeAvailable {
		return 0, false
	}

	inPath := filepath.Join(p.tmpDir, "audiopre_probe_"+uuid.NewString()+".bin")
	defer os.Remove(inPath)
	if err := os.WriteFile(inPath, audio, 0o600); err != nil {
		return 0, false
	}

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet", "-print_format", "json", "-show_format", inPath)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return 0, false
	}

	var parsed ffprobeFormat
	if err := json.Unmarshal(out.Bytes(), &parsed); err != nil {
		return 0, false
	}
	d, err := strconv.ParseFloat(parsed.Format.Duration, 64)
	if err != nil {
		return 0, false
	}
	return d, true
}
