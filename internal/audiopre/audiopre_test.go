package audiopre

import (
	"bytes"
	"context"
	"testing"
)

func TestProcessPassesThroughWhenFfmpegUnavailable(t *testing.T) {
	p := &Preprocessor{tmpDir: t.TempDir(), available: false}
	in := []byte("fake audio bytes")

	out, processed := p.Process(context.Background(), in)
	if processed {
		t.Fatalf("expected passthrough when ffmpeg unavailable")
	}
	if !bytes.Equal(out, in) {
		t.Fatalf("passthrough should return the input unchanged")
	}
}

func TestReadyReflectsProbe(t *testing.T) {
	p := &Preprocessor{available: true}
	if !p.Ready(context.Background()) {
		t.Fatalf("Ready() should reflect the probed availability flag")
	}
}

func TestDurationReportsNotOkWhenFfprobeUnavailable(t *testing.T) {
	p := &Preprocessor{tmpDir: t.TempDir(), probeAvailable: false}
	_, ok := p.Duration(context.Background(), []byte("fake audio bytes"))
	if ok {
		t.Fatalf("expected ok=false when ffprobe is unavailable")
	}
}
