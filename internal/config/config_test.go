package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.ASRModel != "auto" || cfg.LLMModel != "auto" {
		t.Errorf("ASRModel/LLMModel = %q/%q, want auto/auto", cfg.ASRModel, cfg.LLMModel)
	}
	if cfg.MaxAudioDurationS != 18000 {
		t.Errorf("MaxAudioDurationS = %v, want 18000", cfg.MaxAudioDurationS)
	}
	if cfg.VoiceMatchThreshold != 0.75 {
		t.Errorf("VoiceMatchThreshold = %v, want 0.75", cfg.VoiceMatchThreshold)
	}
	if cfg.WorkerPoolMax != 4 {
		t.Errorf("WorkerPoolMax = %d, want 4", cfg.WorkerPoolMax)
	}
}

func TestLoadHonorsEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("MAX_PROMPT_TOKENS", "4000")
	t.Setenv("MATCH_THRESHOLD", "0.9")
	t.Setenv("ASR_DEADLINE", "45m")

	cfg := Load()

	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
	}
	if cfg.MaxPromptTokens != 4000 {
		t.Errorf("MaxPromptTokens = %d, want 4000", cfg.MaxPromptTokens)
	}
	if cfg.VoiceMatchThreshold != 0.9 {
		t.Errorf("VoiceMatchThreshold = %v, want 0.9", cfg.VoiceMatchThreshold)
	}
	if cfg.ASRDeadline != 45*time.Minute {
		t.Errorf("ASRDeadline = %v, want 45m", cfg.ASRDeadline)
	}
}

func TestLoadFallsBackOnMalformedEnvValue(t *testing.T) {
	t.Setenv("CHUNK_TARGET_MIN", "not-a-number")

	cfg := Load()

	if cfg.ChunkTargetMin != 400 {
		t.Errorf("ChunkTargetMin = %d, want fallback 400", cfg.ChunkTargetMin)
	}
}
