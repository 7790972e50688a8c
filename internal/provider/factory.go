package provider

import (
	"fmt"

	"meetingpipeline/internal/config"
)

// Providers bundles the process-singleton instances the pipeline depends
// on. Constructed once at startup and passed by reference (spec.md §9 —
// no reflective lookup, no process-global mutable container).
type Providers struct {
	ASR         map[string]ASRProvider
	LLM         map[string]LLMProvider
	Embedding   EmbeddingProvider
	VoiceEmbed  VoiceEmbeddingProvider
	Vector      VectorStore
	Voiceprint  VoiceprintStore

	asrDefault string
	llmDefault string
}

// ResolveASR picks the ASR provider for the given model selector,
// following "auto" -> configured default.
func (p *Providers) ResolveASR(selector string) (ASRProvider, error) {
	if selector == "" || selector == "auto" {
		selector = p.asrDefault
	}
	prov, ok := p.ASR[selector]
	if !ok {
		return nil, fmt.Errorf("unknown asr model %q", selector)
	}
	return prov, nil
}

// ResolveLLM picks the LLM provider for the given model selector.
func (p *Providers) ResolveLLM(selector string) (LLMProvider, error) {
	if selector == "" || selector == "auto" {
		selector = p.llmDefault
	}
	prov, ok := p.LLM[selector]
	if !ok {
		return nil, fmt.Errorf("unknown llm model %q", selector)
	}
	return prov, nil
}

// BuildProviders is the tagged-variant registry: each branch constructs a
// concrete capability implementation explicitly, keyed by config — never
// via reflection (spec.md §9).
func BuildProviders(cfg *config.Config, vector VectorStore, voiceprint VoiceprintStore, embedding EmbeddingProvider) *Providers {
	p := &Providers{
		ASR:        map[string]ASRProvider{},
		LLM:        map[string]LLMProvider{},
		Vector:     vector,
		Voiceprint: voiceprint,
		Embedding:  embedding,
		VoiceEmbed: NewFunASRVoiceEmbeddingProvider(cfg.FunASRURL),
		asrDefault: "funasr",
		llmDefault: "deepseek",
	}

	p.ASR["funasr"] = NewFunASRProvider(cfg.FunASRURL)
	p.ASR["tencent"] = NewTencentASRProvider(cfg.TencentURL)

	p.LLM["deepseek"] = NewDeepSeekProvider(cfg.DeepSeekURL, cfg.DeepSeekKey)
	p.LLM["qwen3"] = NewQwen3Provider(cfg.Qwen3URL, cfg.Qwen3Key)

	return p
}
