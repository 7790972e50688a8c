// Package template resolves the user-supplied template field into a
// system prompt, builds the user prompt, and enforces the token budget
// (spec.md §4.8), grounded on app/services/prompt_template.py's
// get_template_config resolution order (custom JSON first, then a named
// preset) generalized to four variants including a raw-string fallback.
package template

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"meetingpipeline/internal/apperrors"
	"meetingpipeline/internal/model"
)

// Preset is a named default template, grounded on
// app/prompts/templates.py's get_default_template id->config map.
type Preset struct {
	ID     string
	System string
}

// Resolver holds the known presets and a token counter.
type Resolver struct {
	presets map[string]Preset
	encoder *tiktoken.Tiktoken
	maxTokens int
}

func New(maxTokens int) (*Resolver, error) {
	if maxTokens <= 0 {
		maxTokens = 8000
	}
	enc, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "load tiktoken encoding")
	}
	return &Resolver{presets: defaultPresets(), encoder: enc, maxTokens: maxTokens}, nil
}

func defaultPresets() map[string]Preset {
	return map[string]Preset{
		"default": {
			ID: "default",
			System: "请基于会议转录生成结构化会议纪要，包含会议主题、讨论内容、决策事项、行动项四个部分。",
		},
		"brief": {
			ID:     "brief",
			System: "请用不超过200字简要总结本次会议的核心议题和结论。",
		},
		"action_items": {
			ID:     "action_items",
			System: "请只提取本次会议中的行动项，格式为：负责人 - 任务 - 截止时间（如有）。",
		},
	}
}

type customTemplateDoc struct {
	Prompt string `json:"prompt"`
}

// Resolve implements spec.md §4.8's four-way resolution order: known
// preset id, then filesystem path, then inline JSON with a "prompt" key,
// then raw string as the system prompt itself.
func (r *Resolver) Resolve(templateField string) model.TemplateSpec {
	if preset, ok := r.presets[templateField]; ok {
		return model.TemplateSpec{Kind: model.TemplatePreset, System: preset.System}
	}

	if info, err := os.Stat(templateField); err == nil && !info.IsDir() {
		if text, err := r.loadTemplateFile(templateField); err == nil {
			return model.TemplateSpec{Kind: model.TemplateFile, System: text}
		}
	}

	var doc customTemplateDoc
	if err := json.Unmarshal([]byte(templateField), &doc); err == nil && doc.Prompt != "" {
		return model.TemplateSpec{Kind: model.TemplateInlineJSON, System: doc.Prompt}
	}

	return model.TemplateSpec{Kind: model.TemplateRaw, System: templateField}
}

func (r *Resolver) loadTemplateFile(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".json":
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		if filepath.Ext(path) == ".json" {
			var doc customTemplateDoc
			if err := json.Unmarshal(raw, &doc); err == nil && doc.Prompt != "" {
				return doc.Prompt, nil
			}
		}
		return string(raw), nil
	default:
		return "", apperrors.Newf(apperrors.UnsupportedFormat, "unsupported template file extension %q", filepath.Ext(path))
	}
}

// CountTokens counts tokens the way wh1plash-rag/app/agent/agent.go's
// CountTokensLlama does: tiktoken's gpt-3.5-turbo encoding as a reasonable
// stand-in when the target model has no published tokenizer.
func (r *Resolver) CountTokens(text string) int {
	return len(r.encoder.Encode(text, nil, nil))
}

// BuildUserPrompt concatenates transcript, history context, and the
// user-requirement section in that order (spec.md §4.8), then truncates
// from the end if the result would exceed the configured token budget,
// preserving the earliest (highest-priority) content.
func (r *Resolver) BuildUserPrompt(transcript, historySection, requirementSection string) string {
	var sb strings.Builder
	sb.WriteString(transcript)
	if historySection != "" {
		sb.WriteString("\n\n")
		sb.WriteString(historySection)
	}
	if requirementSection != "" {
		sb.WriteString("\n\n")
		sb.WriteString(requirementSection)
	}
	return r.truncateToBudget(sb.String())
}

func (r *Resolver) truncateToBudget(text string) string {
	tokens := r.encoder.Encode(text, nil, nil)
	if len(tokens) <= r.maxTokens {
		return text
	}
	truncated := tokens[:r.maxTokens]
	return r.encoder.Decode(truncated)
}
