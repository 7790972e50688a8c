package httpapi

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// validateStruct runs go-playground/validator over params and turns any
// failure into the teacher's field->reason map shape (types/query.go's
// Validate), used for the scalar fields of every request that also
// carries multipart file data validator can't bind directly.
func validateStruct(params any) map[string]string {
	if err := validate.Struct(params); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return map[string]string{"_": err.Error()}
		}
		out := make(map[string]string, len(verrs))
		for _, e := range verrs {
			out[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return out
	}
	return nil
}

// processParams are /process's scalar (non-file) fields, bound from
// multipart form values and validated as a unit (spec.md §6).
type processParams struct {
	Template          string  `validate:"-"`
	UserRequirement    string  `validate:"-"`
	HistoryMode       string  `validate:"omitempty,oneof=auto retrieval summary"`
	ASRModel          string  `validate:"omitempty,oneof=auto funasr tencent"`
	LLMModel          string  `validate:"omitempty,oneof=auto deepseek qwen3"`
	LLMTemperature    float32 `validate:"gte=0,lte=1"`
	LLMMaxTokens      int     `validate:"gte=0"`
	EnableDiarization bool    `validate:"-"`
}

type processResponse struct {
	Status      string          `json:"status"`
	Message     string          `json:"message,omitempty"`
	RawText     string          `json:"raw_text"`
	Transcript  []segmentView   `json:"transcript"`
	NeedRAG     bool            `json:"need_rag"`
	HTMLContent string          `json:"html_content"`
	UsageTokens int             `json:"usage_tokens"`
	FileErrors  []fileErrorView `json:"file_errors,omitempty"`
}

type segmentView struct {
	Text            string  `json:"text"`
	StartS          float64 `json:"start_s"`
	EndS            float64 `json:"end_s"`
	SpeakerID       int     `json:"speaker_id"`
	SpeakerName     string  `json:"speaker_name,omitempty"`
	EmployeeID      string  `json:"employee_id,omitempty"`
	VoiceSimilarity float64 `json:"voice_similarity,omitempty"`
	HasVoiceMatch   bool    `json:"has_voice_match"`
}

type fileErrorView struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// archiveParams is /archive's JSON body (spec.md §6).
type archiveParams struct {
	MinutesID       int    `json:"minutes_id" validate:"required"`
	MarkdownContent string `json:"markdown_content" validate:"required"`
	UserID          string `json:"user_id"`
	MeetingDate     string `json:"meeting_date"`
	Department      string `json:"department"`
}

type archiveResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	ChunksCount int    `json:"chunks_count"`
}

// voiceRegisterParams is /voice/register's non-file multipart fields.
type voiceRegisterParams struct {
	Name       string `validate:"required"`
	EmployeeID string `validate:"required"`
}

type voiceRegisterResponse struct {
	Code    int                `json:"code"`
	Message string             `json:"message"`
	Data    *voiceRegisterData `json:"data,omitempty"`
}

type voiceRegisterData struct {
	EmployeeID string `json:"employee_id"`
	Name       string `json:"name"`
	VectorDim  int    `json:"vector_dim"`
}

type hotwordsResponse struct {
	Categories map[string][]string `json:"categories"`
	Hotwords   string              `json:"hotwords"`
	Stats      map[string]int      `json:"stats"`
	Total      int                 `json:"total"`
}

type healthResponse struct {
	Status    string            `json:"status"`
	Mode      string            `json:"mode"`
	Providers map[string]string `json:"providers"`
}
