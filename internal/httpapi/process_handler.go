package httpapi

import (
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"meetingpipeline/internal/model"
	"meetingpipeline/internal/pipeline"
)

// ProcessHandler drives POST /process: a polymorphic multipart request
// (spec.md §6) dispatched to the pipeline controller.
type ProcessHandler struct {
	controller *pipeline.Controller
}

func NewProcessHandler(controller *pipeline.Controller) *ProcessHandler {
	return &ProcessHandler{controller: controller}
}

func (h *ProcessHandler) Handle(c *fiber.Ctx) error {
	params := processParams{
		Template:          formValueOr(c, "template", "default"),
		UserRequirement:   c.FormValue("user_requirement"),
		HistoryMode:       c.FormValue("history_mode"),
		ASRModel:          formValueOr(c, "asr_model", "auto"),
		LLMModel:          formValueOr(c, "llm_model", "auto"),
		LLMTemperature:    formValueFloat32(c, "llm_temperature", 0.7),
		LLMMaxTokens:      formValueInt(c, "llm_max_tokens", 2000),
		EnableDiarization: c.FormValue("enable_diarization", "true") != "false",
	}
	if errs := validateStruct(params); len(errs) > 0 {
		return NewValidationError(errs)
	}

	sources, docFile, textContent, err := h.collectInput(c)
	if err != nil {
		return err
	}

	historyIDs := parseIntList(c.FormValue("history_meeting_ids"))

	req := pipeline.Request{
		AudioSources:    sources,
		DocumentFile:    docFile,
		TextContent:     textContent,
		Template:        params.Template,
		UserRequirement: params.UserRequirement,
		History: model.HistoryRequest{
			IDs:  historyIDs,
			Mode: model.HistoryMode(params.HistoryMode),
		},
		ASRModel:          params.ASRModel,
		LLMModel:          params.LLMModel,
		LLMTemperature:    params.LLMTemperature,
		LLMMaxTokens:      params.LLMMaxTokens,
		EnableDiarization: params.EnableDiarization,
	}

	resp, err := h.controller.Run(c.Context(), req)
	if err != nil {
		return err
	}

	return c.JSON(toProcessResponse(resp))
}

// collectInput gathers every supplied input kind (files, file_paths,
// audio_urls, audio_id, document_file, text_content) from the multipart
// request. It does not check that exactly one kind was supplied; the
// controller's VALIDATE_INPUT pass owns that check.
func (h *ProcessHandler) collectInput(c *fiber.Ctx) ([]model.AudioSource, *model.AudioSource, string, error) {
	var sources []model.AudioSource

	if form, err := c.MultipartForm(); err == nil && form != nil {
		for _, fh := range form.File["files"] {
			data, err := readFormFile(fh)
			if err != nil {
				return nil, nil, "", ErrBadRequest("failed to read uploaded file " + fh.Filename)
			}
			sources = append(sources, model.NewUploadedSource(fh.Filename, data))
		}
	}

	for _, p := range splitNonEmpty(c.FormValue("file_paths")) {
		sources = append(sources, model.NewLocalPathSource(p))
	}
	for _, u := range splitNonEmpty(c.FormValue("audio_urls")) {
		sources = append(sources, model.NewRemoteURLSource(u))
	}
	if audioID := c.FormValue("audio_id"); audioID != "" {
		sources = append(sources, model.NewStoredIDSource(audioID))
	}

	var docFile *model.AudioSource
	if form, err := c.MultipartForm(); err == nil && form != nil {
		if files := form.File["document_file"]; len(files) > 0 {
			data, err := readFormFile(files[0])
			if err != nil {
				return nil, nil, "", ErrBadRequest("failed to read document_file")
			}
			src := model.NewUploadedSource(files[0].Filename, data)
			docFile = &src
		}
	}

	textContent := c.FormValue("text_content")

	return sources, docFile, textContent, nil
}

func toProcessResponse(resp *pipeline.Response) processResponse {
	out := processResponse{
		Status:      resp.Status,
		Message:     resp.Message,
		RawText:     resp.RawText,
		NeedRAG:     resp.NeedRAG,
		HTMLContent: resp.HTMLContent,
		UsageTokens: resp.UsageTokens,
	}
	for _, seg := range resp.Transcript {
		out.Transcript = append(out.Transcript, segmentView{
			Text: seg.Text, StartS: seg.StartS, EndS: seg.EndS,
			SpeakerID: seg.SpeakerID, SpeakerName: seg.SpeakerName,
			EmployeeID: seg.EmployeeID, VoiceSimilarity: seg.VoiceSimilarity,
			HasVoiceMatch: seg.HasVoiceMatch,
		})
	}
	for _, fe := range resp.FileErrors {
		out.FileErrors = append(out.FileErrors, fileErrorView{Index: fe.Index, Error: fe.Error})
	}
	return out
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	file, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func formValueOr(c *fiber.Ctx, key, def string) string {
	if v := c.FormValue(key); v != "" {
		return v
	}
	return def
}

func formValueFloat32(c *fiber.Ctx, key string, def float32) float32 {
	v := c.FormValue(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return def
	}
	return float32(f)
}

func formValueInt(c *fiber.Ctx, key string, def int) int {
	v := c.FormValue(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func parseIntList(raw string) []int {
	var out []int
	for _, part := range splitNonEmpty(raw) {
		if n, err := strconv.Atoi(part); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func splitNonEmpty(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
