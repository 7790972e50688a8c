package httpapi

import (
	"io"

	"github.com/gofiber/fiber/v2"

	"meetingpipeline/internal/apperrors"
	"meetingpipeline/internal/model"
	"meetingpipeline/internal/provider"
)

// VoiceHandler drives POST /voice/register: extract a 192-dim voiceprint
// from a short clip and register it against an employee id (spec.md §6,
// §4.5). Unlike the other handlers this one reports failure through its
// own {code, message, data} envelope rather than the shared
// httpapi.Error path, matching the response shape spec.md §6 specifies.
type VoiceHandler struct {
	embedder provider.VoiceEmbeddingProvider
	store    provider.VoiceprintStore
}

func NewVoiceHandler(embedder provider.VoiceEmbeddingProvider, store provider.VoiceprintStore) *VoiceHandler {
	return &VoiceHandler{embedder: embedder, store: store}
}

func (h *VoiceHandler) HandleRegister(c *fiber.Ctx) error {
	params := voiceRegisterParams{
		Name:       c.FormValue("name"),
		EmployeeID: c.FormValue("employee_id"),
	}
	if errs := validateStruct(params); len(errs) > 0 {
		return NewValidationError(errs)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(voiceRegisterResponse{
			Code: fiber.StatusBadRequest, Message: "voice clip file is required",
		})
	}
	file, err := fh.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(voiceRegisterResponse{
			Code: fiber.StatusBadRequest, Message: "failed to open uploaded clip",
		})
	}
	defer file.Close()
	audio, err := io.ReadAll(file)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(voiceRegisterResponse{
			Code: fiber.StatusBadRequest, Message: "failed to read uploaded clip",
		})
	}

	vec, err := h.embedder.EmbedVoice(c.Context(), audio)
	if err != nil {
		return voiceErrorResponse(c, err)
	}

	if err := h.store.Register(c.Context(), model.VoiceprintRecord{
		EmployeeID: params.EmployeeID,
		Name:       params.Name,
		Embedding:  vec,
	}); err != nil {
		return voiceErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(voiceRegisterResponse{
		Code:    fiber.StatusOK,
		Message: "registered",
		Data: &voiceRegisterData{
			EmployeeID: params.EmployeeID,
			Name:       params.Name,
			VectorDim:  len(vec),
		},
	})
}

// voiceErrorResponse maps apperrors.Kind to the {400, 500} surface
// spec.md §6 names for this endpoint: bad input, unsupported format, and
// dimension mismatch (too-short/quality-fail equivalents) are 400,
// everything else is 500.
func voiceErrorResponse(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch apperrors.KindOf(err) {
	case apperrors.BadInput, apperrors.VectorDimMismatch, apperrors.UnsupportedFormat:
		status = fiber.StatusBadRequest
	}
	return c.Status(status).JSON(voiceRegisterResponse{Code: status, Message: err.Error()})
}
