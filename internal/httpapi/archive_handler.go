package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"meetingpipeline/internal/archive"
	"meetingpipeline/internal/model"
)

// ArchiveHandler drives POST /archive: chunk, embed, and upsert an
// approved minute into the semantic archive (spec.md §6, §4.11).
type ArchiveHandler struct {
	archive *archive.Service
}

func NewArchiveHandler(a *archive.Service) *ArchiveHandler {
	return &ArchiveHandler{archive: a}
}

func (h *ArchiveHandler) Handle(c *fiber.Ctx) error {
	var params archiveParams
	if err := c.BodyParser(&params); err != nil {
		return ErrBadRequest("invalid json body")
	}
	if errs := validateStruct(params); len(errs) > 0 {
		return NewValidationError(errs)
	}

	rec := model.MinuteRecord{
		Markdown:   params.MarkdownContent,
		SourceID:   params.MinutesID,
		UserID:     params.UserID,
		Department: params.Department,
	}
	if params.MeetingDate != "" {
		if t, err := time.Parse("2006-01-02", params.MeetingDate); err == nil {
			rec.MeetingDate = &t
		}
	}

	count, err := h.archive.Store(c.Context(), rec)
	if err != nil {
		return err
	}

	return c.JSON(archiveResponse{
		Status:      "success",
		Message:     "minute archived",
		ChunksCount: count,
	})
}
