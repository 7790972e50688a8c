package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"meetingpipeline/internal/hotword"
)

// HotwordHandler drives GET /hotwords and POST /hotwords/reload
// (spec.md §6, §4.2).
type HotwordHandler struct {
	registry *hotword.Registry
}

func NewHotwordHandler(registry *hotword.Registry) *HotwordHandler {
	return &HotwordHandler{registry: registry}
}

func (h *HotwordHandler) HandleGet(c *fiber.Ctx) error {
	return c.JSON(h.snapshot())
}

func (h *HotwordHandler) HandleReload(c *fiber.Ctx) error {
	if _, err := h.registry.Reload(); err != nil {
		return err
	}
	return c.JSON(h.snapshot())
}

func (h *HotwordHandler) snapshot() hotwordsResponse {
	table := h.registry.Snapshot()
	stats := make(map[string]int, len(table.Categories))
	total := 0
	for category, words := range table.Categories {
		stats[category] = len(words)
		total += len(words)
	}
	return hotwordsResponse{
		Categories: table.Categories,
		Hotwords:   h.registry.Render(),
		Stats:      stats,
		Total:      total,
	}
}
