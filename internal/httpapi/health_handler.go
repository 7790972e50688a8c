package httpapi

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"meetingpipeline/internal/provider"
)

// HealthHandler drives GET /health by probing every provider singleton's
// Ready check (spec.md §6, §4.1's "each factory answers a ready() probe
// used by the health endpoint").
type HealthHandler struct {
	providers *provider.Providers
	asrModel  string
	llmModel  string
}

func NewHealthHandler(providers *provider.Providers, asrModel, llmModel string) *HealthHandler {
	return &HealthHandler{providers: providers, asrModel: asrModel, llmModel: llmModel}
}

// readyChecker is satisfied structurally by ASRProvider, LLMProvider,
// EmbeddingProvider, and VectorStore — each already exposes Ready(ctx).
type readyChecker interface {
	Ready(ctx context.Context) error
}

func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	ctx := c.Context()
	statuses := map[string]string{
		"asr":       readyStatus(ctx, resolveASR(h.providers, h.asrModel)),
		"llm":       readyStatus(ctx, resolveLLM(h.providers, h.llmModel)),
		"embedding": readyStatus(ctx, h.providers.Embedding),
		"vector":    readyStatus(ctx, h.providers.Vector),
	}

	mode := "healthy"
	for _, s := range statuses {
		if s != "ready" {
			mode = "degraded"
		}
	}

	return c.JSON(healthResponse{
		Status:    "healthy",
		Mode:      mode,
		Providers: statuses,
	})
}

func readyStatus(ctx context.Context, p readyChecker) string {
	if p == nil {
		return "unconfigured"
	}
	if err := p.Ready(ctx); err != nil {
		return "unavailable"
	}
	return "ready"
}

func resolveASR(p *provider.Providers, selector string) provider.ASRProvider {
	prov, err := p.ResolveASR(selector)
	if err != nil {
		return nil
	}
	return prov
}

func resolveLLM(p *provider.Providers, selector string) provider.LLMProvider {
	prov, err := p.ResolveLLM(selector)
	if err != nil {
		return nil
	}
	return prov
}
