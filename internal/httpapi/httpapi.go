package httpapi

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"meetingpipeline/internal/archive"
	"meetingpipeline/internal/hotword"
	"meetingpipeline/internal/pipeline"
	"meetingpipeline/internal/provider"
)

// Server wraps a fiber app exposing the pipeline's HTTP surface,
// grounded on wh1plash-rag/app/server/server.go's Server type and
// route-group layout (check/, apiv1/), generalized from one POST
// /api/v1/request route to the six routes spec.md §6 names.
type Server struct {
	listenAddr string
	app        *fiber.App
	logger     *slog.Logger
}

// Deps bundles every component the HTTP surface needs handlers for.
type Deps struct {
	Controller *pipeline.Controller
	Archive    *archive.Service
	Hotwords   *hotword.Registry
	Providers  *provider.Providers
	ASRModel   string
	LLMModel   string
}

func NewServer(addr string, deps Deps) *Server {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})

	process := NewProcessHandler(deps.Controller)
	archiveHandler := NewArchiveHandler(deps.Archive)
	voice := NewVoiceHandler(deps.Providers.VoiceEmbed, deps.Providers.Voiceprint)
	hotwords := NewHotwordHandler(deps.Hotwords)
	health := NewHealthHandler(deps.Providers, deps.ASRModel, deps.LLMModel)

	app.Post("/process", process.Handle)
	app.Post("/archive", archiveHandler.Handle)
	app.Post("/voice/register", voice.HandleRegister)
	app.Get("/hotwords", hotwords.HandleGet)
	app.Post("/hotwords/reload", hotwords.HandleReload)
	app.Get("/health", health.Handle)

	return &Server{listenAddr: addr, app: app, logger: slog.Default()}
}

// Run starts listening, blocking until the app stops or fails.
func (s *Server) Run() error {
	return s.app.Listen(s.listenAddr)
}

// Stop gracefully shuts the fiber app down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("server stopped")
	return s.app.ShutdownWithContext(ctx)
}
