// Command server is the CLI launcher for the meeting-ingestion pipeline,
// grounded on wh1plash-rag/app/cmd/main.go's signal-driven shutdown,
// extended with explicit exit codes for config and provider-init
// failures (spec.md §6).
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meetingpipeline/internal/archive"
	"meetingpipeline/internal/asrengine"
	"meetingpipeline/internal/audiopre"
	"meetingpipeline/internal/config"
	"meetingpipeline/internal/history"
	"meetingpipeline/internal/hotword"
	"meetingpipeline/internal/httpapi"
	"meetingpipeline/internal/pipeline"
	"meetingpipeline/internal/provider"
	"meetingpipeline/internal/template"
	"meetingpipeline/internal/voiceprint"
)

// Exit codes (spec.md §6): 0 clean shutdown, 2 configuration error,
// 3 provider/storage initialization failure, 130 terminated by signal.
const (
	exitOK            = 0
	exitConfigError   = 2
	exitProviderError = 3
	exitSignal        = 130

	shutdownTimeout = 10 * time.Second

	// archiveEmbeddingDim is bge-m3's output dimension (the default
	// OLLAMA_EMBEDDING_MODEL); switching embedding models requires
	// updating this alongside the model config.
	archiveEmbeddingDim = 1024
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()
	if cfg.PostgresDSN == "" {
		log.Println("POSTGRES_DSN is required")
		return exitConfigError
	}

	ctx := context.Background()

	vectorStore, err := provider.NewPgVectorStore(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Printf("failed to connect to postgres: %v", err)
		return exitProviderError
	}
	defer vectorStore.Close()

	if err := vectorStore.EnsureCollection(ctx, "archive", archiveEmbeddingDim); err != nil {
		log.Printf("failed to ensure archive collection: %v", err)
		return exitProviderError
	}

	voiceprintStore, err := provider.NewPgVoiceprintStore(ctx, vectorStore)
	if err != nil {
		log.Printf("failed to initialize voiceprint store: %v", err)
		return exitProviderError
	}

	embedding := provider.NewOllamaEmbeddingProvider(cfg.OllamaEmbedURL, cfg.OllamaEmbedModel, archiveEmbeddingDim)

	providers := provider.BuildProviders(cfg, vectorStore, voiceprintStore, embedding)

	hotwords := hotword.New(cfg.HotwordsPath)
	if err := hotwords.Load(); err != nil {
		log.Printf("failed to load hotwords, continuing with an empty table: %v", err)
	}

	preprocessor := audiopre.New(cfg.TempDir)
	asrEngine := asrengine.New(cfg.MaxAudioDurationS)
	voiceMatcher := voiceprint.New(providers.VoiceEmbed, providers.Voiceprint, preprocessor, cfg.VoiceMatchThreshold)

	templates, err := template.New(cfg.MaxPromptTokens)
	if err != nil {
		log.Printf("failed to initialize template resolver: %v", err)
		return exitProviderError
	}

	archiveService := archive.New(providers.Embedding, providers.Vector)

	historyLLM, err := providers.ResolveLLM(cfg.LLMModel)
	if err != nil {
		log.Printf("failed to resolve default llm provider: %v", err)
		return exitProviderError
	}
	historyService := history.New(providers.Embedding, providers.Vector, historyLLM, archiveService, cfg.HistoryTopK, cfg.HistoryMinSimilarity)

	controller := pipeline.New(cfg, providers, hotwords, preprocessor, asrEngine, voiceMatcher, templates, historyService, archiveService)

	server := httpapi.NewServer(cfg.HTTPAddr, httpapi.Deps{
		Controller: controller,
		Archive:    archiveService,
		Hotwords:   hotwords,
		Providers:  providers,
		ASRModel:   cfg.ASRModel,
		LLMModel:   cfg.LLMModel,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- server.Run() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("server stopped unexpectedly", "error", err.Error())
			return exitProviderError
		}
		return exitOK
	case <-sigCh:
		slog.Info("received shutdown signal, shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Stop(shutdownCtx); err != nil {
			slog.Error("error during shutdown", "error", err.Error())
		}
		return exitSignal
	}
}
