// Package history builds the historical-context section of the LLM
// prompt under auto/retrieval/summary modes (spec.md §4.9), grounded on
// app/services/meeting_history.py's MeetingHistoryService and on
// wh1plash-rag/app/api/handler.go's similarity-filtered context assembly.
package history

import (
	"context"
	"fmt"
	"strings"

	"meetingpipeline/internal/apperrors"
	"meetingpipeline/internal/model"
	"meetingpipeline/internal/provider"
)

const (
	defaultTopK         = 5
	defaultMinSimilarity = 0.3
	archiveCollection   = "archive"
)

// MinuteFetcher fetches a previously archived minute's top-level
// sections by source id, used by summary mode. Implemented by the
// archive store's read path (C11); kept as a narrow interface here so
// this package doesn't depend on archive's full surface.
type MinuteFetcher interface {
	FetchSections(ctx context.Context, sourceID int) (title string, decisions string, actions string, err error)
}

// Service builds the history/RAG context section.
type Service struct {
	embedding     provider.EmbeddingProvider
	vector        provider.VectorStore
	llm           provider.LLMProvider
	fetcher       MinuteFetcher
	topK          int
	minSimilarity float64
}

func New(embedding provider.EmbeddingProvider, vector provider.VectorStore, llm provider.LLMProvider, fetcher MinuteFetcher, topK int, minSimilarity float64) *Service {
	if topK <= 0 {
		topK = defaultTopK
	}
	if minSimilarity <= 0 {
		minSimilarity = defaultMinSimilarity
	}
	return &Service{embedding: embedding, vector: vector, llm: llm, fetcher: fetcher, topK: topK, minSimilarity: minSimilarity}
}

// Build resolves req.Mode (auto/retrieval/summary) against the current
// transcript and returns the context section to append to the user
// prompt. An empty result is always a valid, safe outcome.
func (s *Service) Build(ctx context.Context, req model.HistoryRequest, currentTranscript, userRequirement string) (string, error) {
	mode := req.Mode
	if mode == "" || mode == model.HistoryAuto {
		proceed, err := s.decideAuto(ctx, currentTranscript)
		if err != nil || !proceed {
			return "", nil
		}
		mode = model.HistoryRetrieval
	}

	switch mode {
	case model.HistoryRetrieval:
		// Unfiltered semantic query over the archive collection; no ids
		// required (spec.md §4.9).
		return s.buildRetrieval(ctx, currentTranscript, userRequirement)
	case model.HistorySummary:
		// Needs explicit ids to fetch specific minutes via MinuteFetcher.
		if len(req.IDs) == 0 {
			return "", nil
		}
		return s.buildSummary(ctx, req.IDs)
	default:
		return "", nil
	}
}

// decideAuto asks the LLM a single yes/no over the current transcript
// prefix, matching spec.md §4.9's auto mode.
func (s *Service) decideAuto(ctx context.Context, currentTranscript string) (bool, error) {
	if s.llm == nil {
		return false, nil
	}
	prefix := currentTranscript
	if runes := []rune(prefix); len(runes) > 500 {
		prefix = string(runes[:500])
	}
	answer, _, err := s.llm.Complete(ctx,
		"You answer strictly with yes or no, nothing else.",
		fmt.Sprintf("Given this meeting excerpt, would historical context from prior meetings meaningfully help produce the minutes?\n\n%s", prefix),
		provider.LLMOptions{Temperature: 0, MaxTokens: 8},
	)
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y"), nil
}

// buildRetrieval issues a semantic query against the archive collection
// and joins the top-k chunks above the similarity floor, with source
// citations (spec.md §4.9).
func (s *Service) buildRetrieval(ctx context.Context, currentTranscript, userRequirement string) (string, error) {
	if s.embedding == nil || s.vector == nil {
		return "", nil
	}
	query := userRequirement
	if query == "" {
		query = currentTranscript
	}
	if len(query) > 500 {
		query = query[:500]
	}

	vecs, err := s.embedding.Embed(ctx, []string{query})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.Internal, "embed history query")
	}
	if len(vecs) == 0 {
		return "", nil
	}

	hits, err := s.vector.Query(ctx, archiveCollection, vecs[0], s.topK, nil)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.Internal, "query archive collection")
	}

	var sb strings.Builder
	count := 0
	for _, hit := range hits {
		if hit.Score < s.minSimilarity {
			continue
		}
		sourceID, _ := hit.Metadata["source_id"]
		sb.WriteString(fmt.Sprintf("[source:%v] %s\n", sourceID, hit.Document))
		count++
	}
	if count == 0 {
		return "", nil
	}
	return strings.TrimSpace(sb.String()), nil
}

// buildSummary fetches each referenced minute's top-level sections and
// concatenates them with id headers (spec.md §4.9).
func (s *Service) buildSummary(ctx context.Context, ids []int) (string, error) {
	if s.fetcher == nil {
		return "", nil
	}
	var sb strings.Builder
	for _, id := range ids {
		title, decisions, actions, err := s.fetcher.FetchSections(ctx, id)
		if err != nil {
			continue
		}
		sb.WriteString(fmt.Sprintf("## Meeting %d: %s\nDecisions: %s\nActions: %s\n\n", id, title, decisions, actions))
	}
	return strings.TrimSpace(sb.String()), nil
}
