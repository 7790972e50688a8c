// Package archive embeds and upserts approved minutes into the
// semantic archive collection (spec.md §4.11), grounded on
// original_source/app/services/vector.py's save_knowledge (id scheme,
// delete-then-insert idempotency) generalized from Chroma's
// collection.add to the pgvector-backed provider.VectorStore.
package archive

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"meetingpipeline/internal/apperrors"
	"meetingpipeline/internal/model"
	"meetingpipeline/internal/provider"
)

const collectionName = "archive"

// Service chunks, embeds, and stores approved minutes, and reconstructs
// a minute's top-level sections for history.Service's summary mode.
type Service struct {
	embedding provider.EmbeddingProvider
	vector    provider.VectorStore
}

func New(embedding provider.EmbeddingProvider, vector provider.VectorStore) *Service {
	return &Service{embedding: embedding, vector: vector}
}

func (s *Service) EnsureCollection(ctx context.Context) error {
	return s.vector.EnsureCollection(ctx, collectionName, s.embedding.Dimension())
}

// Store chunks rec.Markdown, embeds each chunk, and upserts the result
// keyed by (source_id, chunk_index). Re-archiving the same SourceID
// deletes the prior chunk set first so the final state matches the
// latest content exactly (spec.md §4.11's idempotency rule).
func (s *Service) Store(ctx context.Context, rec model.MinuteRecord) (int, error) {
	chunks := ChunkMarkdown(rec.Markdown)
	if len(chunks) == 0 {
		return 0, apperrors.New(apperrors.BadInput, "markdown produced no chunks")
	}

	priorIDs, err := s.existingChunkIDs(ctx, rec.SourceID)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.Internal, "look up prior archive chunks")
	}
	if len(priorIDs) > 0 {
		if err := s.vector.Delete(ctx, collectionName, priorIDs); err != nil {
			return 0, apperrors.Wrap(err, apperrors.Internal, "delete prior archive chunks")
		}
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := s.embedding.Embed(ctx, texts)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.Internal, "embed archive chunks")
	}
	if len(vecs) != len(chunks) {
		return 0, apperrors.New(apperrors.Internal, "embedding count does not match chunk count")
	}
	for _, v := range vecs {
		if len(v) != s.embedding.Dimension() {
			return 0, apperrors.Newf(apperrors.VectorDimMismatch, "embedding dim %d disagrees with provider dim %d", len(v), s.embedding.Dimension())
		}
	}

	records := make([]model.VectorRecord, len(chunks))
	for i, c := range chunks {
		meta := map[string]any{
			"source_id":     rec.SourceID,
			"chunk_index":   c.Index,
			"section_title": c.SectionTitle,
		}
		if rec.UserID != "" {
			meta["user_id"] = rec.UserID
		}
		if rec.MeetingDate != nil {
			meta["meeting_date"] = rec.MeetingDate.Format("2006-01-02")
		}
		if rec.Department != "" {
			meta["department"] = rec.Department
		}
		records[i] = model.VectorRecord{
			ID:        chunkID(rec.SourceID, c.Index),
			Embedding: vecs[i],
			Document:  c.Text,
			Metadata:  meta,
		}
	}

	if err := s.vector.Upsert(ctx, collectionName, records); err != nil {
		return 0, apperrors.Wrap(err, apperrors.Internal, "upsert archive chunks")
	}
	return len(records), nil
}

func chunkID(sourceID, chunkIndex int) string {
	return fmt.Sprintf("%d_%d", sourceID, chunkIndex)
}

// existingChunkIDs finds every chunk currently stored for sourceID by
// querying with a zero vector and filtering on metadata alone — the
// similarity ranking is irrelevant here, only the filter match is used.
func (s *Service) existingChunkIDs(ctx context.Context, sourceID int) ([]string, error) {
	zero := make([]float32, s.embedding.Dimension())
	hits, err := s.vector.Query(ctx, collectionName, zero, 1000, map[string]any{"source_id": sourceID})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids, nil
}

var decisionHeadingRE = regexp.MustCompile(`(?i)决议|决策|决定事项|decisions?`)
var actionHeadingRE = regexp.MustCompile(`(?i)行动项|待办|action\s*items?`)

// FetchSections reconstructs a previously archived minute's title,
// decisions, and actions sections, implementing history.MinuteFetcher
// for summary-mode history context without introducing a reverse
// dependency from history onto this package.
func (s *Service) FetchSections(ctx context.Context, sourceID int) (title, decisions, actions string, err error) {
	zero := make([]float32, s.embedding.Dimension())
	hits, err := s.vector.Query(ctx, collectionName, zero, 1000, map[string]any{"source_id": sourceID})
	if err != nil {
		return "", "", "", apperrors.Wrap(err, apperrors.Internal, "fetch archived chunks")
	}
	if len(hits) == 0 {
		return "", "", "", apperrors.Newf(apperrors.BadInput, "no archived chunks for source %d", sourceID)
	}

	sort.Slice(hits, func(i, j int) bool {
		return chunkIndexOf(hits[i]) < chunkIndexOf(hits[j])
	})

	var decisionSB, actionSB strings.Builder
	for _, h := range hits {
		section, _ := h.Metadata["section_title"].(string)
		if title == "" && section != "" {
			title = section
		}
		switch {
		case decisionHeadingRE.MatchString(section):
			decisionSB.WriteString(h.Document)
			decisionSB.WriteString(" ")
		case actionHeadingRE.MatchString(section):
			actionSB.WriteString(h.Document)
			actionSB.WriteString(" ")
		}
	}
	if title == "" {
		title = fmt.Sprintf("meeting %d", sourceID)
	}
	return title, strings.TrimSpace(decisionSB.String()), strings.TrimSpace(actionSB.String()), nil
}

func chunkIndexOf(h provider.VectorQueryResult) int {
	switch v := h.Metadata["chunk_index"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
