package provider

import (
	"context"
	"time"

	"meetingpipeline/internal/apperrors"
	"meetingpipeline/internal/model"
)

const voiceprintCollection = "voiceprints"

// PgVoiceprintStore is a thin facade over VectorStore bound to the fixed
// 192-dim voiceprint collection (spec.md §3, §4.1), so voiceprint.Matcher
// never talks to the generic Query/Upsert surface directly.
type PgVoiceprintStore struct {
	vector VectorStore
}

func NewPgVoiceprintStore(ctx context.Context, vector VectorStore) (*PgVoiceprintStore, error) {
	if err := vector.EnsureCollection(ctx, voiceprintCollection, model.VoiceprintDim); err != nil {
		return nil, err
	}
	return &PgVoiceprintStore{vector: vector}, nil
}

func (s *PgVoiceprintStore) Ready(ctx context.Context) error {
	return s.vector.Ready(ctx)
}

func (s *PgVoiceprintStore) Register(ctx context.Context, rec model.VoiceprintRecord) error {
	if len(rec.Embedding) != model.VoiceprintDim {
		return apperrors.Newf(apperrors.VectorDimMismatch, "voiceprint embedding has dim %d, want %d", len(rec.Embedding), model.VoiceprintDim)
	}
	meta := map[string]any{
		"employee_id":   rec.EmployeeID,
		"name":          rec.Name,
		"registered_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range rec.Metadata {
		meta[k] = v
	}
	return s.vector.Upsert(ctx, voiceprintCollection, []model.VectorRecord{{
		ID:        rec.EmployeeID,
		Embedding: rec.Embedding,
		Document:  rec.Name,
		Metadata:  meta,
	}})
}

// MatchTop1 returns the single closest registered voiceprint and its
// similarity score; found is false if the collection is empty.
func (s *PgVoiceprintStore) MatchTop1(ctx context.Context, embedding []float32) (string, string, float64, bool, error) {
	if len(embedding) != model.VoiceprintDim {
		return "", "", 0, false, apperrors.Newf(apperrors.VectorDimMismatch, "probe embedding has dim %d, want %d", len(embedding), model.VoiceprintDim)
	}
	hits, err := s.vector.Query(ctx, voiceprintCollection, embedding, 1, nil)
	if err != nil {
		return "", "", 0, false, err
	}
	if len(hits) == 0 {
		return "", "", 0, false, nil
	}
	top := hits[0]
	employeeID, _ := top.Metadata["employee_id"].(string)
	name, _ := top.Metadata["name"].(string)
	if employeeID == "" {
		employeeID = top.ID
	}
	if name == "" {
		name = top.Document
	}
	return employeeID, name, top.Score, true, nil
}

type collectionCounter interface {
	CollectionCount(ctx context.Context, name string) (int, error)
}

func (s *PgVoiceprintStore) Count(ctx context.Context) (int, error) {
	if counter, ok := s.vector.(collectionCounter); ok {
		return counter.CollectionCount(ctx, voiceprintCollection)
	}
	hits, err := s.vector.Query(ctx, voiceprintCollection, make([]float32, model.VoiceprintDim), 1<<20, nil)
	if err != nil {
		return 0, err
	}
	return len(hits), nil
}
