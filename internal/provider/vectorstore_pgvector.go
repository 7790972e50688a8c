package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"meetingpipeline/internal/apperrors"
	"meetingpipeline/internal/model"
)

// PgVectorStore persists embedded records in Postgres+pgvector, grounded
// on store/storage.go's PostgresStore (pgxpool + pgvector-go), generalized
// from a single fixed "chunks" table to one table per named collection so
// the same store backs both the archive collection and, via
// PgVoiceprintStore, the voiceprint collection.
type PgVectorStore struct {
	pool *pgxpool.Pool
}

func NewPgVectorStore(ctx context.Context, connStr string) (*PgVectorStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "open postgres pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, apperrors.Wrap(err, apperrors.UpstreamUnavailable, "ping postgres")
	}
	return &PgVectorStore{pool: pool}, nil
}

func (s *PgVectorStore) Close() {
	s.pool.Close()
}

func (s *PgVectorStore) Ready(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.UpstreamUnavailable, "postgres not reachable")
	}
	return nil
}

var collectionNameRE = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// tableName maps a collection name to a table identifier, rejecting
// anything that isn't a safe lower-snake-case identifier since this name
// is interpolated into DDL (pgx parameter binding doesn't cover identifiers).
func tableName(collection string) (string, error) {
	if !collectionNameRE.MatchString(collection) {
		return "", apperrors.Newf(apperrors.BadInput, "invalid collection name %q", collection)
	}
	return "vec_" + collection, nil
}

func (s *PgVectorStore) EnsureCollection(ctx context.Context, name string, dim int) error {
	table, err := tableName(name)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return apperrors.Wrap(err, apperrors.Internal, "create vector extension")
	}
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			document TEXT NOT NULL,
			metadata JSONB,
			embedding vector(%d)
		);
		CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING ivfflat (embedding vector_l2_ops) WITH (lists = 100);
	`, table, dim, table, table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return apperrors.Wrap(err, apperrors.Internal, "create collection table")
	}
	return nil
}

func (s *PgVectorStore) Upsert(ctx context.Context, name string, records []model.VectorRecord) error {
	table, err := tableName(name)
	if err != nil {
		return err
	}
	batch := &pgx.Batch{}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, document, metadata, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			document = EXCLUDED.document,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding
	`, table)
	for _, r := range records {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return apperrors.Wrap(err, apperrors.Internal, "marshal vector record metadata")
		}
		batch.Queue(query, r.ID, r.Document, meta, pgvector.NewVector(r.Embedding))
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range records {
		if _, err := br.Exec(); err != nil {
			return apperrors.Wrap(err, apperrors.Internal, "upsert vector record")
		}
	}
	return nil
}

func (s *PgVectorStore) Delete(ctx context.Context, name string, ids []string) error {
	table, err := tableName(name)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ANY($1)", table)
	if _, err := s.pool.Exec(ctx, query, ids); err != nil {
		return apperrors.Wrap(err, apperrors.Internal, "delete vector records")
	}
	return nil
}

// CollectionCount returns the number of records in a collection.
func (s *PgVectorStore) CollectionCount(ctx context.Context, name string) (int, error) {
	table, err := tableName(name)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", table)).Scan(&n); err != nil {
		return 0, apperrors.Wrap(err, apperrors.Internal, "count collection rows")
	}
	return n, nil
}

// Query returns the k nearest records by L2 distance, converting distance
// to similarity via Similarity (spec.md §4.1), mirroring storage.go's
// Search but generalized to an arbitrary filter on the metadata column.
func (s *PgVectorStore) Query(ctx context.Context, name string, vec []float32, k int, filter map[string]any) ([]VectorQueryResult, error) {
	table, err := tableName(name)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, apperrors.New(apperrors.BadInput, "empty query vector")
	}

	query := fmt.Sprintf(`
		SELECT id, document, metadata, embedding <-> $1 AS distance
		FROM %s
	`, table)
	args := []any{pgvector.NewVector(vec)}

	if len(filter) > 0 {
		meta, err := json.Marshal(filter)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.Internal, "marshal query filter")
		}
		query += " WHERE metadata @> $2"
		args = append(args, meta)
	}
	query += fmt.Sprintf(" ORDER BY embedding <-> $1 LIMIT $%d", len(args)+1)
	args = append(args, k)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "query vector store")
	}
	defer rows.Close()

	var out []VectorQueryResult
	for rows.Next() {
		var id, document string
		var metaRaw []byte
		var distance float64
		if err := rows.Scan(&id, &document, &metaRaw, &distance); err != nil {
			return nil, apperrors.Wrap(err, apperrors.Internal, "scan vector query row")
		}
		var meta map[string]any
		if len(metaRaw) > 0 {
			_ = json.Unmarshal(metaRaw, &meta)
		}
		out = append(out, VectorQueryResult{
			ID:       id,
			Score:    Similarity(distance),
			Metadata: meta,
			Document: document,
		})
	}
	return out, nil
}
