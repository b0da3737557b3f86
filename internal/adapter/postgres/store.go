package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imagingworks/protoloop/internal/domain"
	"github.com/imagingworks/protoloop/internal/domain/pipeline"
	"github.com/imagingworks/protoloop/internal/domain/review"
)

// Artifact kinds stored in run_artifacts.
const (
	kindCandidate = "candidate"
	kindFeedback  = "feedback"
	kindFinal     = "final"
	kindBundle    = "fhir_bundle"
)

// Store implements the artifact store on Postgres. Artifacts are upserted so
// a retried write is idempotent.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) SaveSharedContext(ctx context.Context, content string) error {
	const q = `INSERT INTO shared_context (id, content, updated_at) VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET content = $1, updated_at = now()`
	if _, err := s.pool.Exec(ctx, q, content); err != nil {
		return fmt.Errorf("%w: save shared context: %v", domain.ErrPersistence, err)
	}
	return nil
}

func (s *Store) LoadSharedContext(ctx context.Context) (string, error) {
	const q = `SELECT content FROM shared_context WHERE id = 1`
	var content string
	err := s.pool.QueryRow(ctx, q).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load shared context: %w", err)
	}
	return content, nil
}

func (s *Store) SaveCandidate(ctx context.Context, runID string, loop int, candidate pipeline.Candidate) error {
	return s.saveArtifact(ctx, runID, kindCandidate, loop, candidate)
}

func (s *Store) SaveFeedback(ctx context.Context, runID string, loop int, result review.Result) error {
	return s.saveArtifact(ctx, runID, kindFeedback, loop, result)
}

func (s *Store) SaveFinal(ctx context.Context, runID string, candidate pipeline.Candidate) error {
	return s.saveArtifact(ctx, runID, kindFinal, 0, candidate)
}

func (s *Store) SaveBundle(ctx context.Context, runID string, bundle any) error {
	return s.saveArtifact(ctx, runID, kindBundle, 0, bundle)
}

func (s *Store) saveArtifact(ctx context.Context, runID, kind string, loop int, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", domain.ErrPersistence, kind, err)
	}
	const q = `INSERT INTO run_artifacts (run_id, kind, loop, payload) VALUES ($1, $2, $3, $4)
		ON CONFLICT (run_id, kind, loop) DO UPDATE SET payload = $4, created_at = now()`
	if _, err := s.pool.Exec(ctx, q, runID, kind, loop, payload); err != nil {
		return fmt.Errorf("%w: save %s loop %d: %v", domain.ErrPersistence, kind, loop, err)
	}
	return nil
}
