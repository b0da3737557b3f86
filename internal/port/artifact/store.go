// Package artifact defines the port for persisting pipeline artifacts.
package artifact

import (
	"context"

	"github.com/imagingworks/protoloop/internal/domain/pipeline"
	"github.com/imagingworks/protoloop/internal/domain/review"
)

// Store persists per-iteration and terminal pipeline artifacts. Writes have
// no rollback: a failed write must abort the run rather than let in-memory
// and persisted state diverge silently.
type Store interface {
	// SaveSharedContext persists the enrichment output produced at
	// initialization so later runs can fall back to it.
	SaveSharedContext(ctx context.Context, content string) error

	// LoadSharedContext returns the most recently persisted shared context,
	// or domain.ErrNotFound when none exists.
	LoadSharedContext(ctx context.Context) (string, error)

	// SaveCandidate persists one iteration's generated candidate.
	SaveCandidate(ctx context.Context, runID string, loop int, candidate pipeline.Candidate) error

	// SaveFeedback persists one iteration's review result.
	SaveFeedback(ctx context.Context, runID string, loop int, result review.Result) error

	// SaveFinal persists the terminal candidate of a completed run.
	SaveFinal(ctx context.Context, runID string, candidate pipeline.Candidate) error

	// SaveBundle persists the downstream document-format export for a run.
	SaveBundle(ctx context.Context, runID string, bundle any) error
}
