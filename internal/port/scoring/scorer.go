// Package scoring defines the port for the candidate-scoring collaborator.
package scoring

import (
	"context"

	"github.com/imagingworks/protoloop/internal/domain/pipeline"
	"github.com/imagingworks/protoloop/internal/domain/record"
	"github.com/imagingworks/protoloop/internal/domain/review"
)

// Scorer rates a candidate against the record and tool output. The response
// is free text expected to contain a single confidence value; parsing is the
// caller's concern.
type Scorer interface {
	Score(ctx context.Context, candidate pipeline.Candidate, rec record.PatientRecord, tools map[string]review.ToolOutput) (string, error)
}
