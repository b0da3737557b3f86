// Package generation defines the port for the candidate-generation collaborator.
package generation

import (
	"context"

	"github.com/imagingworks/protoloop/internal/domain/pipeline"
	"github.com/imagingworks/protoloop/internal/domain/record"
	"github.com/imagingworks/protoloop/internal/domain/review"
)

// Generator produces one structured protocol recommendation per loop
// iteration. feedback is nil only on the first iteration.
type Generator interface {
	Generate(ctx context.Context, rec record.PatientRecord, sharedContext string, feedback *review.Feedback) (pipeline.Candidate, error)
}
