// Package plausibility defines the port for hallucination analysis.
package plausibility

import (
	"context"

	"github.com/imagingworks/protoloop/internal/domain/review"
)

// Analyzer cross-checks draft feedback against the record and tool outputs
// and returns a report whose confidence reduction is always non-negative.
type Analyzer interface {
	Analyze(ctx context.Context, input review.PlausibilityInput) (review.Analysis, error)
}
