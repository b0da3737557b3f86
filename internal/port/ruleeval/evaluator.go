// Package ruleeval defines the port for deterministic rule-evaluation tools.
package ruleeval

import (
	"context"

	"github.com/imagingworks/protoloop/internal/domain/record"
	"github.com/imagingworks/protoloop/internal/domain/review"
)

// Evaluator runs a rule tool over a normalized record and returns its checks.
type Evaluator interface {
	Evaluate(ctx context.Context, rec record.PatientRecord) (review.ToolOutput, error)

	// Name returns the tool identifier used to key tool outputs (e.g. "renal").
	Name() string
}
