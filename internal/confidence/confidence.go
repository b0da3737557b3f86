// Package confidence derives the bounded feedback confidence from two
// independent signals: a model-stated score and a deterministic plausibility
// penalty.
package confidence

import (
	"strconv"

	"github.com/imagingworks/protoloop/internal/domain/review"
	"github.com/imagingworks/protoloop/internal/extract"
)

// ScoreKey is the field the scoring collaborator is asked to return.
const ScoreKey = "candidate_confidence"

// ParseModelScore extracts the model-derived score from raw scoring output.
// The score is clamped into [0, 1]. A parse failure, a missing key or a
// non-numeric value yields (0, false): callers must distinguish "no score"
// from a score of zero, so absence is never defaulted to a number.
func ParseModelScore(raw string) (float64, bool) {
	res := extract.Extract(raw)
	if !res.Parsed {
		return 0, false
	}
	val, ok := res.Object[ScoreKey]
	if !ok {
		return 0, false
	}
	score, ok := toFloat(val)
	if !ok {
		return 0, false
	}
	return review.Clamp01(score), true
}

// ApplyPenalty subtracts a non-negative plausibility reduction from the base
// confidence and clamps the result into [0, 1]. A negative reduction is
// treated as zero, so the operation is monotonically non-increasing.
func ApplyPenalty(base, reduction float64) float64 {
	if reduction < 0 {
		reduction = 0
	}
	return review.Clamp01(review.Clamp01(base) - reduction)
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
