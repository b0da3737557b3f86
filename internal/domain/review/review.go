// Package review defines the feedback, rule-check and plausibility records
// exchanged between the review step and the orchestration loop.
package review

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/imagingworks/protoloop/internal/domain/record"
)

// Check statuses reported by a rule-evaluation tool.
const (
	StatusOK      = "ok"
	StatusMissing = "missing"
	StatusFlagged = "flagged"
)

// Check priorities.
const (
	PriorityRequired = "required"
	PriorityOptional = "optional"
)

// DefaultConfidence is assigned when a reviewer response carries no usable
// confidence value.
const DefaultConfidence = 0.5

// Check is one rule-evaluation result for a single field or condition.
type Check struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Detail   string `json:"detail,omitempty"`
}

// ToolOutput is the result of running a rule-evaluation tool over a record.
type ToolOutput struct {
	Tool   string  `json:"tool"`
	Checks []Check `json:"checks"`
}

// FilterChecks returns a copy of the tool output with optional+missing checks
// removed. Those carry no signal worth showing to the reviewer.
func (o ToolOutput) FilterChecks() ToolOutput {
	filtered := ToolOutput{Tool: o.Tool}
	for _, c := range o.Checks {
		if c.Status == StatusMissing && c.Priority == PriorityOptional {
			continue
		}
		filtered.Checks = append(filtered.Checks, c)
	}
	return filtered
}

// Feedback is the three-key review record the loop consumes. It is always
// fully populated; Coerce guarantees the shape even for malformed upstream
// responses.
type Feedback struct {
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
	Confidence      float64  `json:"confidence"`
}

// Result is the full review-step output: the feedback plus the auxiliary
// fields kept for audit and debugging.
type Result struct {
	Feedback
	ModelScore   *float64              `json:"model_score,omitempty"`
	RawResponse  string                `json:"raw_response,omitempty"`
	ToolOutputs  map[string]ToolOutput `json:"tool_outputs,omitempty"`
	Plausibility *Analysis             `json:"plausibility,omitempty"`
	Timestamp    time.Time             `json:"timestamp"`
}

// Finding is one plausibility observation about a statement in draft feedback.
type Finding struct {
	Statement string `json:"statement"`
	Claim     string `json:"claim"`
	Supported bool   `json:"supported"`
}

// Recommendation carries the aggregate plausibility verdict. The confidence
// reduction is non-negative and is subtracted from the reviewer confidence.
type Recommendation struct {
	ConfidenceReduction float64 `json:"confidence_reduction"`
	Rationale           string  `json:"rationale,omitempty"`
}

// Analysis is the report produced by the plausibility collaborator.
type Analysis struct {
	Recommendation Recommendation `json:"recommendation"`
	Findings       []Finding      `json:"findings,omitempty"`
}

// PlausibilityInput is what the plausibility collaborator inspects: the draft
// feedback, the normalized record, and the tool outputs it may cite.
type PlausibilityInput struct {
	Draft  Feedback
	Record record.PatientRecord
	Tools  map[string]ToolOutput
}

// Coerce builds a shape-valid Feedback from an arbitrary decoded object.
// Scalars where sequences are expected become one-element sequences, and a
// missing or non-numeric confidence falls back to DefaultConfidence. The
// result always satisfies the declared shape.
func Coerce(obj map[string]any) Feedback {
	return Feedback{
		Issues:          coerceStrings(obj["issues"]),
		Recommendations: coerceStrings(obj["recommendations"]),
		Confidence:      Clamp01(coerceFloat(obj["confidence"], DefaultConfidence)),
	}
}

// Clamp01 bounds v into [0, 1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func coerceStrings(v any) []string {
	switch val := v.(type) {
	case nil:
		return []string{}
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, stringify(item))
		}
		return out
	default:
		return []string{stringify(val)}
	}
}

func coerceFloat(v any, fallback float64) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return fallback
		}
		return f
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fallback
		}
		return f
	default:
		return fallback
	}
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
