// Package service implements the pipeline orchestration and review steps on
// top of the port interfaces.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/imagingworks/protoloop/internal/adapter/otel"
	"github.com/imagingworks/protoloop/internal/confidence"
	"github.com/imagingworks/protoloop/internal/domain/pipeline"
	"github.com/imagingworks/protoloop/internal/domain/record"
	"github.com/imagingworks/protoloop/internal/domain/review"
	"github.com/imagingworks/protoloop/internal/extract"
	"github.com/imagingworks/protoloop/internal/port/plausibility"
	"github.com/imagingworks/protoloop/internal/port/reviewer"
	"github.com/imagingworks/protoloop/internal/port/ruleeval"
	"github.com/imagingworks/protoloop/internal/port/scoring"
)

// ReviewService runs one review step: deterministic rule evaluation, a
// best-effort model score, the review call itself, and the plausibility
// penalty. Malformed upstream text never surfaces as an error; it degrades
// into default-shaped feedback.
type ReviewService struct {
	evaluators []ruleeval.Evaluator
	scorer     scoring.Scorer
	reviewer   reviewer.Caller
	analyzer   plausibility.Analyzer
	metrics    *otel.Metrics
	log        *slog.Logger

	now func() time.Time
}

func NewReviewService(
	evaluators []ruleeval.Evaluator,
	scorer scoring.Scorer,
	rev reviewer.Caller,
	analyzer plausibility.Analyzer,
	metrics *otel.Metrics,
	log *slog.Logger,
) *ReviewService {
	return &ReviewService{
		evaluators: evaluators,
		scorer:     scorer,
		reviewer:   rev,
		analyzer:   analyzer,
		metrics:    metrics,
		log:        log,
		now:        time.Now,
	}
}

// Review evaluates a candidate against a raw patient record.
func (s *ReviewService) Review(ctx context.Context, raw map[string]any, candidate pipeline.Candidate) (review.Result, error) {
	rec := record.Normalize(raw)

	tools := s.runEvaluators(ctx, rec)

	var modelScore *float64
	if s.scorer != nil {
		if score, ok := s.modelScore(ctx, candidate, rec, tools); ok {
			modelScore = &score
		}
	}

	rawResp, err := s.reviewer.ReviewCall(ctx, buildReviewPrompt(rec, tools, candidate))
	if err != nil {
		// Degraded data, not a fatal condition. Extraction of the empty
		// response yields the safe default.
		s.log.Error("review call failed", "error", err)
		rawResp = ""
	}

	res := extract.Extract(rawResp)
	if res.Strategy != "direct" && s.metrics != nil {
		s.metrics.Repairs.Add(ctx, 1)
	}
	fb := review.Coerce(res.Object)

	result := review.Result{
		Feedback:    fb,
		ModelScore:  modelScore,
		RawResponse: rawResp,
		ToolOutputs: tools,
		Timestamp:   s.now().UTC(),
	}

	analysis, err := s.analyzer.Analyze(ctx, review.PlausibilityInput{
		Draft:  fb,
		Record: rec,
		Tools:  tools,
	})
	if err != nil {
		s.log.Warn("plausibility analysis failed", "error", err)
		return result, nil
	}
	result.Plausibility = &analysis
	result.Confidence = confidence.ApplyPenalty(fb.Confidence, analysis.Recommendation.ConfidenceReduction)
	return result, nil
}

// runEvaluators collects filtered tool output from every evaluator. A failed
// evaluator is logged and skipped.
func (s *ReviewService) runEvaluators(ctx context.Context, rec record.PatientRecord) map[string]review.ToolOutput {
	tools := make(map[string]review.ToolOutput, len(s.evaluators))
	for _, ev := range s.evaluators {
		out, err := ev.Evaluate(ctx, rec)
		if err != nil {
			s.log.Warn("rule evaluation failed", "tool", ev.Name(), "error", err)
			continue
		}
		tools[ev.Name()] = out.FilterChecks()
	}
	return tools
}

// modelScore asks the scoring collaborator for a candidate confidence. Any
// failure, including unparseable output, simply leaves the score absent.
func (s *ReviewService) modelScore(ctx context.Context, candidate pipeline.Candidate, rec record.PatientRecord, tools map[string]review.ToolOutput) (float64, bool) {
	raw, err := s.scorer.Score(ctx, candidate, rec, tools)
	if err != nil {
		s.log.Warn("candidate scoring failed", "error", err)
		return 0, false
	}
	score, ok := confidence.ParseModelScore(raw)
	if !ok {
		s.log.Warn("candidate score unparseable", "raw", raw)
	}
	return score, ok
}

func buildReviewPrompt(rec record.PatientRecord, tools map[string]review.ToolOutput, candidate pipeline.Candidate) string {
	return fmt.Sprintf(`Given patient data, rule-evaluation tool output, and protocol suggestions from another agent,
review the suggestions for safety and completeness.

Patient data:
%s

Tool output:
%s

Protocol suggestions:
%s

Respond with only a JSON object of the form
{"issues": ["..."], "recommendations": ["..."], "confidence": 0.0}
where confidence is your confidence in the suggestions, between 0 and 1.`,
		indentJSON(rec), indentJSON(tools), indentJSON(candidate))
}

func indentJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
