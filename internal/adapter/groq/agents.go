package groq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/imagingworks/protoloop/internal/domain/pipeline"
	"github.com/imagingworks/protoloop/internal/domain/record"
	"github.com/imagingworks/protoloop/internal/domain/review"
	"github.com/imagingworks/protoloop/internal/extract"
)

// Enricher implements the enrichment port: one call that condenses the
// patient record into the shared clinical context for the run.
type Enricher struct {
	client *Client
}

// NewEnricher creates the enrichment adapter.
func NewEnricher(client *Client) *Enricher {
	return &Enricher{client: client}
}

// EnrichContext asks the model for the shared clinical context. An empty
// result is returned as "", not an error; the caller decides whether a
// persisted fallback can substitute.
func (e *Enricher) EnrichContext(ctx context.Context, rec record.PatientRecord) (string, error) {
	prompt := fmt.Sprintf(
		"You are preparing shared clinical context for an imaging protocol pipeline.\n"+
			"Summarize the relevant history, risk factors and contrast considerations for this patient.\n"+
			"Return ONLY JSON with a single key 'enhanced_context' holding the summary text.\n\n"+
			"Patient data:\n%s\n", mustJSON(rec))

	raw, err := e.client.Complete(ctx, e.client.model, prompt)
	if err != nil {
		return "", fmt.Errorf("enrichment call: %w", err)
	}

	res := extract.Extract(raw)
	if res.Parsed {
		if text, ok := res.Object["enhanced_context"].(string); ok && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text), nil
		}
	}
	// No usable object; fall back to the raw text if the model answered in prose.
	return strings.TrimSpace(raw), nil
}

// Generator implements the generation port: one structured protocol
// recommendation per loop iteration.
type Generator struct {
	client *Client
}

// NewGenerator creates the generation adapter.
func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

// Generate produces the iteration's candidate. Malformed model output is
// absorbed by extraction: the loop receives the safe default as degraded
// data rather than an error. Transport failures do propagate.
func (g *Generator) Generate(ctx context.Context, rec record.PatientRecord, sharedContext string, feedback *review.Feedback) (pipeline.Candidate, error) {
	var sb strings.Builder
	sb.WriteString("You are an imaging protocol recommendation agent.\n")
	sb.WriteString("Given patient data and clinical context, propose a CT protocol recommendation.\n")
	sb.WriteString("Return ONLY JSON with keys: protocol, contrast, rationale, precautions.\n\n")
	fmt.Fprintf(&sb, "Patient data:\n%s\n\n", mustJSON(rec))
	fmt.Fprintf(&sb, "Clinical context:\n%s\n\n", sharedContext)
	if feedback != nil {
		fmt.Fprintf(&sb, "Reviewer feedback from the previous iteration (address every issue):\n%s\n\n", mustJSON(feedback))
	}

	raw, err := g.client.Complete(ctx, g.client.model, sb.String())
	if err != nil {
		return nil, fmt.Errorf("generation call: %w", err)
	}

	res := extract.Extract(raw)
	if !res.Parsed {
		slog.Warn("generator: model output not parseable, using safe default",
			"strategy", res.Strategy)
	}
	return pipeline.Candidate(res.Object), nil
}

// Reviewer implements the raw review-call port.
type Reviewer struct {
	client *Client
}

// NewReviewer creates the review-call adapter.
func NewReviewer(client *Client) *Reviewer {
	return &Reviewer{client: client}
}

// ReviewCall issues the review prompt and returns the model's free text.
func (r *Reviewer) ReviewCall(ctx context.Context, prompt string) (string, error) {
	raw, err := r.client.Complete(ctx, r.client.model, prompt)
	if err != nil {
		return "", fmt.Errorf("review call: %w", err)
	}
	return raw, nil
}

// Scorer implements the scoring port: a best-effort model rating of a
// candidate. The raw text is returned as-is; confidence parsing is the
// caller's concern.
type Scorer struct {
	client *Client
}

// NewScorer creates the scoring adapter.
func NewScorer(client *Client) *Scorer {
	return &Scorer{client: client}
}

// Score asks the model to rate the candidate against the record and tool
// output.
func (s *Scorer) Score(ctx context.Context, candidate pipeline.Candidate, rec record.PatientRecord, tools map[string]review.ToolOutput) (string, error) {
	prompt := fmt.Sprintf(
		"You are evaluating the quality of an imaging protocol recommendation from another agent.\n"+
			"Given patient data and rule tool results, assess the correctness and appropriateness of the candidate.\n"+
			"Return ONLY JSON with a single key 'candidate_confidence' between 0 and 1.\n\n"+
			"Patient data:\n%s\n\n"+
			"Tool output:\n%s\n\n"+
			"Candidate:\n%s\n\n"+
			"Example:\n{\"candidate_confidence\": 0.87}",
		mustJSON(rec), mustJSON(tools), mustJSON(candidate))

	raw, err := s.client.Complete(ctx, s.client.scoreModel, prompt)
	if err != nil {
		return "", fmt.Errorf("scoring call: %w", err)
	}
	return raw, nil
}

// mustJSON renders v as indented JSON for prompt embedding. Prompt building
// never fails on marshal: unmarshalable values degrade to a fmt rendering.
func mustJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
