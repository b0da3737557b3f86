package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/imagingworks/protoloop/internal/domain/fhir"
	"github.com/imagingworks/protoloop/internal/domain/pipeline"
	"github.com/imagingworks/protoloop/internal/extract"
)

const convertPrompt = `Convert the following JSON into an OpenFHIR-compatible Bundle (R4) in JSON format.
- Use CarePlan for "recommendations" and "rationale".
- Use PlanDefinition for each protocol selection.
- Wrap everything in a Bundle (type=collection).
- Ensure resourceType, id, and required FHIR fields are included.
- Return only the JSON for the Bundle (no commentary).

Input JSON:
%s`

// Converter turns a final candidate into a validated FHIR bundle via Gemini.
type Converter struct {
	client *Client
}

func NewConverter(client *Client) *Converter {
	return &Converter{client: client}
}

// Convert prompts the model, extracts the JSON object from its response, and
// validates the bundle envelope before returning it.
func (c *Converter) Convert(ctx context.Context, final pipeline.Candidate) (*fhir.Bundle, error) {
	input, err := json.MarshalIndent(final, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode final output: %w", err)
	}

	raw, err := c.client.Generate(ctx, fmt.Sprintf(convertPrompt, input))
	if err != nil {
		return nil, fmt.Errorf("fhir conversion call: %w", err)
	}

	res := extract.Extract(raw)
	if !res.Parsed {
		return nil, fmt.Errorf("%w: no JSON object in model output", fhir.ErrInvalidBundle)
	}

	data, err := json.Marshal(res.Object)
	if err != nil {
		return nil, fmt.Errorf("re-encode bundle: %w", err)
	}
	var bundle fhir.Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("%w: %v", fhir.ErrInvalidBundle, err)
	}
	if err := bundle.Validate(); err != nil {
		return nil, err
	}
	return &bundle, nil
}
