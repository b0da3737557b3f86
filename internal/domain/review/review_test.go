package review

import (
	"reflect"
	"testing"
)

func TestCoerceWellFormed(t *testing.T) {
	got := Coerce(map[string]any{
		"issues":          []any{"a", "b"},
		"recommendations": []any{"c"},
		"confidence":      0.8,
	})
	want := Feedback{
		Issues:          []string{"a", "b"},
		Recommendations: []string{"c"},
		Confidence:      0.8,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Coerce = %+v, want %+v", got, want)
	}
}

func TestCoerceScalarBecomesSequence(t *testing.T) {
	got := Coerce(map[string]any{
		"issues":          "missing contrast check",
		"recommendations": 42,
		"confidence":      "0.6",
	})
	if !reflect.DeepEqual(got.Issues, []string{"missing contrast check"}) {
		t.Errorf("issues = %v", got.Issues)
	}
	if !reflect.DeepEqual(got.Recommendations, []string{"42"}) {
		t.Errorf("recommendations = %v", got.Recommendations)
	}
	if got.Confidence != 0.6 {
		t.Errorf("confidence = %v, want 0.6", got.Confidence)
	}
}

func TestCoerceDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]any
	}{
		{"empty object", map[string]any{}},
		{"non-numeric confidence", map[string]any{"confidence": "high"}},
		{"nil confidence", map[string]any{"confidence": nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Coerce(tt.in)
			if got.Confidence != DefaultConfidence {
				t.Errorf("confidence = %v, want %v", got.Confidence, DefaultConfidence)
			}
			if got.Issues == nil || got.Recommendations == nil {
				t.Errorf("sequences must be non-nil: %+v", got)
			}
		})
	}
}

func TestCoerceClampsConfidence(t *testing.T) {
	if got := Coerce(map[string]any{"confidence": 3.2}); got.Confidence != 1 {
		t.Errorf("confidence = %v, want 1", got.Confidence)
	}
	if got := Coerce(map[string]any{"confidence": -0.4}); got.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", got.Confidence)
	}
}

func TestFilterChecksDropsOptionalMissing(t *testing.T) {
	out := ToolOutput{
		Tool: "renal",
		Checks: []Check{
			{Name: "egfr_ckd_epi", Status: StatusOK, Priority: PriorityRequired},
			{Name: "bmi", Status: StatusMissing, Priority: PriorityOptional},
			{Name: "creatinine_mg_dl", Status: StatusMissing, Priority: PriorityRequired},
			{Name: "potassium_mmol_l", Status: StatusFlagged, Priority: PriorityOptional},
		},
	}
	filtered := out.FilterChecks()
	if len(filtered.Checks) != 3 {
		t.Fatalf("got %d checks, want 3: %+v", len(filtered.Checks), filtered.Checks)
	}
	for _, c := range filtered.Checks {
		if c.Status == StatusMissing && c.Priority == PriorityOptional {
			t.Errorf("optional+missing check survived: %+v", c)
		}
	}
	// the input is not mutated
	if len(out.Checks) != 4 {
		t.Fatalf("input mutated: %+v", out.Checks)
	}
}
