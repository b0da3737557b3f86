package record

import (
	"reflect"
	"testing"
)

func TestNormalizeMapsKnownAliases(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"potassium meq", "Potassium_mEq_L", "potassium_mmol_l"},
		{"bare potassium", "potassium", "potassium_mmol_l"},
		{"serum creatinine", "Serum_Creatinine", "creatinine_mg_dl"},
		{"short creatinine", "CR", "creatinine_mg_dl"},
		{"gfr", "GFR", "egfr_ckd_epi"},
		{"estimated gfr", " estimated_gfr ", "egfr_ckd_epi"},
		{"bun", "BUN", "bun_mg_dl"},
		{"body mass index", "Body_Mass_Index", "bmi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(map[string]any{tt.in: 1.0})
			if _, ok := got[tt.want]; !ok {
				t.Fatalf("Normalize(%q) produced keys %v, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeUnknownKeysLowerTrimOnly(t *testing.T) {
	got := Normalize(map[string]any{"  Unknown_Field  ": "x"})
	if _, ok := got["unknown_field"]; !ok {
		t.Fatalf("expected unknown key lower-cased and trimmed, got %v", got)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	in := map[string]any{
		"Serum_Creatinine": 1.2,
		"GFR":              45.0,
		"note":             "stable",
	}
	once := Normalize(in)
	twice := Normalize(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("Normalize not idempotent: %v vs %v", once, twice)
	}
}

func TestNormalizeValuesUntouched(t *testing.T) {
	got := Normalize(map[string]any{"potassium": "4.1 mmol/L"})
	if got["potassium_mmol_l"] != "4.1 mmol/L" {
		t.Fatalf("value modified: %v", got["potassium_mmol_l"])
	}
}

func TestEveryAliasMapsToDocumentedCanonical(t *testing.T) {
	canonical := map[string]bool{
		"potassium_mmol_l": true,
		"bun_mg_dl":        true,
		"creatinine_mg_dl": true,
		"egfr_ckd_epi":     true,
		"bmi":              true,
	}
	for alias, target := range Aliases() {
		if !canonical[target] {
			t.Errorf("alias %q maps to undocumented canonical field %q", alias, target)
		}
		if CanonicalField(alias) != target {
			t.Errorf("CanonicalField(%q) = %q, want %q", alias, CanonicalField(alias), target)
		}
	}
}
