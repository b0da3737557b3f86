// Package record defines patient records and canonical field normalization.
package record

import "strings"

// PatientRecord maps canonical field names to their values. Values are opaque
// to the normalizer; only keys are rewritten.
type PatientRecord map[string]any

// fieldAliases maps known synonym spellings (already lower-cased) to the one
// canonical field name. Unknown keys pass through lower-cased and trimmed.
var fieldAliases = map[string]string{
	// potassium
	"potassium_meq_l": "potassium_mmol_l",
	"k_meq_l":         "potassium_mmol_l",
	"k_mmol_l":        "potassium_mmol_l",
	"potassium":       "potassium_mmol_l",
	"serum_potassium": "potassium_mmol_l",

	// bun
	"bun":        "bun_mg_dl",
	"bun_mmol_l": "bun_mg_dl",
	"bun_mgdl":   "bun_mg_dl",

	// creatinine
	"creatinine":       "creatinine_mg_dl",
	"creatinine_mgdl":  "creatinine_mg_dl",
	"serum_creatinine": "creatinine_mg_dl",
	"cr":               "creatinine_mg_dl",

	// egfr
	"gfr":           "egfr_ckd_epi",
	"egfr":          "egfr_ckd_epi",
	"estimated_gfr": "egfr_ckd_epi",

	// bmi
	"body_mass_index": "bmi",
	"body_mass_idx":   "bmi",
}

// CanonicalField returns the canonical name for a raw field key. The key is
// lower-cased and trimmed before alias lookup; an unmapped key is returned in
// that cleaned form.
func CanonicalField(key string) string {
	cleaned := strings.ToLower(strings.TrimSpace(key))
	if canonical, ok := fieldAliases[cleaned]; ok {
		return canonical
	}
	return cleaned
}

// Normalize rewrites every key of the input record to its canonical field
// name. It never fails and is idempotent. When two input keys normalize to the
// same canonical name, the later one wins; this overwrite is deliberate.
func Normalize(raw map[string]any) PatientRecord {
	normalized := make(PatientRecord, len(raw))
	for key, value := range raw {
		normalized[CanonicalField(key)] = value
	}
	return normalized
}

// Aliases returns a copy of the alias table for introspection and tests.
func Aliases() map[string]string {
	out := make(map[string]string, len(fieldAliases))
	for k, v := range fieldAliases {
		out[k] = v
	}
	return out
}
