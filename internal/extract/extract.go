// Package extract recovers one JSON object from free-form model output.
//
// Generation services routinely wrap valid JSON in commentary, code fences,
// trailing commas and embedded newlines. Each repair strategy below targets
// one of those corruption modes; Extract applies them in order and takes the
// first success. When nothing parses, the caller receives a fixed, schema-valid
// safe default instead of an error, so downstream consumers never branch on
// absence.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Strategy is one named, pure repair attempt. It either yields a decoded
// object or reports failure; it never panics and never mutates shared state.
type Strategy struct {
	Name  string
	Apply func(text string) (map[string]any, bool)
}

// Strategies is the ordered repair chain. Order matters: cheaper, more
// targeted repairs run before the general-purpose library repair.
var Strategies = []Strategy{
	{Name: "direct", Apply: directParse},
	{Name: "brace_span", Apply: braceSpan},
	{Name: "trailing_commas", Apply: trailingCommas},
	{Name: "flatten_lines", Apply: flattenLines},
	{Name: "balanced_scan", Apply: balancedScan},
	{Name: "repair_library", Apply: repairLibrary},
}

// FallbackStrategy names the outcome when every repair strategy failed.
const FallbackStrategy = "safe_default"

// Result reports what Extract recovered and how.
type Result struct {
	Object   map[string]any
	Strategy string
	Parsed   bool
}

// Extract recovers one JSON object from text. It never returns a nil object
// and never propagates a parse error: on irrecoverable input the object is
// SafeDefault() and Parsed is false.
func Extract(text string) Result {
	stripped := stripFences(text)
	for _, s := range Strategies {
		if obj, ok := s.Apply(stripped); ok {
			return Result{Object: obj, Strategy: s.Name, Parsed: true}
		}
	}
	return Result{Object: SafeDefault(), Strategy: FallbackStrategy, Parsed: false}
}

// SafeDefault returns the fixed failure object: neutral confidence plus an
// explicit flag that parsing did not succeed.
func SafeDefault() map[string]any {
	return map[string]any{
		"confidence": 0.5,
		"feedback":   "JSON parsing error in review",
		"approved":   false,
	}
}

var trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)

// stripFences removes a leading/trailing markdown code fence, optionally
// tagged "json".
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func parseObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// spanCandidate returns the greedy first-{ to last-} span of the text.
func spanCandidate(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

func directParse(text string) (map[string]any, bool) {
	return parseObject(text)
}

func braceSpan(text string) (map[string]any, bool) {
	candidate, ok := spanCandidate(text)
	if !ok {
		return nil, false
	}
	return parseObject(candidate)
}

func trailingCommas(text string) (map[string]any, bool) {
	candidate, ok := spanCandidate(text)
	if !ok {
		return nil, false
	}
	return parseObject(trailingCommaRe.ReplaceAllString(candidate, "$1"))
}

func flattenLines(text string) (map[string]any, bool) {
	candidate, ok := spanCandidate(text)
	if !ok {
		return nil, false
	}
	flat := strings.ReplaceAll(candidate, "\n", " ")
	flat = strings.ReplaceAll(flat, "\r", "")
	return parseObject(trailingCommaRe.ReplaceAllString(flat, "$1"))
}

// balancedScan walks from the first '{' counting nesting depth and treats the
// span where the counter returns to zero as the candidate object.
func balancedScan(text string) (map[string]any, bool) {
	start := strings.Index(text, "{")
	if start < 0 {
		return nil, false
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				partial := trailingCommaRe.ReplaceAllString(text[start:i+1], "$1")
				return parseObject(partial)
			}
		}
	}
	return nil, false
}

// repairLibrary hands the candidate span to the jsonrepair library as the
// last resort before the safe default.
func repairLibrary(text string) (map[string]any, bool) {
	candidate, ok := spanCandidate(text)
	if !ok {
		candidate = text
	}
	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return nil, false
	}
	return parseObject(repaired)
}
