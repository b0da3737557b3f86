// Package plausibility cross-checks draft review feedback against the source
// record and tool output. Statements that cite numbers or lab fields with no
// support in the data are treated as likely hallucinated and each costs a
// fixed confidence reduction.
package plausibility

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/imagingworks/protoloop/internal/domain/record"
	"github.com/imagingworks/protoloop/internal/domain/review"
)

const (
	// reductionPerClaim is charged for each unsupported claim; the total is
	// capped so a rambling draft cannot zero out the confidence on its own.
	reductionPerClaim = 0.05
	maxReduction      = 0.30

	// numberTolerance absorbs rounding between a cited value and the record.
	numberTolerance = 0.051
)

var numberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// Analyzer implements the plausibility port with deterministic claim checking.
type Analyzer struct{}

func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze inspects every issue and recommendation statement in the draft.
// A statement makes a claim when it cites a numeric value or names a lab
// field; the claim is supported when the number or field appears in the
// record or in the tool output.
func (a *Analyzer) Analyze(_ context.Context, in review.PlausibilityInput) (review.Analysis, error) {
	known := knownValues(in.Record, in.Tools)

	var analysis review.Analysis
	unsupported := 0

	statements := make([]string, 0, len(in.Draft.Issues)+len(in.Draft.Recommendations))
	statements = append(statements, in.Draft.Issues...)
	statements = append(statements, in.Draft.Recommendations...)

	for _, stmt := range statements {
		finding, isClaim := checkStatement(stmt, in.Record, known)
		if !isClaim {
			continue
		}
		analysis.Findings = append(analysis.Findings, finding)
		if !finding.Supported {
			unsupported++
		}
	}

	reduction := float64(unsupported) * reductionPerClaim
	if reduction > maxReduction {
		reduction = maxReduction
	}
	analysis.Recommendation = review.Recommendation{ConfidenceReduction: reduction}
	if unsupported > 0 {
		analysis.Recommendation.Rationale = fmt.Sprintf("%d claim(s) not supported by record or tool output", unsupported)
	}
	return analysis, nil
}

// checkStatement classifies one statement. Cited numbers must match a value
// in the record or tool output; named fields must exist in the record.
func checkStatement(stmt string, rec record.PatientRecord, known []float64) (review.Finding, bool) {
	lower := strings.ToLower(stmt)

	for _, raw := range numberRe.FindAllString(stmt, -1) {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		finding := review.Finding{Statement: stmt, Claim: "cites value " + raw}
		finding.Supported = supportedNumber(v, known)
		return finding, true
	}

	for alias, canonical := range record.Aliases() {
		if !mentionsField(lower, alias) && !mentionsField(lower, canonical) {
			continue
		}
		_, present := rec[canonical]
		return review.Finding{
			Statement: stmt,
			Claim:     "references field " + canonical,
			Supported: present,
		}, true
	}

	return review.Finding{}, false
}

func mentionsField(stmt, field string) bool {
	// Aliases like "cr" are too short to match inside prose safely.
	if len(field) < 3 {
		return false
	}
	return strings.Contains(stmt, field) ||
		strings.Contains(stmt, strings.ReplaceAll(field, "_", " "))
}

func supportedNumber(v float64, known []float64) bool {
	for _, k := range known {
		d := v - k
		if d < 0 {
			d = -d
		}
		if d <= numberTolerance {
			return true
		}
	}
	return false
}

// knownValues collects every numeric value the draft could legitimately cite:
// record fields plus numbers inside tool check details.
func knownValues(rec record.PatientRecord, tools map[string]review.ToolOutput) []float64 {
	var vals []float64
	for _, v := range rec {
		switch n := v.(type) {
		case float64:
			vals = append(vals, n)
		case float32:
			vals = append(vals, float64(n))
		case int:
			vals = append(vals, float64(n))
		case int64:
			vals = append(vals, float64(n))
		}
	}
	for _, out := range tools {
		for _, c := range out.Checks {
			for _, raw := range numberRe.FindAllString(c.Detail, -1) {
				if f, err := strconv.ParseFloat(raw, 64); err == nil {
					vals = append(vals, f)
				}
			}
		}
	}
	return vals
}
