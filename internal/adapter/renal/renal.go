// Package renal implements the deterministic renal-function rule evaluator.
// It inspects the normalized record for the labs that gate contrast
// administration and emits one check per lab.
package renal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/imagingworks/protoloop/internal/domain/record"
	"github.com/imagingworks/protoloop/internal/domain/review"
	"github.com/imagingworks/protoloop/internal/port/cache"
)

const toolName = "renal"

// Contrast safety cutoffs. An eGFR below 30 mL/min or a creatinine above
// 2.0 mg/dL flags the record for nephrology-aware protocol selection.
const (
	egfrCutoff       = 30.0
	creatinineCutoff = 2.0
)

type labRule struct {
	field    string
	priority string
	flagged  func(v float64) bool
	detail   func(v float64) string
}

var rules = []labRule{
	{
		field:    "egfr_ckd_epi",
		priority: review.PriorityRequired,
		flagged:  func(v float64) bool { return v < egfrCutoff },
		detail:   func(v float64) string { return fmt.Sprintf("eGFR %.1f below %.0f mL/min", v, egfrCutoff) },
	},
	{
		field:    "creatinine_mg_dl",
		priority: review.PriorityRequired,
		flagged:  func(v float64) bool { return v > creatinineCutoff },
		detail:   func(v float64) string { return fmt.Sprintf("creatinine %.2f above %.1f mg/dL", v, creatinineCutoff) },
	},
	{field: "bun_mg_dl", priority: review.PriorityOptional},
	{field: "potassium_mmol_l", priority: review.PriorityOptional},
	{field: "bmi", priority: review.PriorityOptional},
}

// Evaluator applies the renal lab rules to a patient record.
type Evaluator struct{}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

func (e *Evaluator) Name() string { return toolName }

// Evaluate runs every lab rule against the record. Missing required labs
// surface as missing checks rather than errors so the review step can keep
// going with partial data.
func (e *Evaluator) Evaluate(_ context.Context, rec record.PatientRecord) (review.ToolOutput, error) {
	out := review.ToolOutput{Tool: toolName}
	for _, rule := range rules {
		out.Checks = append(out.Checks, applyRule(rule, rec))
	}
	return out, nil
}

func applyRule(rule labRule, rec record.PatientRecord) review.Check {
	check := review.Check{Name: rule.field, Priority: rule.priority}

	raw, present := rec[rule.field]
	if !present {
		check.Status = review.StatusMissing
		return check
	}
	v, ok := asFloat(raw)
	if !ok {
		check.Status = review.StatusMissing
		check.Detail = fmt.Sprintf("non-numeric value %v", raw)
		return check
	}

	if rule.flagged != nil && rule.flagged(v) {
		check.Status = review.StatusFlagged
		check.Detail = rule.detail(v)
		return check
	}
	check.Status = review.StatusOK
	return check
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// CachedEvaluator wraps an Evaluator with a fingerprint-keyed cache so
// repeated loops over the same record skip re-evaluation.
type CachedEvaluator struct {
	inner ruleEvaluator
	cache cache.Cache
	ttl   time.Duration
}

type ruleEvaluator interface {
	Evaluate(ctx context.Context, rec record.PatientRecord) (review.ToolOutput, error)
	Name() string
}

func NewCachedEvaluator(inner ruleEvaluator, c cache.Cache, ttl time.Duration) *CachedEvaluator {
	return &CachedEvaluator{inner: inner, cache: c, ttl: ttl}
}

func (e *CachedEvaluator) Name() string { return e.inner.Name() }

func (e *CachedEvaluator) Evaluate(ctx context.Context, rec record.PatientRecord) (review.ToolOutput, error) {
	key := e.inner.Name() + ":" + Fingerprint(rec)

	if data, ok := e.cache.Get(ctx, key); ok {
		var out review.ToolOutput
		if err := json.Unmarshal(data, &out); err == nil {
			return out, nil
		}
	}

	out, err := e.inner.Evaluate(ctx, rec)
	if err != nil {
		return review.ToolOutput{}, err
	}
	if data, err := json.Marshal(out); err == nil {
		e.cache.Set(ctx, key, data, e.ttl)
	}
	return out, nil
}

// Fingerprint returns a stable digest of the record contents, independent of
// map iteration order.
func Fingerprint(rec record.PatientRecord) string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%v;", k, rec[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}
