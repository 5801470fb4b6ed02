package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

type FactorKind string

const (
	FactorAgeBand    FactorKind = "age_band"
	FactorFamilySize FactorKind = "family_size"
	FactorCoverType  FactorKind = "cover_type"
)

// RiskProfile is the typed risk-attribute set the calculator prices against.
type RiskProfile struct {
	Age        int     `json:"age"`
	FamilySize int     `json:"family_size"`
	CoverType  string  `json:"cover_type,omitempty"`
	SumInsured float64 `json:"sum_insured,omitempty"`
}

// RatingFactor is a conditional adjustment rule scoped to a product.
// Exactly one of Multiplier/Addition is meaningful per rule; Multiplier wins
// when both are set. Position is the definition order for the product, which
// fixes both evaluation order and the audit trail.
type RatingFactor struct {
	ID         string     `json:"id"`
	ProductID  string     `json:"product_id"`
	Kind       FactorKind `json:"kind"`
	Key        string     `json:"key"`
	Multiplier float64    `json:"multiplier,omitempty"`
	Addition   float64    `json:"addition,omitempty"`
	Position   int        `json:"position"`
}

type FactorRepo interface {
	// ListByProduct returns the product's factors in definition order.
	ListByProduct(ctx context.Context, productID string) ([]RatingFactor, error)
	Upsert(ctx context.Context, f RatingFactor) error
}

func (f RatingFactor) Validate() error {
	if f.ProductID == "" {
		return fmt.Errorf("%w: missing product ID", ErrValidation)
	}
	if f.Multiplier < 0 {
		return fmt.Errorf("%w: multiplier must be >= 0", ErrValidation)
	}
	if f.Multiplier == 0 && f.Addition == 0 {
		return fmt.Errorf("%w: factor carries no effect", ErrValidation)
	}
	return nil
}

// factorRule is the closed set of match/apply behaviors, one per supported
// kind. Stored rows with a kind outside this set never match, so legacy data
// degrades to a no-op instead of mispricing.
type factorRule interface {
	matches(risk RiskProfile) bool
	apply(monthly float64, risk RiskProfile) float64
}

func (f RatingFactor) rule() (factorRule, bool) {
	switch f.Kind {
	case FactorAgeBand:
		min, max, ok := parseAgeBand(f.Key)
		if !ok {
			return nil, false
		}
		return ageBandRule{factor: f, min: min, max: max}, true
	case FactorFamilySize:
		return familySizeRule{factor: f}, true
	case FactorCoverType:
		return coverTypeRule{factor: f}, true
	default:
		return nil, false
	}
}

// ageBandRule matches when age falls inside the inclusive band encoded by
// the factor key, e.g. "31-45".
type ageBandRule struct {
	factor   RatingFactor
	min, max int
}

func (r ageBandRule) matches(risk RiskProfile) bool {
	return risk.Age >= r.min && risk.Age <= r.max
}

func (r ageBandRule) apply(monthly float64, _ RiskProfile) float64 {
	if r.factor.Multiplier > 0 {
		return monthly * r.factor.Multiplier
	}
	return monthly + r.factor.Addition
}

// familySizeRule matches households larger than two; the additive effect
// scales with every member past the second.
type familySizeRule struct {
	factor RatingFactor
}

func (r familySizeRule) matches(risk RiskProfile) bool {
	return risk.FamilySize > 2
}

func (r familySizeRule) apply(monthly float64, risk RiskProfile) float64 {
	if r.factor.Multiplier > 0 {
		return monthly * r.factor.Multiplier
	}
	return monthly + r.factor.Addition*float64(risk.FamilySize-2)
}

type coverTypeRule struct {
	factor RatingFactor
}

func (r coverTypeRule) matches(risk RiskProfile) bool {
	return risk.CoverType != "" && risk.CoverType == r.factor.Key
}

func (r coverTypeRule) apply(monthly float64, _ RiskProfile) float64 {
	if r.factor.Multiplier > 0 {
		return monthly * r.factor.Multiplier
	}
	return monthly + r.factor.Addition
}

// ApplicableFactors filters the product's factors down to those whose match
// predicate holds for the risk profile, preserving definition order.
func ApplicableFactors(factors []RatingFactor, risk RiskProfile) []RatingFactor {
	var out []RatingFactor
	for _, f := range factors {
		r, ok := f.rule()
		if !ok {
			continue
		}
		if r.matches(risk) {
			out = append(out, f)
		}
	}
	return out
}

func parseAgeBand(key string) (min, max int, ok bool) {
	lo, hi, found := strings.Cut(key, "-")
	if !found {
		return 0, 0, false
	}
	min, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return 0, 0, false
	}
	max, err = strconv.Atoi(strings.TrimSpace(hi))
	if err != nil || max < min {
		return 0, 0, false
	}
	return min, max, true
}
