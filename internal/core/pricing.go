package core

import "fmt"

const (
	MinDurationMonths = 1
	MaxDurationMonths = 12
)

// AppliedFactor records one factor's contribution to a premium, in the order
// it was applied. Persisted on the quote for audit reproducibility.
type AppliedFactor struct {
	Kind       FactorKind `json:"kind"`
	Key        string     `json:"key"`
	Multiplier float64    `json:"multiplier,omitempty"`
	Addition   float64    `json:"addition,omitempty"`
	// Effect is the signed monthly delta this factor contributed.
	Effect float64 `json:"effect"`
}

type PremiumResult struct {
	BasePremium    float64         `json:"base_premium"`
	MonthlyPremium float64         `json:"monthly_premium"`
	TotalPremium   float64         `json:"total_premium"`
	Currency       string          `json:"currency"`
	Applied        []AppliedFactor `json:"applied_factors,omitempty"`
}

// CalculatePremium prices a package for a risk profile over a duration.
// Pure function: identical inputs and factor order produce identical output.
//
// Flat packages start from the package rate and fold in the applicable
// factors in resolver order. Percentage packages price purely off the sum
// insured (rate percent per year, divided into months) and skip the factor
// chain; an optional minimum annual premium clamps the result from below.
func CalculatePremium(pkg Package, factors []RatingFactor, risk RiskProfile, durationMonths int) (PremiumResult, error) {
	if durationMonths < MinDurationMonths || durationMonths > MaxDurationMonths {
		return PremiumResult{}, fmt.Errorf("%w: duration must be between %d and %d months",
			ErrValidation, MinDurationMonths, MaxDurationMonths)
	}

	res := PremiumResult{
		BasePremium: pkg.Rate,
		Currency:    pkg.Currency,
	}

	switch pkg.RateType {
	case RateTypePercentage:
		if risk.SumInsured <= 0 {
			return PremiumResult{}, fmt.Errorf("%w: sum insured is required for percentage-rated packages",
				ErrValidation)
		}
		monthly := (risk.SumInsured * pkg.Rate / 100) / 12
		if pkg.MinimumPremium > 0 && monthly*12 < pkg.MinimumPremium {
			monthly = pkg.MinimumPremium / 12
		}
		res.MonthlyPremium = monthly

	default:
		monthly := pkg.Rate
		for _, f := range factors {
			r, ok := f.rule()
			if !ok || !r.matches(risk) {
				continue
			}
			next := r.apply(monthly, risk)
			res.Applied = append(res.Applied, AppliedFactor{
				Kind:       f.Kind,
				Key:        f.Key,
				Multiplier: f.Multiplier,
				Addition:   f.Addition,
				Effect:     next - monthly,
			})
			monthly = next
		}
		res.MonthlyPremium = monthly
	}

	// Round the monthly figure first so that the stored invariant
	// total == round2(monthly * duration) holds exactly.
	res.MonthlyPremium = round2(res.MonthlyPremium)
	res.TotalPremium = round2(res.MonthlyPremium * float64(durationMonths))
	return res, nil
}

func round2(x float64) float64 {
	if x < 0 {
		return -round2(-x)
	}
	return float64(int64(x*100+0.5)) / 100.0
}
