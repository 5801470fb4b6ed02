package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func flatPackage(rate float64) Package {
	return Package{
		ID:        "pkg-flat",
		ProductID: "PA_STANDARD",
		Name:      "Flat",
		Rate:      rate,
		RateType:  RateTypeFlat,
		Currency:  "USD",
	}
}

func TestCalculatePremiumFlatWithAgeBand(t *testing.T) {
	factors := []RatingFactor{
		{ID: "f1", ProductID: "PA_STANDARD", Kind: FactorAgeBand, Key: "46-60", Multiplier: 1.5, Position: 1},
	}
	risk := RiskProfile{Age: 50}

	res, err := CalculatePremium(flatPackage(1.00), factors, risk, 12)
	require.NoError(t, err)

	require.Equal(t, 1.50, res.MonthlyPremium)
	require.Equal(t, 18.00, res.TotalPremium)
	require.Equal(t, 1.00, res.BasePremium)
	require.Len(t, res.Applied, 1)
	require.Equal(t, 0.50, res.Applied[0].Effect)
}

func TestCalculatePremiumPercentageFloor(t *testing.T) {
	pkg := Package{
		ID:             "pkg-pct",
		ProductID:      "HOME",
		Rate:           0.75,
		RateType:       RateTypePercentage,
		Currency:       "USD",
		MinimumPremium: 25.00,
	}

	// 1000 * 0.0075 = 7.50/yr, below the 25.00 annual floor.
	res, err := CalculatePremium(pkg, nil, RiskProfile{Age: 30, SumInsured: 1000}, 12)
	require.NoError(t, err)
	require.Equal(t, 2.08, res.MonthlyPremium) // 25.00/12 rounded
	require.Equal(t, 24.96, res.TotalPremium)  // rounded monthly times duration
	require.Empty(t, res.Applied)
}

func TestCalculatePremiumPercentageAboveFloor(t *testing.T) {
	pkg := Package{
		ID:             "pkg-pct",
		ProductID:      "HOME",
		Rate:           0.75,
		RateType:       RateTypePercentage,
		Currency:       "USD",
		MinimumPremium: 25.00,
	}

	// 100000 * 0.0075 = 750/yr, well above the floor.
	res, err := CalculatePremium(pkg, nil, RiskProfile{Age: 30, SumInsured: 100000}, 6)
	require.NoError(t, err)
	require.Equal(t, 62.50, res.MonthlyPremium)
	require.Equal(t, 375.00, res.TotalPremium)
}

func TestCalculatePremiumPercentageFactorsIgnored(t *testing.T) {
	pkg := Package{
		ID:        "pkg-pct",
		ProductID: "HOME",
		Rate:      1.2,
		RateType:  RateTypePercentage,
		Currency:  "USD",
	}
	factors := []RatingFactor{
		{ID: "f1", ProductID: "HOME", Kind: FactorAgeBand, Key: "18-99", Multiplier: 2.0, Position: 1},
	}

	res, err := CalculatePremium(pkg, factors, RiskProfile{Age: 40, SumInsured: 12000}, 12)
	require.NoError(t, err)
	require.Equal(t, 12.00, res.MonthlyPremium)
	require.Empty(t, res.Applied, "percentage pricing skips the factor chain")
}

func TestCalculatePremiumPercentageRequiresSumInsured(t *testing.T) {
	pkg := Package{ID: "pkg-pct", ProductID: "HOME", Rate: 0.5, RateType: RateTypePercentage, Currency: "USD"}

	_, err := CalculatePremium(pkg, nil, RiskProfile{Age: 30}, 12)
	require.ErrorIs(t, err, ErrValidation)
}

func TestCalculatePremiumDurationBounds(t *testing.T) {
	for _, months := range []int{0, -1, 13} {
		_, err := CalculatePremium(flatPackage(1.00), nil, RiskProfile{Age: 30}, months)
		require.ErrorIs(t, err, ErrValidation, "duration %d", months)
	}

	for _, months := range []int{1, 12} {
		_, err := CalculatePremium(flatPackage(1.00), nil, RiskProfile{Age: 30}, months)
		require.NoError(t, err, "duration %d", months)
	}
}

func TestCalculatePremiumFactorOrder(t *testing.T) {
	// Multiply then add differs from add then multiply; resolver order rules.
	multiply := RatingFactor{ID: "m", ProductID: "P", Kind: FactorAgeBand, Key: "18-99", Multiplier: 2.0, Position: 1}
	add := RatingFactor{ID: "a", ProductID: "P", Kind: FactorCoverType, Key: "PLUS", Addition: 3.0, Position: 2}
	risk := RiskProfile{Age: 30, CoverType: "PLUS"}

	res1, err := CalculatePremium(flatPackage(10.00), []RatingFactor{multiply, add}, risk, 1)
	require.NoError(t, err)
	require.Equal(t, 23.00, res1.MonthlyPremium) // 10*2 + 3

	res2, err := CalculatePremium(flatPackage(10.00), []RatingFactor{add, multiply}, risk, 1)
	require.NoError(t, err)
	require.Equal(t, 26.00, res2.MonthlyPremium) // (10+3)*2
}

func TestCalculatePremiumFamilySizeScaling(t *testing.T) {
	factors := []RatingFactor{
		{ID: "f1", ProductID: "FAM", Kind: FactorFamilySize, Key: "per_extra_member", Addition: 0.50, Position: 1},
	}

	// Five members: three past the second, 3 * 0.50 added.
	res, err := CalculatePremium(flatPackage(2.00), factors, RiskProfile{Age: 35, FamilySize: 5}, 1)
	require.NoError(t, err)
	require.Equal(t, 3.50, res.MonthlyPremium)

	// Two members: the factor does not match at all.
	res, err = CalculatePremium(flatPackage(2.00), factors, RiskProfile{Age: 35, FamilySize: 2}, 1)
	require.NoError(t, err)
	require.Equal(t, 2.00, res.MonthlyPremium)
	require.Empty(t, res.Applied)
}

func TestCalculatePremiumDeterministic(t *testing.T) {
	factors := []RatingFactor{
		{ID: "f1", ProductID: "P", Kind: FactorAgeBand, Key: "31-45", Multiplier: 1.2, Position: 1},
		{ID: "f2", ProductID: "P", Kind: FactorFamilySize, Key: "x", Addition: 0.75, Position: 2},
	}
	risk := RiskProfile{Age: 33, FamilySize: 4}

	first, err := CalculatePremium(flatPackage(5.00), factors, risk, 7)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := CalculatePremium(flatPackage(5.00), factors, risk, 7)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestCalculatePremiumTotalInvariant(t *testing.T) {
	// The stored total must always equal round2(stored monthly * duration).
	factors := []RatingFactor{
		{ID: "f1", ProductID: "P", Kind: FactorAgeBand, Key: "18-99", Multiplier: 1.337, Position: 1},
	}

	for months := 1; months <= 12; months++ {
		res, err := CalculatePremium(flatPackage(7.77), factors, RiskProfile{Age: 44}, months)
		require.NoError(t, err)
		require.Equal(t, round2(res.MonthlyPremium*float64(months)), res.TotalPremium, "duration %d", months)
	}
}
