package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAgeBand(t *testing.T) {
	tests := []struct {
		key      string
		min, max int
		ok       bool
	}{
		{"31-45", 31, 45, true},
		{"0-17", 0, 17, true},
		{" 18 - 65 ", 18, 65, true},
		{"45-31", 0, 0, false}, // inverted
		{"31", 0, 0, false},
		{"a-b", 0, 0, false},
		{"", 0, 0, false},
	}

	for _, tt := range tests {
		min, max, ok := parseAgeBand(tt.key)
		require.Equal(t, tt.ok, ok, "key %q", tt.key)
		if tt.ok {
			require.Equal(t, tt.min, min, "key %q", tt.key)
			require.Equal(t, tt.max, max, "key %q", tt.key)
		}
	}
}

func TestApplicableFactorsAgeBandInclusive(t *testing.T) {
	factors := []RatingFactor{
		{ID: "f1", ProductID: "P", Kind: FactorAgeBand, Key: "31-45", Multiplier: 1.2, Position: 1},
	}

	for _, age := range []int{31, 38, 45} {
		got := ApplicableFactors(factors, RiskProfile{Age: age})
		require.Len(t, got, 1, "age %d is inside the band", age)
	}
	for _, age := range []int{30, 46} {
		got := ApplicableFactors(factors, RiskProfile{Age: age})
		require.Empty(t, got, "age %d is outside the band", age)
	}
}

func TestApplicableFactorsFamilySize(t *testing.T) {
	factors := []RatingFactor{
		{ID: "f1", ProductID: "P", Kind: FactorFamilySize, Key: "x", Addition: 0.5, Position: 1},
	}

	require.Empty(t, ApplicableFactors(factors, RiskProfile{FamilySize: 2}))
	require.Len(t, ApplicableFactors(factors, RiskProfile{FamilySize: 3}), 1)
}

func TestApplicableFactorsCoverType(t *testing.T) {
	factors := []RatingFactor{
		{ID: "f1", ProductID: "P", Kind: FactorCoverType, Key: "PLUS", Multiplier: 1.25, Position: 1},
	}

	require.Len(t, ApplicableFactors(factors, RiskProfile{CoverType: "PLUS"}), 1)
	require.Empty(t, ApplicableFactors(factors, RiskProfile{CoverType: "BASIC"}))
	require.Empty(t, ApplicableFactors(factors, RiskProfile{}), "empty cover type never matches")
}

func TestApplicableFactorsUnknownKindNeverMatches(t *testing.T) {
	factors := []RatingFactor{
		{ID: "f1", ProductID: "P", Kind: "occupation_class", Key: "A", Multiplier: 3.0, Position: 1},
		{ID: "f2", ProductID: "P", Kind: FactorAgeBand, Key: "18-65", Multiplier: 1.1, Position: 2},
	}

	got := ApplicableFactors(factors, RiskProfile{Age: 40})
	require.Len(t, got, 1, "legacy kinds degrade to a no-op")
	require.Equal(t, "f2", got[0].ID)
}

func TestApplicableFactorsMalformedBandSkipped(t *testing.T) {
	factors := []RatingFactor{
		{ID: "f1", ProductID: "P", Kind: FactorAgeBand, Key: "not-a-band", Multiplier: 2.0, Position: 1},
	}
	require.Empty(t, ApplicableFactors(factors, RiskProfile{Age: 40}))
}

func TestApplicableFactorsPreservesOrder(t *testing.T) {
	factors := []RatingFactor{
		{ID: "f1", ProductID: "P", Kind: FactorAgeBand, Key: "18-99", Multiplier: 1.1, Position: 1},
		{ID: "f2", ProductID: "P", Kind: FactorCoverType, Key: "PLUS", Addition: 1.0, Position: 2},
		{ID: "f3", ProductID: "P", Kind: FactorFamilySize, Key: "x", Addition: 0.5, Position: 3},
	}
	risk := RiskProfile{Age: 40, FamilySize: 4, CoverType: "PLUS"}

	got := ApplicableFactors(factors, risk)
	require.Len(t, got, 3)
	require.Equal(t, "f1", got[0].ID)
	require.Equal(t, "f2", got[1].ID)
	require.Equal(t, "f3", got[2].ID)
}
