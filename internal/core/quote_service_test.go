package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubCatalog struct {
	packages map[string]Package // by ID
}

func (s *stubCatalog) ListPackages(_ context.Context, productID string) ([]Package, error) {
	var out []Package
	for _, p := range s.packages {
		if p.ProductID == productID {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, ErrProductNotFound
	}
	return out, nil
}

func (s *stubCatalog) GetPackage(_ context.Context, packageID string) (Package, error) {
	p, ok := s.packages[packageID]
	if !ok {
		return Package{}, ErrPackageNotFound
	}
	return p, nil
}

func (s *stubCatalog) UpsertPackage(_ context.Context, p Package) error {
	s.packages[p.ID] = p
	return nil
}

type stubFactors struct {
	byProduct map[string][]RatingFactor
}

func (s *stubFactors) ListByProduct(_ context.Context, productID string) ([]RatingFactor, error) {
	return s.byProduct[productID], nil
}

func (s *stubFactors) Upsert(_ context.Context, f RatingFactor) error {
	s.byProduct[f.ProductID] = append(s.byProduct[f.ProductID], f)
	return nil
}

type stubQuotes struct {
	created []Quote
}

func (s *stubQuotes) Create(_ context.Context, q Quote) error {
	s.created = append(s.created, q)
	return nil
}

func (s *stubQuotes) GetByNumber(_ context.Context, number string) (Quote, error) {
	for _, q := range s.created {
		if q.Number == number {
			return q, nil
		}
	}
	return Quote{}, ErrQuoteNotFound
}

func (s *stubQuotes) ExpireQuotes(_ context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func newQuoteTestService(packages []Package, factors []RatingFactor, now time.Time) (*quoteService, *stubQuotes) {
	catalog := &stubCatalog{packages: make(map[string]Package)}
	for _, p := range packages {
		catalog.packages[p.ID] = p
	}
	byProduct := make(map[string][]RatingFactor)
	for _, f := range factors {
		byProduct[f.ProductID] = append(byProduct[f.ProductID], f)
	}
	quotes := &stubQuotes{}
	return &quoteService{
		catalog: catalog,
		factors: &stubFactors{byProduct: byProduct},
		quotes:  quotes,
		clock:   func() time.Time { return now },
	}, quotes
}

func paStandardPackage() Package {
	return Package{
		ID:        "pkg-pa-standard",
		ProductID: "PA_STANDARD",
		Name:      "Personal Accident Standard",
		Rate:      1.00,
		RateType:  RateTypeFlat,
		Currency:  "USD",
		Limits:    map[string]string{LimitMinAge: "18", LimitMaxAge: "65"},
	}
}

func TestGenerateQuote(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	factors := []RatingFactor{
		{ID: "f1", ProductID: "PA_STANDARD", Kind: FactorAgeBand, Key: "46-60", Multiplier: 1.5, Position: 1},
	}
	svc, quotes := newQuoteTestService([]Package{paStandardPackage()}, factors, now)

	q, err := svc.Generate(context.Background(), QuoteInput{
		ProductID:      "PA_STANDARD",
		Risk:           RiskProfile{Age: 50},
		DurationMonths: 12,
	})
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(q.Number, "PASTANDA-QTE-"), "got %q", q.Number)
	require.Len(t, strings.TrimPrefix(q.Number, "PASTANDA-QTE-"), 8)
	require.NotEmpty(t, q.ID)
	require.Equal(t, "pkg-pa-standard", q.PackageID)
	require.Equal(t, QuoteStatusActive, q.Status)
	require.Equal(t, now, q.CreatedAt)
	require.Equal(t, now.Add(48*time.Hour), q.ExpiresAt)
	require.Equal(t, 1.50, q.MonthlyPremium)
	require.Equal(t, 18.00, q.TotalPremium)
	require.Equal(t, "USD", q.Currency)
	require.Len(t, q.Applied, 1)

	require.Len(t, quotes.created, 1)
	require.Equal(t, q, quotes.created[0])
}

func TestGenerateQuoteExplicitPackage(t *testing.T) {
	now := time.Now()
	other := paStandardPackage()
	other.ID = "pkg-pa-plus"
	other.Rate = 2.00
	svc, _ := newQuoteTestService([]Package{paStandardPackage(), other}, nil, now)

	q, err := svc.Generate(context.Background(), QuoteInput{
		ProductID:      "PA_STANDARD",
		PackageID:      "pkg-pa-plus",
		Risk:           RiskProfile{Age: 30},
		DurationMonths: 6,
	})
	require.NoError(t, err)
	require.Equal(t, "pkg-pa-plus", q.PackageID)
	require.Equal(t, 2.00, q.MonthlyPremium)
}

func TestGenerateQuoteAmbiguousPackage(t *testing.T) {
	now := time.Now()
	other := paStandardPackage()
	other.ID = "pkg-pa-plus"
	svc, quotes := newQuoteTestService([]Package{paStandardPackage(), other}, nil, now)

	_, err := svc.Generate(context.Background(), QuoteInput{
		ProductID:      "PA_STANDARD",
		Risk:           RiskProfile{Age: 30},
		DurationMonths: 6,
	})
	require.ErrorIs(t, err, ErrValidation)
	require.Empty(t, quotes.created)
}

func TestGenerateQuotePackageProductMismatch(t *testing.T) {
	foreign := paStandardPackage()
	foreign.ID = "pkg-home"
	foreign.ProductID = "HOME_CONTENTS"
	svc, _ := newQuoteTestService([]Package{paStandardPackage(), foreign}, nil, time.Now())

	_, err := svc.Generate(context.Background(), QuoteInput{
		ProductID:      "PA_STANDARD",
		PackageID:      "pkg-home",
		Risk:           RiskProfile{Age: 30},
		DurationMonths: 6,
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestGenerateQuoteUnknownProduct(t *testing.T) {
	svc, _ := newQuoteTestService([]Package{paStandardPackage()}, nil, time.Now())

	_, err := svc.Generate(context.Background(), QuoteInput{
		ProductID:      "NOPE",
		Risk:           RiskProfile{Age: 30},
		DurationMonths: 6,
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGenerateQuoteAgeLimits(t *testing.T) {
	svc, quotes := newQuoteTestService([]Package{paStandardPackage()}, nil, time.Now())

	_, err := svc.Generate(context.Background(), QuoteInput{
		ProductID:      "PA_STANDARD",
		Risk:           RiskProfile{Age: 17},
		DurationMonths: 6,
	})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Generate(context.Background(), QuoteInput{
		ProductID:      "PA_STANDARD",
		Risk:           RiskProfile{Age: 66},
		DurationMonths: 6,
	})
	require.ErrorIs(t, err, ErrValidation)
	require.Empty(t, quotes.created)

	_, err = svc.Generate(context.Background(), QuoteInput{
		ProductID:      "PA_STANDARD",
		Risk:           RiskProfile{Age: 65},
		DurationMonths: 6,
	})
	require.NoError(t, err, "limits are inclusive")
}

func TestGenerateQuoteInvalidDuration(t *testing.T) {
	svc, quotes := newQuoteTestService([]Package{paStandardPackage()}, nil, time.Now())

	for _, months := range []int{0, 13} {
		_, err := svc.Generate(context.Background(), QuoteInput{
			ProductID:      "PA_STANDARD",
			Risk:           RiskProfile{Age: 30},
			DurationMonths: months,
		})
		require.ErrorIs(t, err, ErrValidation, "duration %d", months)
	}
	require.Empty(t, quotes.created)
}

func TestGenerateQuotePercentageNeedsSumInsured(t *testing.T) {
	pkg := Package{
		ID:        "pkg-home",
		ProductID: "HOME_CONTENTS",
		Rate:      0.75,
		RateType:  RateTypePercentage,
		Currency:  "USD",
	}
	svc, _ := newQuoteTestService([]Package{pkg}, nil, time.Now())

	_, err := svc.Generate(context.Background(), QuoteInput{
		ProductID:      "HOME_CONTENTS",
		Risk:           RiskProfile{Age: 30},
		DurationMonths: 12,
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestGetQuote(t *testing.T) {
	svc, _ := newQuoteTestService([]Package{paStandardPackage()}, nil, time.Now())

	created, err := svc.Generate(context.Background(), QuoteInput{
		ProductID:      "PA_STANDARD",
		Risk:           RiskProfile{Age: 40},
		DurationMonths: 3,
	})
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), created.Number)
	require.NoError(t, err)
	require.Equal(t, created, got)

	_, err = svc.Get(context.Background(), "PASTANDA-QTE-FFFFFFFF")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Get(context.Background(), "")
	require.ErrorIs(t, err, ErrValidation)
}
