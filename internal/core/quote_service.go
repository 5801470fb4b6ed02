package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coverstack/rating-engine/internal/platform/ids"
)

type QuoteInput struct {
	ProductID string `json:"product_id"`
	// PackageID may be omitted when the product has exactly one package.
	PackageID string `json:"package_id,omitempty"`

	Customer       json.RawMessage `json:"customer,omitempty"`
	Risk           RiskProfile     `json:"risk"`
	DurationMonths int             `json:"duration_months"`
}

type QuoteService interface {
	// Generate resolves the package and factors, prices the risk, and
	// persists an active quote with a 48-hour validity window.
	Generate(ctx context.Context, in QuoteInput) (Quote, error)

	// Get retrieves a quote by its human-readable number.
	Get(ctx context.Context, number string) (Quote, error)
}

type quoteService struct {
	catalog CatalogRepo
	factors FactorRepo
	quotes  QuoteRepo
	clock   func() time.Time
}

func NewQuoteService(catalog CatalogRepo, factors FactorRepo, quotes QuoteRepo) QuoteService {
	return &quoteService{
		catalog: catalog,
		factors: factors,
		quotes:  quotes,
		clock:   time.Now,
	}
}

func (in QuoteInput) Validate() error {
	if in.ProductID == "" {
		return fmt.Errorf("%w: missing product ID", ErrValidation)
	}
	if in.DurationMonths < MinDurationMonths || in.DurationMonths > MaxDurationMonths {
		return fmt.Errorf("%w: duration must be between %d and %d months",
			ErrValidation, MinDurationMonths, MaxDurationMonths)
	}
	if in.Risk.Age < 0 || in.Risk.Age > 120 {
		return fmt.Errorf("%w: invalid age", ErrValidation)
	}
	return nil
}

func (s *quoteService) Generate(ctx context.Context, in QuoteInput) (Quote, error) {
	if err := in.Validate(); err != nil {
		return Quote{}, err
	}

	pkg, err := s.resolvePackage(ctx, in)
	if err != nil {
		return Quote{}, err
	}

	// Package limits gate eligibility before any pricing happens.
	if min, ok := pkg.AgeLimit(LimitMinAge); ok && in.Risk.Age < min {
		return Quote{}, fmt.Errorf("%w: age %d below package minimum %d", ErrValidation, in.Risk.Age, min)
	}
	if max, ok := pkg.AgeLimit(LimitMaxAge); ok && in.Risk.Age > max {
		return Quote{}, fmt.Errorf("%w: age %d above package maximum %d", ErrValidation, in.Risk.Age, max)
	}

	factors, err := s.factors.ListByProduct(ctx, in.ProductID)
	if err != nil {
		return Quote{}, err
	}
	applicable := ApplicableFactors(factors, in.Risk)

	// Calculator failures propagate unchanged.
	premium, err := CalculatePremium(pkg, applicable, in.Risk, in.DurationMonths)
	if err != nil {
		return Quote{}, err
	}

	now := s.clock()
	q := Quote{
		ID:             ids.New(),
		Number:         quoteNumber(in.ProductID),
		ProductID:      in.ProductID,
		PackageID:      pkg.ID,
		Customer:       in.Customer,
		Risk:           in.Risk,
		DurationMonths: in.DurationMonths,
		BasePremium:    premium.BasePremium,
		MonthlyPremium: premium.MonthlyPremium,
		TotalPremium:   premium.TotalPremium,
		Currency:       premium.Currency,
		Applied:        premium.Applied,
		Status:         QuoteStatusActive,
		CreatedAt:      now,
		ExpiresAt:      now.Add(QuoteValidityHours * time.Hour),
	}

	if err := s.quotes.Create(ctx, q); err != nil {
		return Quote{}, err
	}
	return q, nil
}

func (s *quoteService) Get(ctx context.Context, number string) (Quote, error) {
	if number == "" {
		return Quote{}, fmt.Errorf("%w: missing quote number", ErrValidation)
	}
	return s.quotes.GetByNumber(ctx, number)
}

func (s *quoteService) resolvePackage(ctx context.Context, in QuoteInput) (Package, error) {
	if in.PackageID != "" {
		pkg, err := s.catalog.GetPackage(ctx, in.PackageID)
		if err != nil {
			return Package{}, err
		}
		if pkg.ProductID != in.ProductID {
			return Package{}, fmt.Errorf("%w: package %s does not belong to product %s",
				ErrValidation, in.PackageID, in.ProductID)
		}
		return pkg, nil
	}

	pkgs, err := s.catalog.ListPackages(ctx, in.ProductID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Package{}, fmt.Errorf("%w: product %q", ErrNotFound, in.ProductID)
		}
		return Package{}, err
	}
	if len(pkgs) != 1 {
		return Package{}, fmt.Errorf("%w: product %s has %d packages, package ID is required",
			ErrValidation, in.ProductID, len(pkgs))
	}
	return pkgs[0], nil
}

// quoteNumber builds the <PRODUCT>-QTE-<suffix> number. The suffix is random
// rather than sequential; uniqueness is what the format guarantees.
func quoteNumber(productID string) string {
	code := strings.ToUpper(strings.NewReplacer("-", "", "_", "").Replace(productID))
	if len(code) > 8 {
		code = code[:8]
	}
	return fmt.Sprintf("%s-QTE-%s", code, ids.Suffix())
}
