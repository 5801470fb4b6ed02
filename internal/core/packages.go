package core

import (
	"context"
	"fmt"
	"strconv"
)

type RateType string

const (
	RateTypeFlat       RateType = "flat"
	RateTypePercentage RateType = "percentage"
)

// Recognized limit keys on a package.
const (
	LimitMinAge = "min_age"
	LimitMaxAge = "max_age"
)

// Package is a purchasable coverage option within a product. Read-only to
// the rating engine; catalog administration owns the rows.
type Package struct {
	ID        string   `json:"id"`
	ProductID string   `json:"product_id"`
	Name      string   `json:"name"`
	Rate      float64  `json:"rate"`
	RateType  RateType `json:"rate_type"`
	Currency  string   `json:"currency"`

	// MinimumPremium is an optional annual floor, only meaningful for
	// percentage-rated packages. Zero means no floor.
	MinimumPremium float64 `json:"minimum_premium,omitempty"`

	Benefits []string          `json:"benefits,omitempty"`
	Limits   map[string]string `json:"limits,omitempty"`
}

type CatalogRepo interface {
	// ListPackages returns the product's packages in catalog order.
	// Returns ErrProductNotFound when the product has no active packages.
	ListPackages(ctx context.Context, productID string) ([]Package, error)
	GetPackage(ctx context.Context, packageID string) (Package, error)
	UpsertPackage(ctx context.Context, p Package) error
}

func (p Package) Validate() error {
	if p.ID == "" || p.ProductID == "" {
		return fmt.Errorf("%w: missing package identity", ErrValidation)
	}
	if p.Rate <= 0 {
		return fmt.Errorf("%w: rate must be > 0", ErrValidation)
	}
	if p.RateType != RateTypeFlat && p.RateType != RateTypePercentage {
		return fmt.Errorf("%w: unknown rate type %q", ErrValidation, p.RateType)
	}
	if p.Currency == "" {
		return fmt.Errorf("%w: missing currency", ErrValidation)
	}
	return nil
}

// AgeLimit reads an integer limit value; ok is false when the key is absent
// or not numeric (malformed limits are ignored rather than enforced).
func (p Package) AgeLimit(key string) (int, bool) {
	raw, exists := p.Limits[key]
	if !exists {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

var (
	ErrProductNotFound = fmt.Errorf("%w: product not found", ErrNotFound)
	ErrPackageNotFound = fmt.Errorf("%w: package not found", ErrNotFound)
)
