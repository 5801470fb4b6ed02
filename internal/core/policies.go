package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type PolicyStatus string

const (
	PolicyStatusActive    PolicyStatus = "active"
	PolicyStatusLapsed    PolicyStatus = "lapsed"
	PolicyStatusCancelled PolicyStatus = "cancelled"
	PolicyStatusExpired   PolicyStatus = "expired"
)

// Policy is the durable contract created from an accepted quote. A policy
// always originates from exactly one quote, and a quote yields at most one
// policy; the storage layer enforces the latter with a uniqueness constraint
// on QuoteID.
type Policy struct {
	ID     string `json:"id"`
	Number string `json:"number"` // e.g. POL-2025-000317

	QuoteID   string `json:"quote_id"`
	ProductID string `json:"product_id"`
	PackageID string `json:"package_id"`

	// Customer is copied from the quote at issuance, not re-derived.
	Customer json.RawMessage `json:"customer,omitempty"`

	PremiumAmount float64 `json:"premium_amount"`
	Currency      string  `json:"currency"`

	Status        PolicyStatus `json:"status"`
	EffectiveDate time.Time    `json:"effective_date"`
	// ExpiryDate is EffectiveDate + durationMonths*30 days, the convention
	// the upstream systems already bill against.
	ExpiryDate time.Time `json:"expiry_date"`

	PaymentReference string    `json:"payment_reference,omitempty"`
	IssuedAt         time.Time `json:"issued_at"`
}

type PolicyFilter struct {
	ProductID string
	Status    PolicyStatus
}

type PolicyRepo interface {
	Get(ctx context.Context, id string) (Policy, error)
	GetByNumber(ctx context.Context, number string) (Policy, error)
	GetByQuoteID(ctx context.Context, quoteID string) (Policy, error)
	List(ctx context.Context, filter PolicyFilter, limit, offset int) ([]Policy, int64, error)
	NextPolicyNumber(ctx context.Context) (string, error)
}

// IssuanceStore runs the three issuance writes as one atomic unit:
//
//  1. transition the quote active -> accepted, conditioned on the stored
//     status still being active (returns ErrQuoteConsumed otherwise),
//  2. insert the policy (unique on quote_id; ErrPolicyExists on violation),
//  3. insert the payment transaction referencing the policy.
//
// On any failure none of the writes are visible.
type IssuanceStore interface {
	Issue(ctx context.Context, quoteID string, acceptedAt time.Time, policy Policy, payment PaymentTransaction) error
}

var (
	ErrPolicyNotFound = fmt.Errorf("%w: policy not found", ErrNotFound)
	ErrPolicyExists   = fmt.Errorf("%w: policy already exists for quote", ErrConflict)
)
