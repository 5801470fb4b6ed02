package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type QuoteStatus string

const (
	QuoteStatusActive   QuoteStatus = "active"
	QuoteStatusAccepted QuoteStatus = "accepted"
	QuoteStatusExpired  QuoteStatus = "expired"
)

const (
	// QuoteValidityHours is how long a generated quote stays issuable.
	QuoteValidityHours = 48
)

// Quote is a premium snapshot with a validity window. Created by the quote
// ledger; mutated only by the policy issuer (active -> accepted) or by the
// expiry sweep. Never deleted.
type Quote struct {
	ID     string `json:"id"`
	Number string `json:"number"` // Human-readable, e.g. PA-QTE-9F3C21D4

	ProductID string `json:"product_id"`
	PackageID string `json:"package_id"`

	// Customer is carried through verbatim; the engine never interprets it.
	Customer json.RawMessage `json:"customer,omitempty"`
	Risk     RiskProfile     `json:"risk"`

	DurationMonths int             `json:"duration_months"`
	BasePremium    float64         `json:"base_premium"`
	MonthlyPremium float64         `json:"monthly_premium"`
	TotalPremium   float64         `json:"total_premium"`
	Currency       string          `json:"currency"`
	Applied        []AppliedFactor `json:"applied_factors,omitempty"`

	Status     QuoteStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	ExpiresAt  time.Time   `json:"expires_at"`
	AcceptedAt *time.Time  `json:"accepted_at,omitempty"`
}

type QuoteRepo interface {
	Create(ctx context.Context, q Quote) error
	GetByNumber(ctx context.Context, number string) (Quote, error)

	// ExpireQuotes flips overdue active quotes to expired. Reporting only;
	// IsValid never depends on the sweep having run.
	ExpireQuotes(ctx context.Context, before time.Time) (int64, error)
}

// IsValid reports whether the quote can still be issued. Expiry is evaluated
// lazily against the wall clock, so a stale stored status cannot resurrect
// an expired quote.
func (q Quote) IsValid(now time.Time) bool {
	return q.Status == QuoteStatusActive && now.Before(q.ExpiresAt)
}

// CanTransitionTo checks a status transition. Active is the only non-terminal
// state; transitions never run backward.
func (s QuoteStatus) CanTransitionTo(next QuoteStatus) bool {
	if s != QuoteStatusActive {
		return false
	}
	return next == QuoteStatusAccepted || next == QuoteStatusExpired
}

var (
	ErrQuoteNotFound = fmt.Errorf("%w: quote not found", ErrNotFound)
	ErrQuoteExpired  = fmt.Errorf("%w: quote has expired", ErrInvalidState)

	// ErrQuoteConsumed means another request already accepted this quote.
	// Callers must not retry; the policy exists and can be fetched by quote.
	ErrQuoteConsumed = fmt.Errorf("%w: quote already consumed", ErrConflict)
)
