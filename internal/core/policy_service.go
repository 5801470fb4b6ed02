package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coverstack/rating-engine/internal/platform/ids"
)

// PaymentInput carries the already-confirmed payment data for issuance.
type PaymentInput struct {
	// TransactionID is optional; a TXN-prefixed ID is generated when empty.
	TransactionID     string `json:"transaction_id,omitempty"`
	PaymentReference  string `json:"payment_reference"`
	ExternalReference string `json:"external_reference,omitempty"`
}

type PolicyService interface {
	// Issue converts an active, unexpired quote into exactly one policy plus
	// one payment transaction. At-most-once under concurrency: the losing
	// caller of a race gets ErrQuoteConsumed.
	Issue(ctx context.Context, quoteNumber string, pay PaymentInput) (Policy, error)

	Get(ctx context.Context, id string) (Policy, error)
	GetByNumber(ctx context.Context, number string) (Policy, error)

	// GetByQuote finds the policy issued from a quote, for callers that lost
	// an issuance race and need the winner's policy.
	GetByQuote(ctx context.Context, quoteNumber string) (Policy, error)

	// GetPayment returns the payment transaction recorded for a policy.
	GetPayment(ctx context.Context, policyNumber string) (PaymentTransaction, error)

	List(ctx context.Context, filter PolicyFilter, limit, offset int) ([]Policy, int64, error)
}

type policyService struct {
	quotes   QuoteRepo
	policies PolicyRepo
	payments PaymentRepo
	issuance IssuanceStore
	clock    func() time.Time
}

func NewPolicyService(quotes QuoteRepo, policies PolicyRepo, payments PaymentRepo, issuance IssuanceStore) PolicyService {
	return &policyService{
		quotes:   quotes,
		policies: policies,
		payments: payments,
		issuance: issuance,
		clock:    time.Now,
	}
}

func (in PaymentInput) Validate() error {
	if in.PaymentReference == "" {
		return fmt.Errorf("%w: missing payment reference", ErrValidation)
	}
	return nil
}

func (s *policyService) Issue(ctx context.Context, quoteNumber string, pay PaymentInput) (Policy, error) {
	if quoteNumber == "" {
		return Policy{}, fmt.Errorf("%w: missing quote number", ErrValidation)
	}
	if err := pay.Validate(); err != nil {
		return Policy{}, err
	}

	// 1) Load the quote.
	quote, err := s.quotes.GetByNumber(ctx, quoteNumber)
	if err != nil {
		return Policy{}, err
	}

	// 2) Validity gate. An expired-by-clock quote is rejected no matter what
	// status is stored; a consumed quote points the caller at the winner.
	now := s.clock()
	switch {
	case quote.Status == QuoteStatusAccepted:
		return Policy{}, ErrQuoteConsumed
	case quote.Status == QuoteStatusExpired:
		return Policy{}, ErrQuoteExpired
	case !now.Before(quote.ExpiresAt):
		// Best-effort persist of the observed expiry; the sweep would catch
		// it anyway and the error below does not depend on this write.
		_, _ = s.quotes.ExpireQuotes(ctx, now)
		return Policy{}, ErrQuoteExpired
	}

	// 3) Build the policy and payment rows up front; the storage unit only
	// commits them together with the conditional status transition.
	number, err := s.policies.NextPolicyNumber(ctx)
	if err != nil {
		return Policy{}, fmt.Errorf("generate policy number: %w", err)
	}

	policy := Policy{
		ID:               ids.New(),
		Number:           number,
		QuoteID:          quote.ID,
		ProductID:        quote.ProductID,
		PackageID:        quote.PackageID,
		Customer:         quote.Customer,
		PremiumAmount:    quote.TotalPremium,
		Currency:         quote.Currency,
		Status:           PolicyStatusActive,
		EffectiveDate:    now,
		ExpiryDate:       now.Add(time.Duration(quote.DurationMonths) * 30 * 24 * time.Hour),
		PaymentReference: pay.PaymentReference,
		IssuedAt:         now,
	}

	txnID := pay.TransactionID
	if txnID == "" {
		txnID = "TXN-" + ids.New()
	}
	payment := PaymentTransaction{
		ID:                txnID,
		PolicyID:          policy.ID,
		Amount:            quote.TotalPremium,
		Currency:          quote.Currency,
		Status:            TransactionStatusCompleted,
		PaymentReference:  pay.PaymentReference,
		ExternalReference: pay.ExternalReference,
		ProcessedAt:       now,
	}

	// 4) One atomic unit: conditional accept + policy insert + payment
	// insert. A lost race surfaces as either the conditional check failing
	// or the quote_id uniqueness backstop; both mean the same thing to the
	// caller.
	if err := s.issuance.Issue(ctx, quote.ID, now, policy, payment); err != nil {
		if errors.Is(err, ErrPolicyExists) {
			return Policy{}, ErrQuoteConsumed
		}
		return Policy{}, err
	}

	return policy, nil
}

func (s *policyService) Get(ctx context.Context, id string) (Policy, error) {
	if id == "" {
		return Policy{}, fmt.Errorf("%w: missing policy ID", ErrValidation)
	}
	return s.policies.Get(ctx, id)
}

func (s *policyService) GetByNumber(ctx context.Context, number string) (Policy, error) {
	if number == "" {
		return Policy{}, fmt.Errorf("%w: missing policy number", ErrValidation)
	}
	return s.policies.GetByNumber(ctx, number)
}

func (s *policyService) GetByQuote(ctx context.Context, quoteNumber string) (Policy, error) {
	quote, err := s.quotes.GetByNumber(ctx, quoteNumber)
	if err != nil {
		return Policy{}, err
	}
	return s.policies.GetByQuoteID(ctx, quote.ID)
}

func (s *policyService) GetPayment(ctx context.Context, policyNumber string) (PaymentTransaction, error) {
	policy, err := s.policies.GetByNumber(ctx, policyNumber)
	if err != nil {
		return PaymentTransaction{}, err
	}
	return s.payments.GetByPolicyID(ctx, policy.ID)
}

func (s *policyService) List(ctx context.Context, filter PolicyFilter, limit, offset int) ([]Policy, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.policies.List(ctx, filter, limit, offset)
}
