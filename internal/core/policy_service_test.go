package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type issuanceQuotes struct {
	byNumber    map[string]Quote
	expireCalls int
}

func (s *issuanceQuotes) Create(_ context.Context, q Quote) error {
	s.byNumber[q.Number] = q
	return nil
}

func (s *issuanceQuotes) GetByNumber(_ context.Context, number string) (Quote, error) {
	q, ok := s.byNumber[number]
	if !ok {
		return Quote{}, ErrQuoteNotFound
	}
	return q, nil
}

func (s *issuanceQuotes) ExpireQuotes(_ context.Context, before time.Time) (int64, error) {
	s.expireCalls++
	var n int64
	for num, q := range s.byNumber {
		if q.Status == QuoteStatusActive && q.ExpiresAt.Before(before) {
			q.Status = QuoteStatusExpired
			s.byNumber[num] = q
			n++
		}
	}
	return n, nil
}

type issuancePolicies struct {
	byID    map[string]Policy
	nextSeq int

	lastLimit  int
	lastOffset int
}

func (s *issuancePolicies) Get(_ context.Context, id string) (Policy, error) {
	p, ok := s.byID[id]
	if !ok {
		return Policy{}, ErrPolicyNotFound
	}
	return p, nil
}

func (s *issuancePolicies) GetByNumber(_ context.Context, number string) (Policy, error) {
	for _, p := range s.byID {
		if p.Number == number {
			return p, nil
		}
	}
	return Policy{}, ErrPolicyNotFound
}

func (s *issuancePolicies) GetByQuoteID(_ context.Context, quoteID string) (Policy, error) {
	for _, p := range s.byID {
		if p.QuoteID == quoteID {
			return p, nil
		}
	}
	return Policy{}, ErrPolicyNotFound
}

func (s *issuancePolicies) List(_ context.Context, _ PolicyFilter, limit, offset int) ([]Policy, int64, error) {
	s.lastLimit = limit
	s.lastOffset = offset
	return nil, 0, nil
}

func (s *issuancePolicies) NextPolicyNumber(_ context.Context) (string, error) {
	s.nextSeq++
	return "POL-2025-000001", nil
}

type issuancePayments struct {
	byPolicy map[string]PaymentTransaction
}

func (s *issuancePayments) GetByPolicyID(_ context.Context, policyID string) (PaymentTransaction, error) {
	p, ok := s.byPolicy[policyID]
	if !ok {
		return PaymentTransaction{}, ErrPaymentNotFound
	}
	return p, nil
}

// stubIssuance mimics the storage unit: conditional accept plus both inserts,
// or a forced error.
type stubIssuance struct {
	quotes   *issuanceQuotes
	policies *issuancePolicies
	payments *issuancePayments
	forceErr error
}

func (s *stubIssuance) Issue(_ context.Context, quoteID string, acceptedAt time.Time, policy Policy, payment PaymentTransaction) error {
	if s.forceErr != nil {
		return s.forceErr
	}
	for num, q := range s.quotes.byNumber {
		if q.ID != quoteID {
			continue
		}
		if q.Status != QuoteStatusActive {
			return ErrQuoteConsumed
		}
		q.Status = QuoteStatusAccepted
		q.AcceptedAt = &acceptedAt
		s.quotes.byNumber[num] = q

		s.policies.byID[policy.ID] = policy
		s.payments.byPolicy[payment.PolicyID] = payment
		return nil
	}
	return ErrQuoteNotFound
}

type policyTestEnv struct {
	svc      *policyService
	quotes   *issuanceQuotes
	policies *issuancePolicies
	payments *issuancePayments
	issuance *stubIssuance
	now      time.Time
}

func newPolicyTestEnv() *policyTestEnv {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	quotes := &issuanceQuotes{byNumber: make(map[string]Quote)}
	policies := &issuancePolicies{byID: make(map[string]Policy)}
	payments := &issuancePayments{byPolicy: make(map[string]PaymentTransaction)}
	issuance := &stubIssuance{quotes: quotes, policies: policies, payments: payments}
	return &policyTestEnv{
		svc: &policyService{
			quotes:   quotes,
			policies: policies,
			payments: payments,
			issuance: issuance,
			clock:    func() time.Time { return now },
		},
		quotes:   quotes,
		policies: policies,
		payments: payments,
		issuance: issuance,
		now:      now,
	}
}

func (e *policyTestEnv) addQuote(status QuoteStatus, expiresAt time.Time) Quote {
	q := Quote{
		ID:             "q-1",
		Number:         "PASTANDA-QTE-AB12CD34",
		ProductID:      "PA_STANDARD",
		PackageID:      "pkg-pa-standard",
		DurationMonths: 12,
		MonthlyPremium: 1.50,
		TotalPremium:   18.00,
		Currency:       "USD",
		Status:         status,
		CreatedAt:      e.now.Add(-time.Hour),
		ExpiresAt:      expiresAt,
	}
	e.quotes.byNumber[q.Number] = q
	return q
}

func TestIssuePolicy(t *testing.T) {
	env := newPolicyTestEnv()
	q := env.addQuote(QuoteStatusActive, env.now.Add(time.Hour))

	policy, err := env.svc.Issue(context.Background(), q.Number, PaymentInput{
		PaymentReference:  "PAY-123",
		ExternalReference: "ext-9",
	})
	require.NoError(t, err)

	require.Equal(t, "POL-2025-000001", policy.Number)
	require.Equal(t, q.ID, policy.QuoteID)
	require.Equal(t, q.ProductID, policy.ProductID)
	require.Equal(t, q.PackageID, policy.PackageID)
	require.Equal(t, 18.00, policy.PremiumAmount)
	require.Equal(t, PolicyStatusActive, policy.Status)
	require.Equal(t, env.now, policy.EffectiveDate)
	require.Equal(t, env.now.Add(12*30*24*time.Hour), policy.ExpiryDate)
	require.Equal(t, "PAY-123", policy.PaymentReference)

	stored := env.quotes.byNumber[q.Number]
	require.Equal(t, QuoteStatusAccepted, stored.Status)
	require.NotNil(t, stored.AcceptedAt)

	payment, err := env.payments.GetByPolicyID(context.Background(), policy.ID)
	require.NoError(t, err)
	require.Equal(t, 18.00, payment.Amount)
	require.Equal(t, TransactionStatusCompleted, payment.Status)
	require.True(t, strings.HasPrefix(payment.ID, "TXN-"), "generated transaction ID, got %q", payment.ID)
	require.Equal(t, "ext-9", payment.ExternalReference)
}

func TestIssuePolicyCallerTransactionID(t *testing.T) {
	env := newPolicyTestEnv()
	q := env.addQuote(QuoteStatusActive, env.now.Add(time.Hour))

	policy, err := env.svc.Issue(context.Background(), q.Number, PaymentInput{
		TransactionID:    "TXN-custom-1",
		PaymentReference: "PAY-123",
	})
	require.NoError(t, err)

	payment, err := env.payments.GetByPolicyID(context.Background(), policy.ID)
	require.NoError(t, err)
	require.Equal(t, "TXN-custom-1", payment.ID)
}

func TestIssuePolicyQuoteConsumed(t *testing.T) {
	env := newPolicyTestEnv()
	q := env.addQuote(QuoteStatusAccepted, env.now.Add(time.Hour))

	_, err := env.svc.Issue(context.Background(), q.Number, PaymentInput{PaymentReference: "PAY-1"})
	require.ErrorIs(t, err, ErrQuoteConsumed)
	require.ErrorIs(t, err, ErrConflict)
}

func TestIssuePolicyQuoteExpiredStatus(t *testing.T) {
	env := newPolicyTestEnv()
	q := env.addQuote(QuoteStatusExpired, env.now.Add(time.Hour))

	_, err := env.svc.Issue(context.Background(), q.Number, PaymentInput{PaymentReference: "PAY-1"})
	require.ErrorIs(t, err, ErrQuoteExpired)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestIssuePolicyQuoteExpiredByClock(t *testing.T) {
	env := newPolicyTestEnv()
	// Stored status still active, but the validity window has passed.
	q := env.addQuote(QuoteStatusActive, env.now.Add(-time.Minute))

	_, err := env.svc.Issue(context.Background(), q.Number, PaymentInput{PaymentReference: "PAY-1"})
	require.ErrorIs(t, err, ErrQuoteExpired)
	require.Equal(t, 1, env.quotes.expireCalls, "observed expiry triggers a sweep")
	require.Empty(t, env.policies.byID)
}

func TestIssuePolicyLostRaceMapsToConsumed(t *testing.T) {
	env := newPolicyTestEnv()
	q := env.addQuote(QuoteStatusActive, env.now.Add(time.Hour))
	env.issuance.forceErr = ErrPolicyExists

	_, err := env.svc.Issue(context.Background(), q.Number, PaymentInput{PaymentReference: "PAY-1"})
	require.ErrorIs(t, err, ErrQuoteConsumed)
}

func TestIssuePolicyUnavailablePropagates(t *testing.T) {
	env := newPolicyTestEnv()
	q := env.addQuote(QuoteStatusActive, env.now.Add(time.Hour))
	env.issuance.forceErr = ErrUnavailable

	_, err := env.svc.Issue(context.Background(), q.Number, PaymentInput{PaymentReference: "PAY-1"})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestIssuePolicyValidation(t *testing.T) {
	env := newPolicyTestEnv()

	_, err := env.svc.Issue(context.Background(), "", PaymentInput{PaymentReference: "PAY-1"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = env.svc.Issue(context.Background(), "PASTANDA-QTE-AB12CD34", PaymentInput{})
	require.ErrorIs(t, err, ErrValidation)

	_, err = env.svc.Issue(context.Background(), "PASTANDA-QTE-MISSING0", PaymentInput{PaymentReference: "PAY-1"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetByQuote(t *testing.T) {
	env := newPolicyTestEnv()
	q := env.addQuote(QuoteStatusActive, env.now.Add(time.Hour))

	policy, err := env.svc.Issue(context.Background(), q.Number, PaymentInput{PaymentReference: "PAY-1"})
	require.NoError(t, err)

	got, err := env.svc.GetByQuote(context.Background(), q.Number)
	require.NoError(t, err)
	require.Equal(t, policy.ID, got.ID)
}

func TestGetPayment(t *testing.T) {
	env := newPolicyTestEnv()
	q := env.addQuote(QuoteStatusActive, env.now.Add(time.Hour))

	policy, err := env.svc.Issue(context.Background(), q.Number, PaymentInput{PaymentReference: "PAY-1"})
	require.NoError(t, err)

	payment, err := env.svc.GetPayment(context.Background(), policy.Number)
	require.NoError(t, err)
	require.Equal(t, policy.ID, payment.PolicyID)

	_, err = env.svc.GetPayment(context.Background(), "POL-2025-999999")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListClampsPagination(t *testing.T) {
	env := newPolicyTestEnv()

	_, _, err := env.svc.List(context.Background(), PolicyFilter{}, 0, -5)
	require.NoError(t, err)
	require.Equal(t, 20, env.policies.lastLimit)
	require.Equal(t, 0, env.policies.lastOffset)

	_, _, err = env.svc.List(context.Background(), PolicyFilter{}, 500, 10)
	require.NoError(t, err)
	require.Equal(t, 100, env.policies.lastLimit)
	require.Equal(t, 10, env.policies.lastOffset)
}
