package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coverstack/rating-engine/internal/core"
)

func seedActiveQuote(t *testing.T, s *Store) core.Quote {
	t.Helper()
	q := core.Quote{
		ID:             "q-race",
		Number:         "PASTANDA-QTE-AB12CD34",
		ProductID:      "PA_STANDARD",
		PackageID:      "pkg-pa-standard",
		DurationMonths: 12,
		MonthlyPremium: 1.50,
		TotalPremium:   18.00,
		Currency:       "USD",
		Status:         core.QuoteStatusActive,
		CreatedAt:      time.Now(),
		ExpiresAt:      time.Now().Add(48 * time.Hour),
	}
	require.NoError(t, s.Quotes().Create(context.Background(), q))
	return q
}

// Forty concurrent issuers race for one quote; exactly one may win and
// exactly one policy and one payment may exist afterwards.
func TestIssueAtMostOnceUnderConcurrency(t *testing.T) {
	s := New()
	q := seedActiveQuote(t, s)
	svc := core.NewPolicyService(s.Quotes(), s.Policies(), s.Payments(), s)

	const workers = 40
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Issue(context.Background(), q.Number, core.PaymentInput{
				PaymentReference: "PAY-race",
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, consumed int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, core.ErrQuoteConsumed):
			consumed++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	require.Equal(t, 1, wins)
	require.Equal(t, workers-1, consumed)
	require.Equal(t, 1, s.PolicyCount())
	require.Equal(t, 1, s.PaymentCount())

	stored, err := s.Quotes().GetByNumber(context.Background(), q.Number)
	require.NoError(t, err)
	require.Equal(t, core.QuoteStatusAccepted, stored.Status)
}

// A failure inside the issuance unit must leave no partial writes: the quote
// stays active and issuable, and no policy or payment rows appear.
func TestIssueRollsBackOnPaymentFailure(t *testing.T) {
	s := New()
	q := seedActiveQuote(t, s)
	svc := core.NewPolicyService(s.Quotes(), s.Policies(), s.Payments(), s)

	s.failPayment = errors.New("payment write refused")

	_, err := svc.Issue(context.Background(), q.Number, core.PaymentInput{PaymentReference: "PAY-1"})
	require.Error(t, err)

	require.Equal(t, 0, s.PolicyCount())
	require.Equal(t, 0, s.PaymentCount())

	stored, err := s.Quotes().GetByNumber(context.Background(), q.Number)
	require.NoError(t, err)
	require.Equal(t, core.QuoteStatusActive, stored.Status)

	// A retry after the transient failure succeeds.
	policy, err := svc.Issue(context.Background(), q.Number, core.PaymentInput{PaymentReference: "PAY-1"})
	require.NoError(t, err)
	require.Equal(t, q.ID, policy.QuoteID)
	require.Equal(t, 1, s.PolicyCount())
	require.Equal(t, 1, s.PaymentCount())
}

func TestExpireQuotesFlipsOnlyOverdueActive(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	overdue := core.Quote{
		ID: "q-old", Number: "N-1", Status: core.QuoteStatusActive,
		ExpiresAt: now.Add(-time.Hour),
	}
	fresh := core.Quote{
		ID: "q-new", Number: "N-2", Status: core.QuoteStatusActive,
		ExpiresAt: now.Add(time.Hour),
	}
	accepted := core.Quote{
		ID: "q-done", Number: "N-3", Status: core.QuoteStatusAccepted,
		ExpiresAt: now.Add(-time.Hour),
	}
	for _, q := range []core.Quote{overdue, fresh, accepted} {
		require.NoError(t, s.Quotes().Create(ctx, q))
	}

	n, err := s.Quotes().ExpireQuotes(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	got, err := s.Quotes().GetByNumber(ctx, "N-1")
	require.NoError(t, err)
	require.Equal(t, core.QuoteStatusExpired, got.Status)

	got, err = s.Quotes().GetByNumber(ctx, "N-2")
	require.NoError(t, err)
	require.Equal(t, core.QuoteStatusActive, got.Status)

	got, err = s.Quotes().GetByNumber(ctx, "N-3")
	require.NoError(t, err)
	require.Equal(t, core.QuoteStatusAccepted, got.Status)
}

func TestCatalogAndFactors(t *testing.T) {
	s := New()
	ctx := context.Background()

	pkg := core.Package{
		ID: "pkg-1", ProductID: "PA_STANDARD", Name: "Standard",
		Rate: 1.00, RateType: core.RateTypeFlat, Currency: "USD",
	}
	require.NoError(t, s.Catalog().UpsertPackage(ctx, pkg))

	got, err := s.Catalog().GetPackage(ctx, "pkg-1")
	require.NoError(t, err)
	require.Equal(t, pkg, got)

	_, err = s.Catalog().ListPackages(ctx, "UNKNOWN")
	require.ErrorIs(t, err, core.ErrNotFound)

	// Factors come back sorted by position regardless of insert order.
	f2 := core.RatingFactor{ID: "f2", ProductID: "PA_STANDARD", Kind: core.FactorCoverType, Key: "PLUS", Multiplier: 1.25, Position: 2}
	f1 := core.RatingFactor{ID: "f1", ProductID: "PA_STANDARD", Kind: core.FactorAgeBand, Key: "31-45", Multiplier: 1.2, Position: 1}
	require.NoError(t, s.Factors().Upsert(ctx, f2))
	require.NoError(t, s.Factors().Upsert(ctx, f1))

	fs, err := s.Factors().ListByProduct(ctx, "PA_STANDARD")
	require.NoError(t, err)
	require.Len(t, fs, 2)
	require.Equal(t, "f1", fs[0].ID)
	require.Equal(t, "f2", fs[1].ID)
}
