package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coverstack/rating-engine/internal/core"
	transporthttp "github.com/coverstack/rating-engine/internal/http"
	"github.com/coverstack/rating-engine/internal/http/handlers"
	"github.com/coverstack/rating-engine/internal/store/memory"
)

func newTestServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()
	st := memory.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	quoteSvc := core.NewQuoteService(st.Catalog(), st.Factors(), st.Quotes())
	policySvc := core.NewPolicyService(st.Quotes(), st.Policies(), st.Payments(), st)

	router := transporthttp.NewRouter(transporthttp.Deps{
		Mounts: []handlers.Mountable{
			handlers.NewCatalogHandler(st.Catalog(), log),
			handlers.NewQuoteHandler(quoteSvc, log),
			handlers.NewPolicyHandler(policySvc, log),
		},
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, st
}

func seedCatalog(t *testing.T, st *memory.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.Catalog().UpsertPackage(ctx, core.Package{
		ID:        "pkg-pa-standard",
		ProductID: "PA_STANDARD",
		Name:      "Personal Accident Standard",
		Rate:      1.00,
		RateType:  core.RateTypeFlat,
		Currency:  "USD",
	}))
	require.NoError(t, st.Factors().Upsert(ctx, core.RatingFactor{
		ID:         "fct-age-4660",
		ProductID:  "PA_STANDARD",
		Kind:       core.FactorAgeBand,
		Key:        "46-60",
		Multiplier: 1.5,
		Position:   1,
	}))
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestQuoteToPolicyFlow(t *testing.T) {
	srv, st := newTestServer(t)
	seedCatalog(t, st)

	// Generate a quote.
	resp := postJSON(t, srv.URL+"/quotes", core.QuoteInput{
		ProductID:      "PA_STANDARD",
		Risk:           core.RiskProfile{Age: 50},
		DurationMonths: 12,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	quote := decode[core.Quote](t, resp)
	require.Equal(t, 1.50, quote.MonthlyPremium)
	require.Equal(t, 18.00, quote.TotalPremium)
	require.Equal(t, core.QuoteStatusActive, quote.Status)

	// Fetch it back by number.
	resp, err := http.Get(srv.URL + "/quotes/" + quote.Number)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fetched := decode[core.Quote](t, resp)
	require.Equal(t, quote.Number, fetched.Number)

	// Issue a policy from it.
	issueBody := map[string]any{
		"quote_number": quote.Number,
		"payment":      core.PaymentInput{PaymentReference: "PAY-1"},
	}
	resp = postJSON(t, srv.URL+"/policies", issueBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	policy := decode[core.Policy](t, resp)
	require.Equal(t, quote.ID, policy.QuoteID)
	require.Equal(t, 18.00, policy.PremiumAmount)

	// A second issuance attempt conflicts.
	resp = postJSON(t, srv.URL+"/policies", issueBody)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// The loser can still find the winner's policy via the quote.
	resp, err = http.Get(srv.URL + "/policies/by-quote/" + quote.Number)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	byQuote := decode[core.Policy](t, resp)
	require.Equal(t, policy.ID, byQuote.ID)

	// Policy lookup by number, and its payment record.
	resp, err = http.Get(srv.URL + "/policies/" + policy.Number)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/policies/" + policy.Number + "/payment")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	payment := decode[core.PaymentTransaction](t, resp)
	require.Equal(t, policy.ID, payment.PolicyID)
	require.Equal(t, core.TransactionStatusCompleted, payment.Status)
}

func TestQuoteValidationErrors(t *testing.T) {
	srv, st := newTestServer(t)
	seedCatalog(t, st)

	// Malformed body.
	resp, err := http.Post(srv.URL+"/quotes", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// Unknown product.
	resp = postJSON(t, srv.URL+"/quotes", core.QuoteInput{
		ProductID:      "NOPE",
		Risk:           core.RiskProfile{Age: 30},
		DurationMonths: 6,
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Duration out of range.
	resp = postJSON(t, srv.URL+"/quotes", core.QuoteInput{
		ProductID:      "PA_STANDARD",
		Risk:           core.RiskProfile{Age: 30},
		DurationMonths: 0,
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestIssueExpiredQuote(t *testing.T) {
	srv, st := newTestServer(t)
	seedCatalog(t, st)

	resp := postJSON(t, srv.URL+"/quotes", core.QuoteInput{
		ProductID:      "PA_STANDARD",
		Risk:           core.RiskProfile{Age: 30},
		DurationMonths: 6,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	quote := decode[core.Quote](t, resp)

	// Sweep with a cutoff far in the future to force expiry.
	n, err := st.Quotes().ExpireQuotes(context.Background(), quote.ExpiresAt.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	resp = postJSON(t, srv.URL+"/policies", map[string]any{
		"quote_number": quote.Number,
		"payment":      core.PaymentInput{PaymentReference: "PAY-1"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()
}

func TestListPackages(t *testing.T) {
	srv, st := newTestServer(t)
	seedCatalog(t, st)

	resp, err := http.Get(srv.URL + "/products/PA_STANDARD/packages")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	packages := decode[[]core.Package](t, resp)
	require.Len(t, packages, 1)

	resp, err = http.Get(srv.URL + "/products/UNKNOWN/packages")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestListPolicies(t *testing.T) {
	srv, st := newTestServer(t)
	seedCatalog(t, st)

	resp, err := http.Get(srv.URL + "/policies/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Items []core.Policy `json:"items"`
		Total int64         `json:"total"`
	}
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Empty(t, body.Items)
	require.Equal(t, int64(0), body.Total)
}
