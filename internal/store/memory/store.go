// Package memory is an in-memory implementation of the storage interfaces.
// It backs tests and database-less runs; the engine receives it through the
// same constructors as the real stores, so there is no implicit fallback
// path in the core.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/coverstack/rating-engine/internal/core"
)

// Store holds all aggregates behind one mutex. The per-aggregate repos are
// views over it; Quotes(), Policies() and friends hand out the interface
// implementations.
type Store struct {
	mu sync.Mutex

	packages map[string]core.Package
	factors  map[string][]core.RatingFactor
	quotes   map[string]core.Quote
	quoteIDs map[string]string // number -> id

	policies      map[string]core.Policy
	policyNumbers map[string]string // number -> id
	policyByQuote map[string]string // quote id -> policy id
	policySeq     int64

	payments        map[string]core.PaymentTransaction
	paymentByPolicy map[string]string

	// failPayment, when set, makes the next Issue fail at the payment step.
	// Used by tests to prove the unit commits all-or-nothing.
	failPayment error
}

func New() *Store {
	return &Store{
		packages:        make(map[string]core.Package),
		factors:         make(map[string][]core.RatingFactor),
		quotes:          make(map[string]core.Quote),
		quoteIDs:        make(map[string]string),
		policies:        make(map[string]core.Policy),
		policyNumbers:   make(map[string]string),
		policyByQuote:   make(map[string]string),
		payments:        make(map[string]core.PaymentTransaction),
		paymentByPolicy: make(map[string]string),
	}
}

// Ping always succeeds; the store has no external dependency.
func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Catalog() core.CatalogRepo { return catalogView{s} }
func (s *Store) Factors() core.FactorRepo  { return factorView{s} }
func (s *Store) Quotes() core.QuoteRepo    { return quoteView{s} }
func (s *Store) Policies() core.PolicyRepo { return policyView{s} }
func (s *Store) Payments() core.PaymentRepo { return paymentView{s} }

// ---- CatalogRepo ----

type catalogView struct{ s *Store }

func (v catalogView) ListPackages(ctx context.Context, productID string) ([]core.Package, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	var out []core.Package
	for _, p := range v.s.packages {
		if p.ProductID == productID {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, core.ErrProductNotFound
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v catalogView) GetPackage(ctx context.Context, packageID string) (core.Package, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	p, ok := v.s.packages[packageID]
	if !ok {
		return core.Package{}, core.ErrPackageNotFound
	}
	return p, nil
}

func (v catalogView) UpsertPackage(ctx context.Context, p core.Package) error {
	if err := p.Validate(); err != nil {
		return err
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	v.s.packages[p.ID] = p
	return nil
}

// ---- FactorRepo ----

type factorView struct{ s *Store }

func (v factorView) ListByProduct(ctx context.Context, productID string) ([]core.RatingFactor, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	fs := v.s.factors[productID]
	out := make([]core.RatingFactor, len(fs))
	copy(out, fs)
	return out, nil
}

func (v factorView) Upsert(ctx context.Context, f core.RatingFactor) error {
	if err := f.Validate(); err != nil {
		return err
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	fs := v.s.factors[f.ProductID]
	for i, existing := range fs {
		if existing.ID == f.ID {
			fs[i] = f
			sortFactors(fs)
			return nil
		}
	}
	fs = append(fs, f)
	sortFactors(fs)
	v.s.factors[f.ProductID] = fs
	return nil
}

func sortFactors(fs []core.RatingFactor) {
	sort.SliceStable(fs, func(i, j int) bool { return fs[i].Position < fs[j].Position })
}

// ---- QuoteRepo ----

type quoteView struct{ s *Store }

func (v quoteView) Create(ctx context.Context, q core.Quote) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if _, exists := v.s.quotes[q.ID]; exists {
		return core.ErrConflict
	}
	if _, exists := v.s.quoteIDs[q.Number]; exists {
		return core.ErrConflict
	}
	v.s.quotes[q.ID] = q
	v.s.quoteIDs[q.Number] = q.ID
	return nil
}

func (v quoteView) GetByNumber(ctx context.Context, number string) (core.Quote, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	id, ok := v.s.quoteIDs[number]
	if !ok {
		return core.Quote{}, core.ErrQuoteNotFound
	}
	return v.s.quotes[id], nil
}

func (v quoteView) ExpireQuotes(ctx context.Context, before time.Time) (int64, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	var n int64
	for id, q := range v.s.quotes {
		if q.Status == core.QuoteStatusActive && q.ExpiresAt.Before(before) {
			q.Status = core.QuoteStatusExpired
			v.s.quotes[id] = q
			n++
		}
	}
	return n, nil
}

// ---- PolicyRepo ----

type policyView struct{ s *Store }

func (v policyView) Get(ctx context.Context, id string) (core.Policy, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	p, ok := v.s.policies[id]
	if !ok {
		return core.Policy{}, core.ErrPolicyNotFound
	}
	return p, nil
}

func (v policyView) GetByNumber(ctx context.Context, number string) (core.Policy, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	id, ok := v.s.policyNumbers[number]
	if !ok {
		return core.Policy{}, core.ErrPolicyNotFound
	}
	return v.s.policies[id], nil
}

func (v policyView) GetByQuoteID(ctx context.Context, quoteID string) (core.Policy, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	id, ok := v.s.policyByQuote[quoteID]
	if !ok {
		return core.Policy{}, core.ErrPolicyNotFound
	}
	return v.s.policies[id], nil
}

func (v policyView) List(ctx context.Context, filter core.PolicyFilter, limit, offset int) ([]core.Policy, int64, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	var all []core.Policy
	for _, p := range v.s.policies {
		if filter.ProductID != "" && p.ProductID != filter.ProductID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].IssuedAt.After(all[j].IssuedAt) })

	total := int64(len(all))
	if offset >= len(all) {
		return []core.Policy{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (v policyView) NextPolicyNumber(ctx context.Context) (string, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	v.s.policySeq++
	return fmt.Sprintf("POL-%d-%06d", time.Now().Year(), v.s.policySeq), nil
}

// ---- PaymentRepo ----

type paymentView struct{ s *Store }

func (v paymentView) GetByPolicyID(ctx context.Context, policyID string) (core.PaymentTransaction, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	id, ok := v.s.paymentByPolicy[policyID]
	if !ok {
		return core.PaymentTransaction{}, core.ErrPaymentNotFound
	}
	return v.s.payments[id], nil
}

// ---- IssuanceStore ----

// Issue validates everything under the lock and only then mutates, so a
// failure at any step leaves the maps untouched.
func (s *Store) Issue(ctx context.Context, quoteID string, acceptedAt time.Time, policy core.Policy, payment core.PaymentTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quotes[quoteID]
	if !ok {
		return core.ErrQuoteNotFound
	}
	if q.Status != core.QuoteStatusActive {
		return core.ErrQuoteConsumed
	}
	if _, exists := s.policyByQuote[quoteID]; exists {
		return core.ErrPolicyExists
	}
	if s.failPayment != nil {
		err := s.failPayment
		s.failPayment = nil
		return err
	}

	q.Status = core.QuoteStatusAccepted
	q.AcceptedAt = &acceptedAt
	s.quotes[quoteID] = q

	s.policies[policy.ID] = policy
	s.policyNumbers[policy.Number] = policy.ID
	s.policyByQuote[quoteID] = policy.ID

	s.payments[payment.ID] = payment
	s.paymentByPolicy[payment.PolicyID] = payment.ID
	return nil
}

// PaymentCount reports how many payment rows exist, for tests.
func (s *Store) PaymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

// PolicyCount reports how many policy rows exist, for tests.
func (s *Store) PolicyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.policies)
}
