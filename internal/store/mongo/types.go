package mongo

import (
	"encoding/json"
	"time"

	"github.com/coverstack/rating-engine/internal/core"
)

const (
	ColPackages = "packages"
	ColFactors  = "rating_factors"
	ColQuotes   = "quotes"
	ColPolicies = "policies"
	ColPayments = "payment_transactions"
	ColCounters = "counters"
)

type PackageDoc struct {
	ID             string            `bson:"_id"`
	ProductID      string            `bson:"product_id"` // indexed
	Name           string            `bson:"name"`
	Rate           float64           `bson:"rate"`
	RateType       string            `bson:"rate_type"`
	Currency       string            `bson:"currency"`
	MinimumPremium float64           `bson:"minimum_premium,omitempty"`
	Benefits       []string          `bson:"benefits,omitempty"`
	Limits         map[string]string `bson:"limits,omitempty"`
}

func toPackageDoc(p core.Package) PackageDoc {
	return PackageDoc{
		ID:             p.ID,
		ProductID:      p.ProductID,
		Name:           p.Name,
		Rate:           p.Rate,
		RateType:       string(p.RateType),
		Currency:       p.Currency,
		MinimumPremium: p.MinimumPremium,
		Benefits:       p.Benefits,
		Limits:         p.Limits,
	}
}

func fromPackageDoc(d PackageDoc) core.Package {
	return core.Package{
		ID:             d.ID,
		ProductID:      d.ProductID,
		Name:           d.Name,
		Rate:           d.Rate,
		RateType:       core.RateType(d.RateType),
		Currency:       d.Currency,
		MinimumPremium: d.MinimumPremium,
		Benefits:       d.Benefits,
		Limits:         d.Limits,
	}
}

type FactorDoc struct {
	ID         string  `bson:"_id"`
	ProductID  string  `bson:"product_id"` // indexed
	Kind       string  `bson:"kind"`
	Key        string  `bson:"key"`
	Multiplier float64 `bson:"multiplier,omitempty"`
	Addition   float64 `bson:"addition,omitempty"`
	Position   int     `bson:"position"`
}

func toFactorDoc(f core.RatingFactor) FactorDoc {
	return FactorDoc{
		ID:         f.ID,
		ProductID:  f.ProductID,
		Kind:       string(f.Kind),
		Key:        f.Key,
		Multiplier: f.Multiplier,
		Addition:   f.Addition,
		Position:   f.Position,
	}
}

func fromFactorDoc(d FactorDoc) core.RatingFactor {
	return core.RatingFactor{
		ID:         d.ID,
		ProductID:  d.ProductID,
		Kind:       core.FactorKind(d.Kind),
		Key:        d.Key,
		Multiplier: d.Multiplier,
		Addition:   d.Addition,
		Position:   d.Position,
	}
}

type AppliedFactorDoc struct {
	Kind       string  `bson:"kind"`
	Key        string  `bson:"key"`
	Multiplier float64 `bson:"multiplier,omitempty"`
	Addition   float64 `bson:"addition,omitempty"`
	Effect     float64 `bson:"effect"`
}

type QuoteDoc struct {
	ID             string             `bson:"_id"`
	Number         string             `bson:"number"` // unique index
	ProductID      string             `bson:"product_id"`
	PackageID      string             `bson:"package_id"`
	Customer       string             `bson:"customer,omitempty"` // raw JSON passthrough
	Risk           RiskDoc            `bson:"risk"`
	DurationMonths int                `bson:"duration_months"`
	BasePremium    float64            `bson:"base_premium"`
	MonthlyPremium float64            `bson:"monthly_premium"`
	TotalPremium   float64            `bson:"total_premium"`
	Currency       string             `bson:"currency"`
	Applied        []AppliedFactorDoc `bson:"applied_factors,omitempty"`
	Status         string             `bson:"status"`
	CreatedAt      time.Time          `bson:"created_at"`
	ExpiresAt      time.Time          `bson:"expires_at"`
	AcceptedAt     *time.Time         `bson:"accepted_at,omitempty"`
}

type RiskDoc struct {
	Age        int     `bson:"age"`
	FamilySize int     `bson:"family_size"`
	CoverType  string  `bson:"cover_type,omitempty"`
	SumInsured float64 `bson:"sum_insured,omitempty"`
}

func toQuoteDoc(q core.Quote) QuoteDoc {
	applied := make([]AppliedFactorDoc, len(q.Applied))
	for i, a := range q.Applied {
		applied[i] = AppliedFactorDoc{
			Kind:       string(a.Kind),
			Key:        a.Key,
			Multiplier: a.Multiplier,
			Addition:   a.Addition,
			Effect:     a.Effect,
		}
	}
	return QuoteDoc{
		ID:             q.ID,
		Number:         q.Number,
		ProductID:      q.ProductID,
		PackageID:      q.PackageID,
		Customer:       string(q.Customer),
		Risk: RiskDoc{
			Age:        q.Risk.Age,
			FamilySize: q.Risk.FamilySize,
			CoverType:  q.Risk.CoverType,
			SumInsured: q.Risk.SumInsured,
		},
		DurationMonths: q.DurationMonths,
		BasePremium:    q.BasePremium,
		MonthlyPremium: q.MonthlyPremium,
		TotalPremium:   q.TotalPremium,
		Currency:       q.Currency,
		Applied:        applied,
		Status:         string(q.Status),
		CreatedAt:      q.CreatedAt,
		ExpiresAt:      q.ExpiresAt,
		AcceptedAt:     q.AcceptedAt,
	}
}

func fromQuoteDoc(d QuoteDoc) core.Quote {
	applied := make([]core.AppliedFactor, len(d.Applied))
	for i, a := range d.Applied {
		applied[i] = core.AppliedFactor{
			Kind:       core.FactorKind(a.Kind),
			Key:        a.Key,
			Multiplier: a.Multiplier,
			Addition:   a.Addition,
			Effect:     a.Effect,
		}
	}
	var customer json.RawMessage
	if d.Customer != "" {
		customer = json.RawMessage(d.Customer)
	}
	return core.Quote{
		ID:        d.ID,
		Number:    d.Number,
		ProductID: d.ProductID,
		PackageID: d.PackageID,
		Customer:  customer,
		Risk: core.RiskProfile{
			Age:        d.Risk.Age,
			FamilySize: d.Risk.FamilySize,
			CoverType:  d.Risk.CoverType,
			SumInsured: d.Risk.SumInsured,
		},
		DurationMonths: d.DurationMonths,
		BasePremium:    d.BasePremium,
		MonthlyPremium: d.MonthlyPremium,
		TotalPremium:   d.TotalPremium,
		Currency:       d.Currency,
		Applied:        applied,
		Status:         core.QuoteStatus(d.Status),
		CreatedAt:      d.CreatedAt,
		ExpiresAt:      d.ExpiresAt,
		AcceptedAt:     d.AcceptedAt,
	}
}

type PolicyDoc struct {
	ID               string    `bson:"_id"`
	Number           string    `bson:"number"`   // unique index
	QuoteID          string    `bson:"quote_id"` // unique index: at most one policy per quote
	ProductID        string    `bson:"product_id"`
	PackageID        string    `bson:"package_id"`
	Customer         string    `bson:"customer,omitempty"`
	PremiumAmount    float64   `bson:"premium_amount"`
	Currency         string    `bson:"currency"`
	Status           string    `bson:"status"`
	EffectiveDate    time.Time `bson:"effective_date"`
	ExpiryDate       time.Time `bson:"expiry_date"`
	PaymentReference string    `bson:"payment_reference,omitempty"`
	IssuedAt         time.Time `bson:"issued_at"`
}

func toPolicyDoc(p core.Policy) PolicyDoc {
	return PolicyDoc{
		ID:               p.ID,
		Number:           p.Number,
		QuoteID:          p.QuoteID,
		ProductID:        p.ProductID,
		PackageID:        p.PackageID,
		Customer:         string(p.Customer),
		PremiumAmount:    p.PremiumAmount,
		Currency:         p.Currency,
		Status:           string(p.Status),
		EffectiveDate:    p.EffectiveDate,
		ExpiryDate:       p.ExpiryDate,
		PaymentReference: p.PaymentReference,
		IssuedAt:         p.IssuedAt,
	}
}

func fromPolicyDoc(d PolicyDoc) core.Policy {
	var customer json.RawMessage
	if d.Customer != "" {
		customer = json.RawMessage(d.Customer)
	}
	return core.Policy{
		ID:               d.ID,
		Number:           d.Number,
		QuoteID:          d.QuoteID,
		ProductID:        d.ProductID,
		PackageID:        d.PackageID,
		Customer:         customer,
		PremiumAmount:    d.PremiumAmount,
		Currency:         d.Currency,
		Status:           core.PolicyStatus(d.Status),
		EffectiveDate:    d.EffectiveDate,
		ExpiryDate:       d.ExpiryDate,
		PaymentReference: d.PaymentReference,
		IssuedAt:         d.IssuedAt,
	}
}

type PaymentDoc struct {
	ID                string    `bson:"_id"`
	PolicyID          string    `bson:"policy_id"` // unique index
	Amount            float64   `bson:"amount"`
	Currency          string    `bson:"currency"`
	Status            string    `bson:"status"`
	PaymentReference  string    `bson:"payment_reference,omitempty"`
	ExternalReference string    `bson:"external_reference,omitempty"`
	ProcessedAt       time.Time `bson:"processed_at"`
}

func toPaymentDoc(t core.PaymentTransaction) PaymentDoc {
	return PaymentDoc{
		ID:                t.ID,
		PolicyID:          t.PolicyID,
		Amount:            t.Amount,
		Currency:          t.Currency,
		Status:            string(t.Status),
		PaymentReference:  t.PaymentReference,
		ExternalReference: t.ExternalReference,
		ProcessedAt:       t.ProcessedAt,
	}
}

func fromPaymentDoc(d PaymentDoc) core.PaymentTransaction {
	return core.PaymentTransaction{
		ID:                d.ID,
		PolicyID:          d.PolicyID,
		Amount:            d.Amount,
		Currency:          d.Currency,
		Status:            core.TransactionStatus(d.Status),
		PaymentReference:  d.PaymentReference,
		ExternalReference: d.ExternalReference,
		ProcessedAt:       d.ProcessedAt,
	}
}
