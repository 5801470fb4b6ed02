package mysql

import (
	"encoding/json"
	"time"

	"github.com/coverstack/rating-engine/internal/core"
)

type packageModel struct {
	ID             string  `gorm:"primaryKey;size:64"`
	ProductID      string  `gorm:"size:64;not null;index:idx_packages_product_id"`
	Name           string  `gorm:"size:255;not null"`
	Rate           float64 `gorm:"type:numeric(12,4);not null"`
	RateType       string  `gorm:"size:16;not null"`
	Currency       string  `gorm:"size:8;not null"`
	MinimumPremium float64 `gorm:"type:numeric(12,2)"`
	Benefits       []byte  `gorm:"type:json"`
	Limits         []byte  `gorm:"type:json"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (packageModel) TableName() string { return "packages" }

type factorModel struct {
	ID         string  `gorm:"primaryKey;size:64"`
	ProductID  string  `gorm:"size:64;not null;index:idx_factors_product_id"`
	Kind       string  `gorm:"size:32;not null"`
	FactorKey  string  `gorm:"size:64;not null"`
	Multiplier float64 `gorm:"type:numeric(10,4)"`
	Addition   float64 `gorm:"type:numeric(12,4)"`
	Position   int     `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (factorModel) TableName() string { return "rating_factors" }

type quoteModel struct {
	ID             string  `gorm:"primaryKey;size:64"`
	Number         string  `gorm:"size:64;not null;uniqueIndex:idx_quotes_number"`
	ProductID      string  `gorm:"size:64;not null;index:idx_quotes_product_id"`
	PackageID      string  `gorm:"size:64;not null"`
	Customer       []byte  `gorm:"type:json"`
	Risk           []byte  `gorm:"type:json"`
	DurationMonths int     `gorm:"not null"`
	BasePremium    float64 `gorm:"type:numeric(12,2);not null"`
	MonthlyPremium float64 `gorm:"type:numeric(12,2);not null"`
	TotalPremium   float64 `gorm:"type:numeric(12,2);not null"`
	Currency       string  `gorm:"size:8;not null"`
	Applied        []byte  `gorm:"type:json"`
	Status         string  `gorm:"size:16;not null;index:idx_quotes_status"`
	CreatedAt      time.Time
	ExpiresAt      time.Time `gorm:"index:idx_quotes_expires_at"`
	AcceptedAt     *time.Time
}

func (quoteModel) TableName() string { return "quotes" }

type policyModel struct {
	ID               string  `gorm:"primaryKey;size:64"`
	Number           string  `gorm:"size:64;not null;uniqueIndex:idx_policies_number"`
	QuoteID          string  `gorm:"size:64;not null;uniqueIndex:idx_policies_quote_id"`
	ProductID        string  `gorm:"size:64;not null;index:idx_policies_product_id"`
	PackageID        string  `gorm:"size:64;not null"`
	Customer         []byte  `gorm:"type:json"`
	PremiumAmount    float64 `gorm:"type:numeric(12,2);not null"`
	Currency         string  `gorm:"size:8;not null"`
	Status           string  `gorm:"size:16;not null;index:idx_policies_status"`
	EffectiveDate    time.Time
	ExpiryDate       time.Time
	PaymentReference string `gorm:"size:128"`
	IssuedAt         time.Time
}

func (policyModel) TableName() string { return "policies" }

type paymentModel struct {
	ID                string  `gorm:"primaryKey;size:64"`
	PolicyID          string  `gorm:"size:64;not null;uniqueIndex:idx_payments_policy_id"`
	Amount            float64 `gorm:"type:numeric(12,2);not null"`
	Currency          string  `gorm:"size:8;not null"`
	Status            string  `gorm:"size:16;not null"`
	PaymentReference  string  `gorm:"size:128"`
	ExternalReference string  `gorm:"size:128"`
	ProcessedAt       time.Time
}

func (paymentModel) TableName() string { return "payment_transactions" }

type counterModel struct {
	Name string `gorm:"primaryKey;size:64"`
	Seq  int64  `gorm:"not null"`
}

func (counterModel) TableName() string { return "counters" }

func toPackageModel(p core.Package) packageModel {
	benefits, _ := json.Marshal(p.Benefits)
	limits, _ := json.Marshal(p.Limits)
	return packageModel{
		ID:             p.ID,
		ProductID:      p.ProductID,
		Name:           p.Name,
		Rate:           p.Rate,
		RateType:       string(p.RateType),
		Currency:       p.Currency,
		MinimumPremium: p.MinimumPremium,
		Benefits:       benefits,
		Limits:         limits,
	}
}

func fromPackageModel(m packageModel) core.Package {
	p := core.Package{
		ID:             m.ID,
		ProductID:      m.ProductID,
		Name:           m.Name,
		Rate:           m.Rate,
		RateType:       core.RateType(m.RateType),
		Currency:       m.Currency,
		MinimumPremium: m.MinimumPremium,
	}
	_ = json.Unmarshal(m.Benefits, &p.Benefits)
	_ = json.Unmarshal(m.Limits, &p.Limits)
	return p
}

func toFactorModel(f core.RatingFactor) factorModel {
	return factorModel{
		ID:         f.ID,
		ProductID:  f.ProductID,
		Kind:       string(f.Kind),
		FactorKey:  f.Key,
		Multiplier: f.Multiplier,
		Addition:   f.Addition,
		Position:   f.Position,
	}
}

func fromFactorModel(m factorModel) core.RatingFactor {
	return core.RatingFactor{
		ID:         m.ID,
		ProductID:  m.ProductID,
		Kind:       core.FactorKind(m.Kind),
		Key:        m.FactorKey,
		Multiplier: m.Multiplier,
		Addition:   m.Addition,
		Position:   m.Position,
	}
}

func toQuoteModel(q core.Quote) quoteModel {
	risk, _ := json.Marshal(q.Risk)
	applied, _ := json.Marshal(q.Applied)
	return quoteModel{
		ID:             q.ID,
		Number:         q.Number,
		ProductID:      q.ProductID,
		PackageID:      q.PackageID,
		Customer:       q.Customer,
		Risk:           risk,
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

func fromQuoteModel(m quoteModel) core.Quote {
	q := core.Quote{
		ID:             m.ID,
		Number:         m.Number,
		ProductID:      m.ProductID,
		PackageID:      m.PackageID,
		Customer:       m.Customer,
		DurationMonths: m.DurationMonths,
		BasePremium:    m.BasePremium,
		MonthlyPremium: m.MonthlyPremium,
		TotalPremium:   m.TotalPremium,
		Currency:       m.Currency,
		Status:         core.QuoteStatus(m.Status),
		CreatedAt:      m.CreatedAt,
		ExpiresAt:      m.ExpiresAt,
		AcceptedAt:     m.AcceptedAt,
	}
	_ = json.Unmarshal(m.Risk, &q.Risk)
	_ = json.Unmarshal(m.Applied, &q.Applied)
	return q
}

func toPolicyModel(p core.Policy) policyModel {
	return policyModel{
		ID:               p.ID,
		Number:           p.Number,
		QuoteID:          p.QuoteID,
		ProductID:        p.ProductID,
		PackageID:        p.PackageID,
		Customer:         p.Customer,
		PremiumAmount:    p.PremiumAmount,
		Currency:         p.Currency,
		Status:           string(p.Status),
		EffectiveDate:    p.EffectiveDate,
		ExpiryDate:       p.ExpiryDate,
		PaymentReference: p.PaymentReference,
		IssuedAt:         p.IssuedAt,
	}
}

func fromPolicyModel(m policyModel) core.Policy {
	return core.Policy{
		ID:               m.ID,
		Number:           m.Number,
		QuoteID:          m.QuoteID,
		ProductID:        m.ProductID,
		PackageID:        m.PackageID,
		Customer:         m.Customer,
		PremiumAmount:    m.PremiumAmount,
		Currency:         m.Currency,
		Status:           core.PolicyStatus(m.Status),
		EffectiveDate:    m.EffectiveDate,
		ExpiryDate:       m.ExpiryDate,
		PaymentReference: m.PaymentReference,
		IssuedAt:         m.IssuedAt,
	}
}

func toPaymentModel(t core.PaymentTransaction) paymentModel {
	return paymentModel{
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

func fromPaymentModel(m paymentModel) core.PaymentTransaction {
	return core.PaymentTransaction{
		ID:                m.ID,
		PolicyID:          m.PolicyID,
		Amount:            m.Amount,
		Currency:          m.Currency,
		Status:            core.TransactionStatus(m.Status),
		PaymentReference:  m.PaymentReference,
		ExternalReference: m.ExternalReference,
		ProcessedAt:       m.ProcessedAt,
	}
}
