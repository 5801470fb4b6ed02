package core

import (
	"context"
	"fmt"
	"time"
)

type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed"
)

// PaymentTransaction is the ledger row tying a policy to the money that paid
// for it. Payment itself is confirmed upstream before issuance; this row is
// the local audit record, written in the same atomic unit as the policy.
type PaymentTransaction struct {
	ID       string `json:"id"` // Caller-supplied, or generated (TXN-<uuid>)
	PolicyID string `json:"policy_id"`

	Amount   float64           `json:"amount"`
	Currency string            `json:"currency"`
	Status   TransactionStatus `json:"status"`

	PaymentReference  string `json:"payment_reference,omitempty"`
	ExternalReference string `json:"external_reference,omitempty"`

	ProcessedAt time.Time `json:"processed_at"`
}

type PaymentRepo interface {
	GetByPolicyID(ctx context.Context, policyID string) (PaymentTransaction, error)
}

var (
	ErrPaymentNotFound = fmt.Errorf("%w: payment transaction not found", ErrNotFound)
)
