package mysql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/coverstack/rating-engine/internal/core"
)

type PaymentRepoMySQL struct {
	db *gorm.DB
}

func NewPaymentRepo(c *Client) *PaymentRepoMySQL {
	return &PaymentRepoMySQL{db: c.DB}
}

func (r *PaymentRepoMySQL) GetByPolicyID(ctx context.Context, policyID string) (core.PaymentTransaction, error) {
	var m paymentModel
	err := r.db.WithContext(ctx).First(&m, "policy_id = ?", policyID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return core.PaymentTransaction{}, core.ErrPaymentNotFound
		}
		return core.PaymentTransaction{}, fmt.Errorf("payments.get: %w", err)
	}
	return fromPaymentModel(m), nil
}
