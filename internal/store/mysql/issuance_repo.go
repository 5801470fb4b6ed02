package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/coverstack/rating-engine/internal/core"
)

type IssuanceRepoMySQL struct {
	db *gorm.DB
}

func NewIssuanceRepo(c *Client) *IssuanceRepoMySQL {
	return &IssuanceRepoMySQL{db: c.DB}
}

// Issue runs the three issuance writes in a single database transaction.
// The conditional status update is the first statement; its zero-row result
// is how a racing caller loses. The unique index on policies.quote_id is the
// second line of defense — even a bug that skipped the conditional update
// could not produce two policies for one quote.
func (r *IssuanceRepoMySQL) Issue(ctx context.Context, quoteID string, acceptedAt time.Time, policy core.Policy, payment core.PaymentTransaction) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&quoteModel{}).
			Where("id = ? AND status = ?", quoteID, string(core.QuoteStatusActive)).
			Updates(map[string]any{
				"status":      string(core.QuoteStatusAccepted),
				"accepted_at": acceptedAt,
			})
		if res.Error != nil {
			return fmt.Errorf("quotes.accept: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return core.ErrQuoteConsumed
		}

		pm := toPolicyModel(policy)
		if err := tx.Create(&pm).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return core.ErrPolicyExists
			}
			return fmt.Errorf("policies.insert: %w", err)
		}

		tm := toPaymentModel(payment)
		if err := tx.Create(&tm).Error; err != nil {
			return fmt.Errorf("payments.insert: %w", err)
		}

		return nil
	})

	// Business sentinels pass through untouched; anything else from the
	// driver is a transient storage failure the caller may retry.
	if err != nil &&
		!errors.Is(err, core.ErrQuoteConsumed) &&
		!errors.Is(err, core.ErrPolicyExists) {
		return fmt.Errorf("%w: %v", core.ErrUnavailable, err)
	}
	return err
}
