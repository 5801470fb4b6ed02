package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/coverstack/rating-engine/internal/core"
)

type PolicyRepoMySQL struct {
	db *gorm.DB
}

func NewPolicyRepo(c *Client) *PolicyRepoMySQL {
	return &PolicyRepoMySQL{db: c.DB}
}

func (r *PolicyRepoMySQL) Get(ctx context.Context, id string) (core.Policy, error) {
	return r.getBy(ctx, "id = ?", id)
}

func (r *PolicyRepoMySQL) GetByNumber(ctx context.Context, number string) (core.Policy, error) {
	return r.getBy(ctx, "number = ?", number)
}

func (r *PolicyRepoMySQL) GetByQuoteID(ctx context.Context, quoteID string) (core.Policy, error) {
	return r.getBy(ctx, "quote_id = ?", quoteID)
}

func (r *PolicyRepoMySQL) getBy(ctx context.Context, cond string, arg string) (core.Policy, error) {
	var m policyModel
	err := r.db.WithContext(ctx).First(&m, cond, arg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return core.Policy{}, core.ErrPolicyNotFound
		}
		return core.Policy{}, fmt.Errorf("policies.get: %w", err)
	}
	return fromPolicyModel(m), nil
}

func (r *PolicyRepoMySQL) List(ctx context.Context, filter core.PolicyFilter, limit, offset int) ([]core.Policy, int64, error) {
	q := r.db.WithContext(ctx).Model(&policyModel{})
	if filter.ProductID != "" {
		q = q.Where("product_id = ?", filter.ProductID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("policies.count: %w", err)
	}

	var models []policyModel
	err := q.Order("issued_at DESC").Limit(limit).Offset(offset).Find(&models).Error
	if err != nil {
		return nil, 0, fmt.Errorf("policies.list: %w", err)
	}

	out := make([]core.Policy, len(models))
	for i, m := range models {
		out[i] = fromPolicyModel(m)
	}
	return out, total, nil
}

// NextPolicyNumber increments a per-year counter row. The LAST_INSERT_ID
// trick keeps the read on the same connection as the increment, so the
// transaction wrapper is what makes it race-free.
func (r *PolicyRepoMySQL) NextPolicyNumber(ctx context.Context) (string, error) {
	year := time.Now().Year()
	name := fmt.Sprintf("policy_%d", year)

	var seq int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Exec(
			"INSERT INTO counters (name, seq) VALUES (?, LAST_INSERT_ID(1)) "+
				"ON DUPLICATE KEY UPDATE seq = LAST_INSERT_ID(seq + 1)", name).Error
		if err != nil {
			return err
		}
		return tx.Raw("SELECT LAST_INSERT_ID()").Scan(&seq).Error
	})
	if err != nil {
		return "", fmt.Errorf("counters.next: %w", err)
	}

	return fmt.Sprintf("POL-%d-%06d", year, seq), nil
}
