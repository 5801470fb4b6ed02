package mysql

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coverstack/rating-engine/internal/core"
)

type FactorRepoMySQL struct {
	db *gorm.DB
}

func NewFactorRepo(c *Client) *FactorRepoMySQL {
	return &FactorRepoMySQL{db: c.DB}
}

// ListByProduct returns factors in definition order; that order fixes both
// calculation order and the audit trail.
func (r *FactorRepoMySQL) ListByProduct(ctx context.Context, productID string) ([]core.RatingFactor, error) {
	var models []factorModel
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("position").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("factors.list: %w", err)
	}

	out := make([]core.RatingFactor, len(models))
	for i, m := range models {
		out[i] = fromFactorModel(m)
	}
	return out, nil
}

func (r *FactorRepoMySQL) Upsert(ctx context.Context, f core.RatingFactor) error {
	if err := f.Validate(); err != nil {
		return err
	}
	m := toFactorModel(f)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&m).Error
	if err != nil {
		return fmt.Errorf("factors.upsert: %w", err)
	}
	return nil
}
