package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/coverstack/rating-engine/internal/core"
)

type QuoteRepoMySQL struct {
	db *gorm.DB
}

func NewQuoteRepo(c *Client) *QuoteRepoMySQL {
	return &QuoteRepoMySQL{db: c.DB}
}

func (r *QuoteRepoMySQL) Create(ctx context.Context, q core.Quote) error {
	m := toQuoteModel(q)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return core.ErrConflict
		}
		return fmt.Errorf("quotes.insert: %w", err)
	}
	return nil
}

func (r *QuoteRepoMySQL) GetByNumber(ctx context.Context, number string) (core.Quote, error) {
	var m quoteModel
	err := r.db.WithContext(ctx).First(&m, "number = ?", number).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return core.Quote{}, core.ErrQuoteNotFound
		}
		return core.Quote{}, fmt.Errorf("quotes.get: %w", err)
	}
	return fromQuoteModel(m), nil
}

func (r *QuoteRepoMySQL) ExpireQuotes(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&quoteModel{}).
		Where("status = ? AND expires_at < ?", string(core.QuoteStatusActive), before).
		Update("status", string(core.QuoteStatusExpired))
	if res.Error != nil {
		return 0, fmt.Errorf("quotes.expire: %w", res.Error)
	}
	return res.RowsAffected, nil
}
