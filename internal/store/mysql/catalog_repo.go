package mysql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coverstack/rating-engine/internal/core"
)

type CatalogRepoMySQL struct {
	db *gorm.DB
}

func NewCatalogRepo(c *Client) *CatalogRepoMySQL {
	return &CatalogRepoMySQL{db: c.DB}
}

func (r *CatalogRepoMySQL) ListPackages(ctx context.Context, productID string) ([]core.Package, error) {
	var models []packageModel
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("id").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("packages.list: %w", err)
	}
	if len(models) == 0 {
		return nil, core.ErrProductNotFound
	}

	out := make([]core.Package, len(models))
	for i, m := range models {
		out[i] = fromPackageModel(m)
	}
	return out, nil
}

func (r *CatalogRepoMySQL) GetPackage(ctx context.Context, packageID string) (core.Package, error) {
	var m packageModel
	err := r.db.WithContext(ctx).First(&m, "id = ?", packageID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return core.Package{}, core.ErrPackageNotFound
		}
		return core.Package{}, fmt.Errorf("packages.get: %w", err)
	}
	return fromPackageModel(m), nil
}

func (r *CatalogRepoMySQL) UpsertPackage(ctx context.Context, p core.Package) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m := toPackageModel(p)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&m).Error
	if err != nil {
		return fmt.Errorf("packages.upsert: %w", err)
	}
	return nil
}
