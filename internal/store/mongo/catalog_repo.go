package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/coverstack/rating-engine/internal/core"
)

type CatalogRepoMongo struct {
	coll      *mongodrv.Collection
	opTimeout time.Duration
}

func NewCatalogRepo(db *mongodrv.Database, opTimeout time.Duration) *CatalogRepoMongo {
	return &CatalogRepoMongo{
		coll:      db.Collection(ColPackages),
		opTimeout: opTimeout,
	}
}

func (repo *CatalogRepoMongo) ListPackages(ctx context.Context, productID string) ([]core.Package, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := repo.coll.Find(ctx, bson.M{"product_id": productID}, opts)
	if err != nil {
		return nil, fmt.Errorf("packages.find: %w", err)
	}
	defer cursor.Close(ctx)

	var out []core.Package
	for cursor.Next(ctx) {
		var doc PackageDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("packages.decode: %w", err)
		}
		out = append(out, fromPackageDoc(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("packages.cursor: %w", err)
	}
	if len(out) == 0 {
		return nil, core.ErrProductNotFound
	}
	return out, nil
}

func (repo *CatalogRepoMongo) GetPackage(ctx context.Context, packageID string) (core.Package, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	var doc PackageDoc
	err := repo.coll.FindOne(ctx, bson.M{"_id": packageID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return core.Package{}, core.ErrPackageNotFound
		}
		return core.Package{}, fmt.Errorf("packages.findOne: %w", err)
	}
	return fromPackageDoc(doc), nil
}

func (repo *CatalogRepoMongo) UpsertPackage(ctx context.Context, p core.Package) error {
	if err := p.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	doc := toPackageDoc(p)
	opts := options.Replace().SetUpsert(true)
	_, err := repo.coll.ReplaceOne(ctx, bson.M{"_id": p.ID}, doc, opts)
	if err != nil {
		return fmt.Errorf("packages.upsert: %w", err)
	}
	return nil
}
