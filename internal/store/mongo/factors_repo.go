package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/coverstack/rating-engine/internal/core"
)

type FactorRepoMongo struct {
	coll      *mongodrv.Collection
	opTimeout time.Duration
}

func NewFactorRepo(db *mongodrv.Database, opTimeout time.Duration) *FactorRepoMongo {
	return &FactorRepoMongo{
		coll:      db.Collection(ColFactors),
		opTimeout: opTimeout,
	}
}

// ListByProduct returns factors sorted by position; that order fixes the
// calculation order and the audit trail.
func (repo *FactorRepoMongo) ListByProduct(ctx context.Context, productID string) ([]core.RatingFactor, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "position", Value: 1}})
	cursor, err := repo.coll.Find(ctx, bson.M{"product_id": productID}, opts)
	if err != nil {
		return nil, fmt.Errorf("factors.find: %w", err)
	}
	defer cursor.Close(ctx)

	var out []core.RatingFactor
	for cursor.Next(ctx) {
		var doc FactorDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("factors.decode: %w", err)
		}
		out = append(out, fromFactorDoc(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("factors.cursor: %w", err)
	}
	return out, nil
}

func (repo *FactorRepoMongo) Upsert(ctx context.Context, f core.RatingFactor) error {
	if err := f.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	doc := toFactorDoc(f)
	opts := options.Replace().SetUpsert(true)
	_, err := repo.coll.ReplaceOne(ctx, bson.M{"_id": f.ID}, doc, opts)
	if err != nil {
		return fmt.Errorf("factors.upsert: %w", err)
	}
	return nil
}
