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

type PolicyRepoMongo struct {
	coll      *mongodrv.Collection
	counters  *mongodrv.Collection
	opTimeout time.Duration
}

func NewPolicyRepo(db *mongodrv.Database, opTimeout time.Duration) *PolicyRepoMongo {
	return &PolicyRepoMongo{
		coll:      db.Collection(ColPolicies),
		counters:  db.Collection(ColCounters),
		opTimeout: opTimeout,
	}
}

func (repo *PolicyRepoMongo) Get(ctx context.Context, id string) (core.Policy, error) {
	return repo.findOne(ctx, bson.M{"_id": id})
}

func (repo *PolicyRepoMongo) GetByNumber(ctx context.Context, number string) (core.Policy, error) {
	return repo.findOne(ctx, bson.M{"number": number})
}

func (repo *PolicyRepoMongo) GetByQuoteID(ctx context.Context, quoteID string) (core.Policy, error) {
	return repo.findOne(ctx, bson.M{"quote_id": quoteID})
}

func (repo *PolicyRepoMongo) findOne(ctx context.Context, filter bson.M) (core.Policy, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	var doc PolicyDoc
	err := repo.coll.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return core.Policy{}, core.ErrPolicyNotFound
		}
		return core.Policy{}, fmt.Errorf("policies.findOne: %w", err)
	}
	return fromPolicyDoc(doc), nil
}

func (repo *PolicyRepoMongo) List(ctx context.Context, filter core.PolicyFilter, limit, offset int) ([]core.Policy, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	mongoFilter := bson.M{}
	if filter.ProductID != "" {
		mongoFilter["product_id"] = filter.ProductID
	}
	if filter.Status != "" {
		mongoFilter["status"] = string(filter.Status)
	}

	total, err := repo.coll.CountDocuments(ctx, mongoFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("policies.count: %w", err)
	}

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64(offset)).
		SetSort(bson.D{{Key: "issued_at", Value: -1}})

	cursor, err := repo.coll.Find(ctx, mongoFilter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("policies.find: %w", err)
	}
	defer cursor.Close(ctx)

	var policies []core.Policy
	for cursor.Next(ctx) {
		var doc PolicyDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, 0, fmt.Errorf("policies.decode: %w", err)
		}
		policies = append(policies, fromPolicyDoc(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, fmt.Errorf("policies.cursor: %w", err)
	}

	return policies, total, nil
}

func (repo *PolicyRepoMongo) NextPolicyNumber(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	year := time.Now().Year()
	counterID := fmt.Sprintf("policy_%d", year)

	// Atomic increment using FindOneAndUpdate with upsert
	filter := bson.M{"_id": counterID}
	update := bson.M{"$inc": bson.M{"seq": 1}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var result struct {
		Seq int64 `bson:"seq"`
	}

	err := repo.counters.FindOneAndUpdate(ctx, filter, update, opts).Decode(&result)
	if err != nil {
		return "", fmt.Errorf("policies.nextNumber: %w", err)
	}

	return fmt.Sprintf("POL-%d-%06d", year, result.Seq), nil
}
