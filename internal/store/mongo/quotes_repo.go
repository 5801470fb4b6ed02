package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodrv "go.mongodb.org/mongo-driver/mongo"

	"github.com/coverstack/rating-engine/internal/core"
)

type QuoteRepoMongo struct {
	coll      *mongodrv.Collection
	opTimeout time.Duration
}

func NewQuoteRepo(db *mongodrv.Database, opTimeout time.Duration) *QuoteRepoMongo {
	return &QuoteRepoMongo{
		coll:      db.Collection(ColQuotes),
		opTimeout: opTimeout,
	}
}

func (repo *QuoteRepoMongo) Create(ctx context.Context, q core.Quote) error {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	doc := toQuoteDoc(q)
	_, err := repo.coll.InsertOne(ctx, doc)
	if err != nil {
		if isDupKey(err) {
			return core.ErrConflict
		}
		return fmt.Errorf("quotes.insert: %w", err)
	}
	return nil
}

func (repo *QuoteRepoMongo) GetByNumber(ctx context.Context, number string) (core.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	var doc QuoteDoc
	err := repo.coll.FindOne(ctx, bson.M{"number": number}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return core.Quote{}, core.ErrQuoteNotFound
		}
		return core.Quote{}, fmt.Errorf("quotes.findByNumber: %w", err)
	}
	return fromQuoteDoc(doc), nil
}

func (repo *QuoteRepoMongo) ExpireQuotes(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	filter := bson.M{
		"status":     string(core.QuoteStatusActive),
		"expires_at": bson.M{"$lt": before},
	}
	update := bson.M{
		"$set": bson.M{"status": string(core.QuoteStatusExpired)},
	}

	result, err := repo.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("quotes.expireMany: %w", err)
	}
	return result.ModifiedCount, nil
}

// isDupKey reports whether the error is a mongo duplicate-key violation.
func isDupKey(err error) bool {
	var we mongodrv.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongodrv.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	return false
}
