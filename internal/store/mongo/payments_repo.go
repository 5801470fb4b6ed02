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

type PaymentRepoMongo struct {
	coll      *mongodrv.Collection
	opTimeout time.Duration
}

func NewPaymentRepo(db *mongodrv.Database, opTimeout time.Duration) *PaymentRepoMongo {
	return &PaymentRepoMongo{
		coll:      db.Collection(ColPayments),
		opTimeout: opTimeout,
	}
}

func (repo *PaymentRepoMongo) GetByPolicyID(ctx context.Context, policyID string) (core.PaymentTransaction, error) {
	ctx, cancel := context.WithTimeout(ctx, repo.opTimeout)
	defer cancel()

	var doc PaymentDoc
	err := repo.coll.FindOne(ctx, bson.M{"policy_id": policyID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return core.PaymentTransaction{}, core.ErrPaymentNotFound
		}
		return core.PaymentTransaction{}, fmt.Errorf("payments.findOne: %w", err)
	}
	return fromPaymentDoc(doc), nil
}
