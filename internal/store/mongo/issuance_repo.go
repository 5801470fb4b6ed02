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

// IssuanceRepoMongo runs the issuance writes inside a mongo session
// transaction. Requires a replica set (standalone mongod has no multi-
// document transactions).
type IssuanceRepoMongo struct {
	client   *mongodrv.Client
	quotes   *mongodrv.Collection
	policies *mongodrv.Collection
	payments *mongodrv.Collection
}

func NewIssuanceRepo(c *MongoClient) *IssuanceRepoMongo {
	return &IssuanceRepoMongo{
		client:   c.Client,
		quotes:   c.DB.Collection(ColQuotes),
		policies: c.DB.Collection(ColPolicies),
		payments: c.DB.Collection(ColPayments),
	}
}

// Issue performs the conditional accept, policy insert, and payment insert
// as one transaction. The status filter on the update is the optimistic
// check; the unique index on policies.quote_id is the backstop.
func (repo *IssuanceRepoMongo) Issue(ctx context.Context, quoteID string, acceptedAt time.Time, policy core.Policy, payment core.PaymentTransaction) error {
	session, err := repo.client.StartSession()
	if err != nil {
		return fmt.Errorf("%w: start session: %v", core.ErrUnavailable, err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongodrv.SessionContext) (interface{}, error) {
		res, err := repo.quotes.UpdateOne(sc,
			bson.M{"_id": quoteID, "status": string(core.QuoteStatusActive)},
			bson.M{"$set": bson.M{
				"status":      string(core.QuoteStatusAccepted),
				"accepted_at": acceptedAt,
			}})
		if err != nil {
			return nil, fmt.Errorf("quotes.accept: %w", err)
		}
		if res.MatchedCount == 0 {
			return nil, core.ErrQuoteConsumed
		}

		if _, err := repo.policies.InsertOne(sc, toPolicyDoc(policy)); err != nil {
			if isDupKey(err) {
				return nil, core.ErrPolicyExists
			}
			return nil, fmt.Errorf("policies.insert: %w", err)
		}

		if _, err := repo.payments.InsertOne(sc, toPaymentDoc(payment)); err != nil {
			return nil, fmt.Errorf("payments.insert: %w", err)
		}

		return nil, nil
	})

	if err != nil &&
		!errors.Is(err, core.ErrQuoteConsumed) &&
		!errors.Is(err, core.ErrPolicyExists) {
		return fmt.Errorf("%w: %v", core.ErrUnavailable, err)
	}
	return err
}
