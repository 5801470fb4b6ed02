package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	if err := ensurePackagesIndexes(ctx, db); err != nil {
		return fmt.Errorf("ensure packages indexes: %w", err)
	}
	if err := ensureFactorsIndexes(ctx, db); err != nil {
		return fmt.Errorf("ensure rating_factors indexes: %w", err)
	}
	if err := ensureQuotesIndexes(ctx, db); err != nil {
		return fmt.Errorf("ensure quotes indexes: %w", err)
	}
	if err := ensurePoliciesIndexes(ctx, db); err != nil {
		return fmt.Errorf("ensure policies indexes: %w", err)
	}
	if err := ensurePaymentsIndexes(ctx, db); err != nil {
		return fmt.Errorf("ensure payment_transactions indexes: %w", err)
	}
	return nil
}

func ensurePackagesIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(ColPackages)
	models := []mongo.IndexModel{
		newIndex("product_id", 1, "packages_product_id", false),
	}
	_, err := coll.Indexes().CreateMany(ctx, models)
	return err
}

func ensureFactorsIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(ColFactors)
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "product_id", Value: 1}, {Key: "position", Value: 1}},
			Options: options.Index().SetName("factors_product_position"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, models)
	return err
}

func ensureQuotesIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(ColQuotes)
	models := []mongo.IndexModel{
		newIndex("number", 1, "quotes_number_unique", true),
		newIndex("status", 1, "quotes_status", false),
		newIndex("expires_at", 1, "quotes_expires_at", false),
	}
	_, err := coll.Indexes().CreateMany(ctx, models)
	return err
}

func ensurePoliciesIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(ColPolicies)
	models := []mongo.IndexModel{
		newIndex("number", 1, "policies_number_unique", true),
		// The at-most-one-policy-per-quote backstop.
		newIndex("quote_id", 1, "policies_quote_id_unique", true),
		newIndex("product_id", 1, "policies_product_id", false),
	}
	_, err := coll.Indexes().CreateMany(ctx, models)
	return err
}

func ensurePaymentsIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(ColPayments)
	models := []mongo.IndexModel{
		newIndex("policy_id", 1, "payments_policy_id_unique", true),
	}
	_, err := coll.Indexes().CreateMany(ctx, models)
	return err
}

func newIndex(field string, asc int32, name string, unique bool) mongo.IndexModel {
	opts := options.Index().SetName(name)
	if unique {
		opts = opts.SetUnique(true)
	}
	return mongo.IndexModel{
		Keys:    bson.D{{Key: field, Value: asc}},
		Options: opts,
	}
}
