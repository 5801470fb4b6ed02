package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Table names
const (
	TablePackages = "rating_packages"
	TableFactors  = "rating_factors"
	TableQuotes   = "rating_quotes"
	TablePolicies = "rating_policies"
	TablePayments = "rating_payment_transactions"
	TableCounters = "rating_counters" // For policy number generation
)

// GSI names. Policies are keyed by quote_id (the partition key enforces the
// one-policy-per-quote invariant), so id and number lookups go through GSIs.
const (
	GSIQuotesNumber    = "number-index"
	GSIPoliciesID      = "id-index"
	GSIPoliciesNumber  = "number-index"
	GSIFactorsProduct  = "product_id-index"
	GSIPackagesProduct = "product_id-index"
	GSIPaymentsPolicy  = "policy_id-index"
)

// EnsureTables creates all required tables if they don't exist.
func EnsureTables(ctx context.Context, client *dynamodb.Client, log *slog.Logger) error {
	tables := []struct {
		name   string
		create func(context.Context, *dynamodb.Client) error
	}{
		{TablePackages, createPackagesTable},
		{TableFactors, createFactorsTable},
		{TableQuotes, createQuotesTable},
		{TablePolicies, createPoliciesTable},
		{TablePayments, createPaymentsTable},
		{TableCounters, createCountersTable},
	}

	for _, t := range tables {
		exists, err := tableExists(ctx, client, t.name)
		if err != nil {
			return fmt.Errorf("check table %s: %w", t.name, err)
		}
		if exists {
			log.Info("table exists", "table", t.name)
			continue
		}

		log.Info("creating table", "table", t.name)
		if err := t.create(ctx, client); err != nil {
			return fmt.Errorf("create table %s: %w", t.name, err)
		}
		log.Info("table created", "table", t.name)
	}

	return nil
}

func tableExists(ctx context.Context, client *dynamodb.Client, name string) (bool, error) {
	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(name),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func createPackagesTable(ctx context.Context, client *dynamodb.Client) error {
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(TablePackages),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("product_id"), AttributeType: types.ScalarAttributeTypeS},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String(GSIPackagesProduct),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("product_id"), KeyType: types.KeyTypeHash},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	return err
}

func createFactorsTable(ctx context.Context, client *dynamodb.Client) error {
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(TableFactors),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("product_id"), AttributeType: types.ScalarAttributeTypeS},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String(GSIFactorsProduct),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("product_id"), KeyType: types.KeyTypeHash},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	return err
}

func createQuotesTable(ctx context.Context, client *dynamodb.Client) error {
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(TableQuotes),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("number"), AttributeType: types.ScalarAttributeTypeS},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String(GSIQuotesNumber),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("number"), KeyType: types.KeyTypeHash},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	return err
}

func createPoliciesTable(ctx context.Context, client *dynamodb.Client) error {
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(TablePolicies),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("quote_id"), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("quote_id"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("number"), AttributeType: types.ScalarAttributeTypeS},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String(GSIPoliciesID),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
			{
				IndexName: aws.String(GSIPoliciesNumber),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("number"), KeyType: types.KeyTypeHash},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	return err
}

func createPaymentsTable(ctx context.Context, client *dynamodb.Client) error {
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(TablePayments),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("policy_id"), AttributeType: types.ScalarAttributeTypeS},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String(GSIPaymentsPolicy),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("policy_id"), KeyType: types.KeyTypeHash},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	return err
}

func createCountersTable(ctx context.Context, client *dynamodb.Client) error {
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(TableCounters),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("counter_name"), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("counter_name"), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	return err
}
