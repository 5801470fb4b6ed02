package dynamo

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/coverstack/rating-engine/internal/core"
)

type FactorItem struct {
	ID         string  `dynamodbav:"id"`
	ProductID  string  `dynamodbav:"product_id"`
	Kind       string  `dynamodbav:"kind"`
	Key        string  `dynamodbav:"factor_key"`
	Multiplier float64 `dynamodbav:"multiplier"`
	Addition   float64 `dynamodbav:"addition"`
	Position   int     `dynamodbav:"position"`
}

func (i FactorItem) ToCore() core.RatingFactor {
	return core.RatingFactor{
		ID:         i.ID,
		ProductID:  i.ProductID,
		Kind:       core.FactorKind(i.Kind),
		Key:        i.Key,
		Multiplier: i.Multiplier,
		Addition:   i.Addition,
		Position:   i.Position,
	}
}

func factorItemFromCore(f core.RatingFactor) FactorItem {
	return FactorItem{
		ID:         f.ID,
		ProductID:  f.ProductID,
		Kind:       string(f.Kind),
		Key:        f.Key,
		Multiplier: f.Multiplier,
		Addition:   f.Addition,
		Position:   f.Position,
	}
}

type FactorRepo struct {
	client *dynamodb.Client
}

func NewFactorRepo(client *dynamodb.Client) *FactorRepo {
	return &FactorRepo{client: client}
}

func (r *FactorRepo) ListByProduct(ctx context.Context, productID string) ([]core.RatingFactor, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(TableFactors),
		IndexName:              aws.String(GSIFactorsProduct),
		KeyConditionExpression: aws.String("product_id = :product_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":product_id": &types.AttributeValueMemberS{Value: productID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("factors.query: %w", err)
	}

	var items []FactorItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, fmt.Errorf("factors.unmarshal: %w", err)
	}

	// Position fixes evaluation order; the index does not.
	sort.Slice(items, func(a, b int) bool { return items[a].Position < items[b].Position })

	factors := make([]core.RatingFactor, len(items))
	for i, item := range items {
		factors[i] = item.ToCore()
	}
	return factors, nil
}

func (r *FactorRepo) Upsert(ctx context.Context, f core.RatingFactor) error {
	av, err := attributevalue.MarshalMap(factorItemFromCore(f))
	if err != nil {
		return fmt.Errorf("factors.marshal: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(TableFactors),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("factors.putItem: %w", err)
	}
	return nil
}
