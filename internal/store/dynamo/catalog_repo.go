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

type PackageItem struct {
	ID             string            `dynamodbav:"id"`
	ProductID      string            `dynamodbav:"product_id"`
	Name           string            `dynamodbav:"name"`
	Rate           float64           `dynamodbav:"rate"`
	RateType       string            `dynamodbav:"rate_type"`
	Currency       string            `dynamodbav:"currency"`
	MinimumPremium float64           `dynamodbav:"minimum_premium"`
	Benefits       []string          `dynamodbav:"benefits,omitempty"`
	Limits         map[string]string `dynamodbav:"limits,omitempty"`
}

func (i PackageItem) ToCore() core.Package {
	return core.Package{
		ID:             i.ID,
		ProductID:      i.ProductID,
		Name:           i.Name,
		Rate:           i.Rate,
		RateType:       core.RateType(i.RateType),
		Currency:       i.Currency,
		MinimumPremium: i.MinimumPremium,
		Benefits:       i.Benefits,
		Limits:         i.Limits,
	}
}

func packageItemFromCore(p core.Package) PackageItem {
	return PackageItem{
		ID:             p.ID,
		ProductID:      p.ProductID,
		Name:           p.Name,
		Rate:           p.Rate,
		RateType:       string(p.RateType),
		Currency:       p.Currency,
		MinimumPremium: p.MinimumPremium,
		Benefits:       p.Benefits,
		Limits:         p.Limits,
	}
}

type CatalogRepo struct {
	client *dynamodb.Client
}

func NewCatalogRepo(client *dynamodb.Client) *CatalogRepo {
	return &CatalogRepo{client: client}
}

func (r *CatalogRepo) ListPackages(ctx context.Context, productID string) ([]core.Package, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(TablePackages),
		IndexName:              aws.String(GSIPackagesProduct),
		KeyConditionExpression: aws.String("product_id = :product_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":product_id": &types.AttributeValueMemberS{Value: productID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("packages.query: %w", err)
	}

	if len(out.Items) == 0 {
		return nil, core.ErrProductNotFound
	}

	var items []PackageItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, fmt.Errorf("packages.unmarshal: %w", err)
	}

	// GSI queries do not guarantee order; the catalog orders by package ID.
	sort.Slice(items, func(a, b int) bool { return items[a].ID < items[b].ID })

	packages := make([]core.Package, len(items))
	for i, item := range items {
		packages[i] = item.ToCore()
	}
	return packages, nil
}

func (r *CatalogRepo) GetPackage(ctx context.Context, packageID string) (core.Package, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(TablePackages),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: packageID},
		},
	})
	if err != nil {
		return core.Package{}, fmt.Errorf("packages.getItem: %w", err)
	}

	if out.Item == nil {
		return core.Package{}, core.ErrPackageNotFound
	}

	var item PackageItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return core.Package{}, fmt.Errorf("packages.unmarshal: %w", err)
	}

	return item.ToCore(), nil
}

func (r *CatalogRepo) UpsertPackage(ctx context.Context, p core.Package) error {
	av, err := attributevalue.MarshalMap(packageItemFromCore(p))
	if err != nil {
		return fmt.Errorf("packages.marshal: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(TablePackages),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("packages.putItem: %w", err)
	}
	return nil
}
