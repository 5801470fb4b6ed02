package dynamo

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/coverstack/rating-engine/internal/core"
)

type PolicyItem struct {
	QuoteID          string  `dynamodbav:"quote_id"` // Partition key
	ID               string  `dynamodbav:"id"`
	Number           string  `dynamodbav:"number"`
	ProductID        string  `dynamodbav:"product_id"`
	PackageID        string  `dynamodbav:"package_id"`
	Customer         string  `dynamodbav:"customer,omitempty"` // raw JSON
	PremiumAmount    float64 `dynamodbav:"premium_amount"`
	Currency         string  `dynamodbav:"currency"`
	Status           string  `dynamodbav:"status"`
	EffectiveDate    string  `dynamodbav:"effective_date"`
	ExpiryDate       string  `dynamodbav:"expiry_date"`
	PaymentReference string  `dynamodbav:"payment_reference,omitempty"`
	IssuedAt         string  `dynamodbav:"issued_at"`
}

func (i PolicyItem) ToCore() core.Policy {
	effectiveDate, _ := time.Parse(time.RFC3339, i.EffectiveDate)
	expiryDate, _ := time.Parse(time.RFC3339, i.ExpiryDate)
	issuedAt, _ := time.Parse(time.RFC3339, i.IssuedAt)

	var customer json.RawMessage
	if i.Customer != "" {
		customer = json.RawMessage(i.Customer)
	}

	return core.Policy{
		ID:               i.ID,
		Number:           i.Number,
		QuoteID:          i.QuoteID,
		ProductID:        i.ProductID,
		PackageID:        i.PackageID,
		Customer:         customer,
		PremiumAmount:    i.PremiumAmount,
		Currency:         i.Currency,
		Status:           core.PolicyStatus(i.Status),
		EffectiveDate:    effectiveDate,
		ExpiryDate:       expiryDate,
		PaymentReference: i.PaymentReference,
		IssuedAt:         issuedAt,
	}
}

func policyItemFromCore(p core.Policy) PolicyItem {
	return PolicyItem{
		QuoteID:          p.QuoteID,
		ID:               p.ID,
		Number:           p.Number,
		ProductID:        p.ProductID,
		PackageID:        p.PackageID,
		Customer:         string(p.Customer),
		PremiumAmount:    p.PremiumAmount,
		Currency:         p.Currency,
		Status:           string(p.Status),
		EffectiveDate:    p.EffectiveDate.Format(time.RFC3339),
		ExpiryDate:       p.ExpiryDate.Format(time.RFC3339),
		PaymentReference: p.PaymentReference,
		IssuedAt:         p.IssuedAt.Format(time.RFC3339),
	}
}

type PolicyRepo struct {
	client *dynamodb.Client
}

func NewPolicyRepo(client *dynamodb.Client) *PolicyRepo {
	return &PolicyRepo{client: client}
}

func (r *PolicyRepo) Get(ctx context.Context, id string) (core.Policy, error) {
	return r.queryOne(ctx, GSIPoliciesID, "id = :v", id)
}

func (r *PolicyRepo) GetByNumber(ctx context.Context, number string) (core.Policy, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(TablePolicies),
		IndexName:              aws.String(GSIPoliciesNumber),
		KeyConditionExpression: aws.String("#number = :v"),
		ExpressionAttributeNames: map[string]string{
			"#number": "number",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberS{Value: number},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return core.Policy{}, fmt.Errorf("policies.query: %w", err)
	}
	return firstPolicy(out.Items)
}

func (r *PolicyRepo) GetByQuoteID(ctx context.Context, quoteID string) (core.Policy, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(TablePolicies),
		Key: map[string]types.AttributeValue{
			"quote_id": &types.AttributeValueMemberS{Value: quoteID},
		},
	})
	if err != nil {
		return core.Policy{}, fmt.Errorf("policies.getItem: %w", err)
	}

	if out.Item == nil {
		return core.Policy{}, core.ErrPolicyNotFound
	}

	var item PolicyItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return core.Policy{}, fmt.Errorf("policies.unmarshal: %w", err)
	}
	return item.ToCore(), nil
}

func (r *PolicyRepo) queryOne(ctx context.Context, index, keyCond, value string) (core.Policy, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(TablePolicies),
		IndexName:              aws.String(index),
		KeyConditionExpression: aws.String(keyCond),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberS{Value: value},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return core.Policy{}, fmt.Errorf("policies.query: %w", err)
	}
	return firstPolicy(out.Items)
}

func firstPolicy(items []map[string]types.AttributeValue) (core.Policy, error) {
	if len(items) == 0 {
		return core.Policy{}, core.ErrPolicyNotFound
	}

	var item PolicyItem
	if err := attributevalue.UnmarshalMap(items[0], &item); err != nil {
		return core.Policy{}, fmt.Errorf("policies.unmarshal: %w", err)
	}
	return item.ToCore(), nil
}

func (r *PolicyRepo) List(ctx context.Context, filter core.PolicyFilter, limit, offset int) ([]core.Policy, int64, error) {
	// Scan with filters; listing is an admin surface, not a hot path.
	var filterExpr expression.ConditionBuilder
	hasFilter := false

	if filter.ProductID != "" {
		filterExpr = expression.Name("product_id").Equal(expression.Value(filter.ProductID))
		hasFilter = true
	}
	if filter.Status != "" {
		statusFilter := expression.Name("status").Equal(expression.Value(string(filter.Status)))
		if hasFilter {
			filterExpr = filterExpr.And(statusFilter)
		} else {
			filterExpr = statusFilter
			hasFilter = true
		}
	}

	scanInput := &dynamodb.ScanInput{
		TableName: aws.String(TablePolicies),
	}
	if hasFilter {
		expr, err := expression.NewBuilder().WithFilter(filterExpr).Build()
		if err != nil {
			return nil, 0, fmt.Errorf("policies.buildExpr: %w", err)
		}
		scanInput.FilterExpression = expr.Filter()
		scanInput.ExpressionAttributeNames = expr.Names()
		scanInput.ExpressionAttributeValues = expr.Values()
	}

	var items []PolicyItem
	var startKey map[string]types.AttributeValue
	for {
		scanInput.ExclusiveStartKey = startKey
		out, err := r.client.Scan(ctx, scanInput)
		if err != nil {
			return nil, 0, fmt.Errorf("policies.scan: %w", err)
		}

		var page []PolicyItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, 0, fmt.Errorf("policies.unmarshal: %w", err)
		}
		items = append(items, page...)

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	// Newest first, matching the other backends.
	sort.Slice(items, func(a, b int) bool { return items[a].IssuedAt > items[b].IssuedAt })

	total := int64(len(items))
	if offset >= len(items) {
		return []core.Policy{}, total, nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	items = items[offset:end]

	policies := make([]core.Policy, len(items))
	for i, item := range items {
		policies[i] = item.ToCore()
	}
	return policies, total, nil
}

func (r *PolicyRepo) NextPolicyNumber(ctx context.Context) (string, error) {
	year := time.Now().Year()
	counterName := fmt.Sprintf("policy_%d", year)

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(TableCounters),
		Key: map[string]types.AttributeValue{
			"counter_name": &types.AttributeValueMemberS{Value: counterName},
		},
		UpdateExpression: aws.String("SET counter_value = if_not_exists(counter_value, :zero) + :inc"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero": &types.AttributeValueMemberN{Value: "0"},
			":inc":  &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return "", fmt.Errorf("counters.updateItem: %w", err)
	}

	counterValue, ok := out.Attributes["counter_value"].(*types.AttributeValueMemberN)
	if !ok {
		return "", fmt.Errorf("counters.updateItem: unexpected counter attribute type")
	}

	var num int
	fmt.Sscanf(counterValue.Value, "%d", &num)
	return fmt.Sprintf("POL-%d-%06d", year, num), nil
}
