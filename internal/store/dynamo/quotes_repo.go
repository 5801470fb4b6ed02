package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/coverstack/rating-engine/internal/core"
)

type RiskItem struct {
	Age        int     `dynamodbav:"age"`
	FamilySize int     `dynamodbav:"family_size"`
	CoverType  string  `dynamodbav:"cover_type,omitempty"`
	SumInsured float64 `dynamodbav:"sum_insured"`
}

type AppliedFactorItem struct {
	Kind       string  `dynamodbav:"kind"`
	Key        string  `dynamodbav:"factor_key"`
	Multiplier float64 `dynamodbav:"multiplier"`
	Addition   float64 `dynamodbav:"addition"`
	Effect     float64 `dynamodbav:"effect"`
}

type QuoteItem struct {
	ID             string              `dynamodbav:"id"`
	Number         string              `dynamodbav:"number"`
	ProductID      string              `dynamodbav:"product_id"`
	PackageID      string              `dynamodbav:"package_id"`
	Customer       string              `dynamodbav:"customer,omitempty"` // raw JSON
	Risk           RiskItem            `dynamodbav:"risk"`
	DurationMonths int                 `dynamodbav:"duration_months"`
	BasePremium    float64             `dynamodbav:"base_premium"`
	MonthlyPremium float64             `dynamodbav:"monthly_premium"`
	TotalPremium   float64             `dynamodbav:"total_premium"`
	Currency       string              `dynamodbav:"currency"`
	Applied        []AppliedFactorItem `dynamodbav:"applied_factors,omitempty"`
	Status         string              `dynamodbav:"status"`
	CreatedAt      string              `dynamodbav:"created_at"`
	ExpiresAt      string              `dynamodbav:"expires_at"`
	AcceptedAt     string              `dynamodbav:"accepted_at,omitempty"`
}

func (i QuoteItem) ToCore() core.Quote {
	createdAt, _ := time.Parse(time.RFC3339, i.CreatedAt)
	expiresAt, _ := time.Parse(time.RFC3339, i.ExpiresAt)

	var acceptedAt *time.Time
	if i.AcceptedAt != "" {
		t, err := time.Parse(time.RFC3339, i.AcceptedAt)
		if err == nil {
			acceptedAt = &t
		}
	}

	var customer json.RawMessage
	if i.Customer != "" {
		customer = json.RawMessage(i.Customer)
	}

	applied := make([]core.AppliedFactor, len(i.Applied))
	for n, a := range i.Applied {
		applied[n] = core.AppliedFactor{
			Kind:       core.FactorKind(a.Kind),
			Key:        a.Key,
			Multiplier: a.Multiplier,
			Addition:   a.Addition,
			Effect:     a.Effect,
		}
	}

	return core.Quote{
		ID:             i.ID,
		Number:         i.Number,
		ProductID:      i.ProductID,
		PackageID:      i.PackageID,
		Customer:       customer,
		Risk: core.RiskProfile{
			Age:        i.Risk.Age,
			FamilySize: i.Risk.FamilySize,
			CoverType:  i.Risk.CoverType,
			SumInsured: i.Risk.SumInsured,
		},
		DurationMonths: i.DurationMonths,
		BasePremium:    i.BasePremium,
		MonthlyPremium: i.MonthlyPremium,
		TotalPremium:   i.TotalPremium,
		Currency:       i.Currency,
		Applied:        applied,
		Status:         core.QuoteStatus(i.Status),
		CreatedAt:      createdAt,
		ExpiresAt:      expiresAt,
		AcceptedAt:     acceptedAt,
	}
}

func quoteItemFromCore(q core.Quote) QuoteItem {
	applied := make([]AppliedFactorItem, len(q.Applied))
	for n, a := range q.Applied {
		applied[n] = AppliedFactorItem{
			Kind:       string(a.Kind),
			Key:        a.Key,
			Multiplier: a.Multiplier,
			Addition:   a.Addition,
			Effect:     a.Effect,
		}
	}

	item := QuoteItem{
		ID:        q.ID,
		Number:    q.Number,
		ProductID: q.ProductID,
		PackageID: q.PackageID,
		Customer:  string(q.Customer),
		Risk: RiskItem{
			Age:        q.Risk.Age,
			FamilySize: q.Risk.FamilySize,
			CoverType:  q.Risk.CoverType,
			SumInsured: q.Risk.SumInsured,
		},
		DurationMonths: q.DurationMonths,
		BasePremium:    q.BasePremium,
		MonthlyPremium: q.MonthlyPremium,
		TotalPremium:   q.TotalPremium,
		Currency:       q.Currency,
		Applied:        applied,
		Status:         string(q.Status),
		CreatedAt:      q.CreatedAt.Format(time.RFC3339),
		ExpiresAt:      q.ExpiresAt.Format(time.RFC3339),
	}
	if q.AcceptedAt != nil {
		item.AcceptedAt = q.AcceptedAt.Format(time.RFC3339)
	}
	return item
}

type QuoteRepo struct {
	client *dynamodb.Client
}

func NewQuoteRepo(client *dynamodb.Client) *QuoteRepo {
	return &QuoteRepo{client: client}
}

func (r *QuoteRepo) Create(ctx context.Context, q core.Quote) error {
	av, err := attributevalue.MarshalMap(quoteItemFromCore(q))
	if err != nil {
		return fmt.Errorf("quotes.marshal: %w", err)
	}

	cond := expression.AttributeNotExists(expression.Name("id"))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("quotes.buildExpr: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(TableQuotes),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return core.ErrConflict
		}
		return fmt.Errorf("quotes.putItem: %w", err)
	}

	return nil
}

func (r *QuoteRepo) GetByNumber(ctx context.Context, number string) (core.Quote, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(TableQuotes),
		IndexName:              aws.String(GSIQuotesNumber),
		KeyConditionExpression: aws.String("#number = :number"),
		ExpressionAttributeNames: map[string]string{
			"#number": "number",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":number": &types.AttributeValueMemberS{Value: number},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return core.Quote{}, fmt.Errorf("quotes.query: %w", err)
	}

	if len(out.Items) == 0 {
		return core.Quote{}, core.ErrQuoteNotFound
	}

	var item QuoteItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return core.Quote{}, fmt.Errorf("quotes.unmarshal: %w", err)
	}

	return item.ToCore(), nil
}

// ExpireQuotes scans for overdue active quotes and flips them one by one with
// a conditional update. A quote accepted between the scan and the update is
// skipped, not clobbered.
func (r *QuoteRepo) ExpireQuotes(ctx context.Context, before time.Time) (int64, error) {
	filter := expression.Name("status").Equal(expression.Value(string(core.QuoteStatusActive))).
		And(expression.Name("expires_at").LessThanEqual(expression.Value(before.Format(time.RFC3339))))
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return 0, fmt.Errorf("quotes.buildExpr: %w", err)
	}

	var expired int64
	var startKey map[string]types.AttributeValue

	for {
		out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(TableQuotes),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return expired, fmt.Errorf("quotes.scan: %w", err)
		}

		for _, raw := range out.Items {
			var item QuoteItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return expired, fmt.Errorf("quotes.unmarshal: %w", err)
			}

			_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
				TableName: aws.String(TableQuotes),
				Key: map[string]types.AttributeValue{
					"id": &types.AttributeValueMemberS{Value: item.ID},
				},
				UpdateExpression:    aws.String("SET #status = :expired"),
				ConditionExpression: aws.String("#status = :active"),
				ExpressionAttributeNames: map[string]string{
					"#status": "status",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":expired": &types.AttributeValueMemberS{Value: string(core.QuoteStatusExpired)},
					":active":  &types.AttributeValueMemberS{Value: string(core.QuoteStatusActive)},
				},
			})
			if err != nil {
				var ccf *types.ConditionalCheckFailedException
				if errors.As(err, &ccf) {
					continue
				}
				return expired, fmt.Errorf("quotes.updateItem: %w", err)
			}
			expired++
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	return expired, nil
}
