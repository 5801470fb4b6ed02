package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/coverstack/rating-engine/internal/core"
)

type PaymentItem struct {
	ID                string  `dynamodbav:"id"`
	PolicyID          string  `dynamodbav:"policy_id"`
	Amount            float64 `dynamodbav:"amount"`
	Currency          string  `dynamodbav:"currency"`
	Status            string  `dynamodbav:"status"`
	PaymentReference  string  `dynamodbav:"payment_reference,omitempty"`
	ExternalReference string  `dynamodbav:"external_reference,omitempty"`
	ProcessedAt       string  `dynamodbav:"processed_at"`
}

func (i PaymentItem) ToCore() core.PaymentTransaction {
	processedAt, _ := time.Parse(time.RFC3339, i.ProcessedAt)
	return core.PaymentTransaction{
		ID:                i.ID,
		PolicyID:          i.PolicyID,
		Amount:            i.Amount,
		Currency:          i.Currency,
		Status:            core.TransactionStatus(i.Status),
		PaymentReference:  i.PaymentReference,
		ExternalReference: i.ExternalReference,
		ProcessedAt:       processedAt,
	}
}

func paymentItemFromCore(p core.PaymentTransaction) PaymentItem {
	return PaymentItem{
		ID:                p.ID,
		PolicyID:          p.PolicyID,
		Amount:            p.Amount,
		Currency:          p.Currency,
		Status:            string(p.Status),
		PaymentReference:  p.PaymentReference,
		ExternalReference: p.ExternalReference,
		ProcessedAt:       p.ProcessedAt.Format(time.RFC3339),
	}
}

type PaymentRepo struct {
	client *dynamodb.Client
}

func NewPaymentRepo(client *dynamodb.Client) *PaymentRepo {
	return &PaymentRepo{client: client}
}

func (r *PaymentRepo) GetByPolicyID(ctx context.Context, policyID string) (core.PaymentTransaction, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(TablePayments),
		IndexName:              aws.String(GSIPaymentsPolicy),
		KeyConditionExpression: aws.String("policy_id = :policy_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":policy_id": &types.AttributeValueMemberS{Value: policyID},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return core.PaymentTransaction{}, fmt.Errorf("payments.query: %w", err)
	}

	if len(out.Items) == 0 {
		return core.PaymentTransaction{}, core.ErrPaymentNotFound
	}

	var item PaymentItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return core.PaymentTransaction{}, fmt.Errorf("payments.unmarshal: %w", err)
	}
	return item.ToCore(), nil
}
