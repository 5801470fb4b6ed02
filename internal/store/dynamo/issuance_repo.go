package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/coverstack/rating-engine/internal/core"
)

// IssuanceRepo runs the issuance writes as one TransactWriteItems call. The
// quote update is conditioned on the stored status still being active, and
// the policy put is conditioned on the quote_id partition key not existing
// yet, so concurrent issuers cancel each other instead of double-writing.
type IssuanceRepo struct {
	client *dynamodb.Client
}

func NewIssuanceRepo(client *dynamodb.Client) *IssuanceRepo {
	return &IssuanceRepo{client: client}
}

func (r *IssuanceRepo) Issue(ctx context.Context, quoteID string, acceptedAt time.Time, policy core.Policy, payment core.PaymentTransaction) error {
	policyAV, err := attributevalue.MarshalMap(policyItemFromCore(policy))
	if err != nil {
		return fmt.Errorf("issuance.marshalPolicy: %w", err)
	}
	paymentAV, err := attributevalue.MarshalMap(paymentItemFromCore(payment))
	if err != nil {
		return fmt.Errorf("issuance.marshalPayment: %w", err)
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName: aws.String(TableQuotes),
					Key: map[string]types.AttributeValue{
						"id": &types.AttributeValueMemberS{Value: quoteID},
					},
					UpdateExpression:    aws.String("SET #status = :accepted, accepted_at = :accepted_at"),
					ConditionExpression: aws.String("#status = :active"),
					ExpressionAttributeNames: map[string]string{
						"#status": "status",
					},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":accepted":    &types.AttributeValueMemberS{Value: string(core.QuoteStatusAccepted)},
						":accepted_at": &types.AttributeValueMemberS{Value: acceptedAt.Format(time.RFC3339)},
						":active":      &types.AttributeValueMemberS{Value: string(core.QuoteStatusActive)},
					},
				},
			},
			{
				Put: &types.Put{
					TableName:           aws.String(TablePolicies),
					Item:                policyAV,
					ConditionExpression: aws.String("attribute_not_exists(quote_id)"),
				},
			},
			{
				Put: &types.Put{
					TableName: aws.String(TablePayments),
					Item:      paymentAV,
				},
			},
		},
	})
	if err == nil {
		return nil
	}

	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		// Reasons line up with TransactItems: 0 quote accept, 1 policy put.
		for i, reason := range canceled.CancellationReasons {
			if reason.Code == nil || *reason.Code != "ConditionalCheckFailed" {
				continue
			}
			switch i {
			case 0:
				return core.ErrQuoteConsumed
			case 1:
				return core.ErrPolicyExists
			}
		}
		return fmt.Errorf("%w: transaction canceled: %v", core.ErrUnavailable, err)
	}

	return fmt.Errorf("%w: %v", core.ErrUnavailable, err)
}
