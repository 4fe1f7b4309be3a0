// Package dynamodb implements the shared, cross-instance tier of the concept
// record cache on a DynamoDB table with TTL.
package dynamodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kenoir/weco-concept-explorer/domain/concept"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

var (
	// ErrTableNotFound means the configured cache table does not exist.
	ErrTableNotFound = errors.New("concept cache table not found")
	// ErrThrottled means DynamoDB rejected the request for capacity reasons.
	ErrThrottled = errors.New("concept cache throttled")
)

// API is the subset of the DynamoDB client used by the cache.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// conceptItem is the stored shape of one record.
type conceptItem struct {
	PK        string `dynamodbav:"PK"` // CONCEPT#<id>
	SK        string `dynamodbav:"SK"` // RECORD
	ConceptID string `dynamodbav:"ConceptID"`
	Label     string `dynamodbav:"Label"`
	Type      string `dynamodbav:"ConceptType"`
	Related   string `dynamodbav:"Related"` // relatedConcepts as JSON
	CachedAt  int64  `dynamodbav:"CachedAt"`
	TTL       int64  `dynamodbav:"TTL"` // epoch seconds, DynamoDB TTL attribute
}

const recordSK = "RECORD"

func conceptPK(id string) string { return "CONCEPT#" + id }

// ConceptCache stores concept records in DynamoDB.
type ConceptCache struct {
	client    API
	tableName string
	now       func() time.Time
	logger    *zap.Logger
}

// NewConceptCache creates a cache over the given table.
func NewConceptCache(client API, tableName string, logger *zap.Logger) *ConceptCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConceptCache{
		client:    client,
		tableName: tableName,
		now:       time.Now,
		logger:    logger,
	}
}

// Get implements ports.RecordCache. Items past their TTL are misses even if
// DynamoDB has not removed them yet.
func (c *ConceptCache) Get(ctx context.Context, id string) (*concept.Record, bool, error) {
	proj := expression.NamesList(
		expression.Name("ConceptID"),
		expression.Name("Label"),
		expression.Name("ConceptType"),
		expression.Name("Related"),
		expression.Name("CachedAt"),
		expression.Name("TTL"),
	)
	expr, err := expression.NewBuilder().WithProjection(proj).Build()
	if err != nil {
		return nil, false, fmt.Errorf("build projection: %w", err)
	}

	out, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: conceptPK(id)},
			"SK": &types.AttributeValueMemberS{Value: recordSK},
		},
		ProjectionExpression:     expr.Projection(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		return nil, false, classify("GetItem", err)
	}
	if out.Item == nil {
		return nil, false, nil
	}

	var item conceptItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, false, fmt.Errorf("unmarshal concept item: %w", err)
	}
	if item.TTL > 0 && c.now().Unix() >= item.TTL {
		return nil, false, nil
	}

	rec := &concept.Record{ID: item.ConceptID, Label: item.Label, Type: item.Type}
	if item.Related != "" {
		if err := json.Unmarshal([]byte(item.Related), &rec.RelatedConcepts); err != nil {
			return nil, false, fmt.Errorf("decode related concepts for %s: %w", id, err)
		}
	}
	return rec, true, nil
}

// Set implements ports.RecordCache. A newer copy already in the table is
// left in place.
func (c *ConceptCache) Set(ctx context.Context, record *concept.Record, ttl time.Duration) error {
	if !record.IsUsable() {
		return nil
	}
	related, err := json.Marshal(record.RelatedConcepts)
	if err != nil {
		return fmt.Errorf("encode related concepts: %w", err)
	}

	now := c.now()
	item, err := attributevalue.MarshalMap(conceptItem{
		PK:        conceptPK(record.ID),
		SK:        recordSK,
		ConceptID: record.ID,
		Label:     record.Label,
		Type:      record.Type,
		Related:   string(related),
		CachedAt:  now.UnixMilli(),
		TTL:       now.Add(ttl).Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal concept item: %w", err)
	}

	cond := expression.Or(
		expression.Name("PK").AttributeNotExists(),
		expression.Name("CachedAt").LessThan(expression.Value(now.UnixMilli())),
	)
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("build condition: %w", err)
	}

	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(c.tableName),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			c.logger.Debug("Newer concept already cached", zap.String("conceptID", record.ID))
			return nil
		}
		return classify("PutItem", err)
	}
	return nil
}

// classify maps DynamoDB API errors onto the cache's sentinels.
func classify(op string, err error) error {
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return fmt.Errorf("%s: %w", op, err)
	}
	switch ae.ErrorCode() {
	case "ResourceNotFoundException":
		return fmt.Errorf("%s: %w: %s", op, ErrTableNotFound, ae.ErrorMessage())
	case "ProvisionedThroughputExceededException", "RequestLimitExceeded", "ThrottlingException":
		return fmt.Errorf("%s: %w: %s", op, ErrThrottled, ae.ErrorMessage())
	default:
		return fmt.Errorf("%s: %s: %w", op, ae.ErrorCode(), err)
	}
}
