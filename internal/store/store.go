// internal/store/store.go
package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/sirupsen/logrus"

	"github.com/storesight/catalog-backend/internal/config"
)

// ErrConditionFailed reports a conditional write whose condition did not
// hold, here always "attribute does not exist yet".
var ErrConditionFailed = errors.New("conditional check failed")

// batchWriteMax is the DynamoDB cap on requests per BatchWriteItem call.
const batchWriteMax = 25

// Store is the narrow contract the repository needs from the backing
// key-value store: conditional put, point get, partial update, batched delete
// and cursor-paginated index queries.
type Store interface {
	// PutItem writes or overwrites one row.
	PutItem(table string, item Item) error
	// PutItemIfAbsent writes item only if no row carries keyAttr yet, and
	// returns ErrConditionFailed when one does.
	PutItemIfAbsent(table string, item Item, keyAttr string) error
	// GetItem point-reads a row; a missing row returns (nil, nil).
	GetItem(table string, key Item) (Item, error)
	// UpdateItemSet overwrites exactly the supplied attributes of one row.
	UpdateItemSet(table string, key Item, sets Item) error
	// BatchDeleteItems deletes the given keys; absent keys are not an error.
	BatchDeleteItems(table string, keys []Item) error
	// Query starts a fresh cursor walk matching the spec. Each call returns
	// an independent iterator, so a scan is restartable by querying again.
	Query(spec QuerySpec) *Iterator
}

// DynamoStore is the production Store backed by DynamoDB.
type DynamoStore struct {
	client dynamodbiface.DynamoDBAPI
	log    *logrus.Entry
}

// New builds a DynamoStore from process configuration.
func New(cfg *config.Config) (*DynamoStore, error) {
	awsConfig := &aws.Config{
		Region: aws.String(cfg.AWS.Region),
	}
	if cfg.AWS.AccessKeyID != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			cfg.AWS.AccessKeyID,
			cfg.AWS.SecretAccessKey,
			"",
		)
	}
	if cfg.AWS.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.AWS.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &DynamoStore{
		client: dynamodb.New(sess),
		log:    logrus.WithField("component", "store"),
	}, nil
}

// NewWithClient wires an existing DynamoDB client (local endpoints, tests).
func NewWithClient(client dynamodbiface.DynamoDBAPI) *DynamoStore {
	return &DynamoStore{
		client: client,
		log:    logrus.WithField("component", "store"),
	}
}

// Client exposes the underlying DynamoDB API for the schema layer.
func (s *DynamoStore) Client() dynamodbiface.DynamoDBAPI {
	return s.client
}

func (s *DynamoStore) PutItem(table string, item Item) error {
	_, err := s.client.PutItem(&dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put item in %s: %w", table, err)
	}
	return nil
}

func (s *DynamoStore) PutItemIfAbsent(table string, item Item, keyAttr string) error {
	_, err := s.client.PutItem(&dynamodb.PutItemInput{
		TableName:                aws.String(table),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#key)"),
		ExpressionAttributeNames: map[string]*string{"#key": aws.String(keyAttr)},
	})
	if err != nil {
		var awsErr awserr.Error
		if errors.As(err, &awsErr) && awsErr.Code() == dynamodb.ErrCodeConditionalCheckFailedException {
			return ErrConditionFailed
		}
		return fmt.Errorf("put item in %s: %w", table, err)
	}
	return nil
}

func (s *DynamoStore) GetItem(table string, key Item) (Item, error) {
	out, err := s.client.GetItem(&dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("get item from %s: %w", table, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	return out.Item, nil
}

func (s *DynamoStore) UpdateItemSet(table string, key Item, sets Item) error {
	if len(sets) == 0 {
		return nil
	}

	names := make(map[string]*string, len(sets))
	values := make(Item, len(sets))
	clauses := make([]string, 0, len(sets))
	i := 0
	for attr, value := range sets {
		nameRef := fmt.Sprintf("#a%d", i)
		valueRef := fmt.Sprintf(":a%d", i)
		names[nameRef] = aws.String(attr)
		values[valueRef] = value
		clauses = append(clauses, nameRef+" = "+valueRef)
		i++
	}

	_, err := s.client.UpdateItem(&dynamodb.UpdateItemInput{
		TableName:                 aws.String(table),
		Key:                       key,
		UpdateExpression:          aws.String("SET " + strings.Join(clauses, ", ")),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("update item in %s: %w", table, err)
	}
	return nil
}

func (s *DynamoStore) BatchDeleteItems(table string, keys []Item) error {
	for start := 0; start < len(keys); start += batchWriteMax {
		end := start + batchWriteMax
		if end > len(keys) {
			end = len(keys)
		}

		requests := make([]*dynamodb.WriteRequest, 0, end-start)
		for _, key := range keys[start:end] {
			requests = append(requests, &dynamodb.WriteRequest{
				DeleteRequest: &dynamodb.DeleteRequest{Key: key},
			})
		}

		pending := map[string][]*dynamodb.WriteRequest{table: requests}
		// Re-submit unprocessed requests the way the SDK batch helpers do.
		for attempt := 0; len(pending) > 0; attempt++ {
			if attempt >= 5 {
				return fmt.Errorf("batch delete from %s: unprocessed items after %d attempts", table, attempt)
			}
			out, err := s.client.BatchWriteItem(&dynamodb.BatchWriteItemInput{
				RequestItems: pending,
			})
			if err != nil {
				return fmt.Errorf("batch delete from %s: %w", table, err)
			}
			pending = out.UnprocessedItems
			if len(pending) > 0 {
				time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
			}
		}
	}
	return nil
}

func (s *DynamoStore) Query(spec QuerySpec) *Iterator {
	return NewIterator(spec, func(startKey Item, limit int64) ([]Item, Item, error) {
		input := &dynamodb.QueryInput{
			TableName:                 aws.String(spec.Table),
			KeyConditionExpression:    aws.String(spec.keyConditionExpression()),
			ExpressionAttributeNames:  spec.expressionNames(),
			ExpressionAttributeValues: spec.expressionValues(),
			ConsistentRead:            aws.Bool(spec.ConsistentRead),
		}
		if spec.Index != "" {
			input.IndexName = aws.String(spec.Index)
			// Consistent reads are not supported on global secondary indexes.
			input.ConsistentRead = nil
		}
		if len(spec.Projection) > 0 {
			input.ProjectionExpression = aws.String(spec.projectionExpression(input.ExpressionAttributeNames))
		}
		if startKey != nil {
			input.ExclusiveStartKey = startKey
		}
		if limit > 0 {
			// Applied by the store before any row-level post-filtering; the
			// iterator re-checks the yielded count.
			input.Limit = aws.Int64(limit)
		}

		out, err := s.client.Query(input)
		if err != nil {
			return nil, nil, fmt.Errorf("query %s: %w", spec.Table, err)
		}
		return out.Items, out.LastEvaluatedKey, nil
	})
}

// QuerySpec describes one index lookup: an equality key condition, optional
// projection, and the row-level hooks applied by the iterator.
type QuerySpec struct {
	Table string
	// Index selects a secondary index; empty queries the table itself.
	Index string

	HashKey   string
	HashValue *dynamodb.AttributeValue
	// RangeKey/RangeValue add an equality condition on the sort key.
	RangeKey   string
	RangeValue *dynamodb.AttributeValue

	// Projection restricts fetched attributes. Empty fetches everything.
	Projection     []string
	ConsistentRead bool

	// Limit bounds the total number of yielded rows across all pages. Rows
	// rejected by Filter do not count. Zero means unbounded.
	Limit int64
	// Filter drops rows before they are yielded or counted.
	Filter func(Item) bool
	// Transform rewrites each surviving row before it is yielded.
	Transform func(Item) Item
}

func (q QuerySpec) keyConditionExpression() string {
	expr := "#hk = :hk"
	if q.RangeKey != "" {
		expr += " AND #rk = :rk"
	}
	return expr
}

func (q QuerySpec) expressionNames() map[string]*string {
	names := map[string]*string{"#hk": aws.String(q.HashKey)}
	if q.RangeKey != "" {
		names["#rk"] = aws.String(q.RangeKey)
	}
	return names
}

func (q QuerySpec) expressionValues() Item {
	values := Item{":hk": q.HashValue}
	if q.RangeKey != "" {
		values[":rk"] = q.RangeValue
	}
	return values
}

func (q QuerySpec) projectionExpression(names map[string]*string) string {
	refs := make([]string, 0, len(q.Projection))
	for i, attr := range q.Projection {
		ref := fmt.Sprintf("#p%d", i)
		names[ref] = aws.String(attr)
		refs = append(refs, ref)
	}
	return strings.Join(refs, ",")
}
