package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/strata/mapping"
	"github.com/jacentio/strata/query"
	"github.com/jacentio/strata/store"
)

// Managed attributes written alongside the mapped fields.
const (
	AttrVersion   = "version"
	AttrCreatedAt = "created_at"
	AttrUpdatedAt = "updated_at"
)

// ErrAlreadyExists is returned when an insert collides with an existing id.
var ErrAlreadyExists = errors.New("strata: record already exists")

// API is the subset of the DynamoDB client the backend uses.
type API interface {
	dynamodb.ScanAPIClient
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Config holds configuration for the Backend.
type Config struct {
	// TTLAttribute is the table's TTL attribute.
	// Default: "ttl"
	TTLAttribute string

	// PageSize is the number of items evaluated per Scan page.
	// Default: 0 (DynamoDB's 1 MB page)
	// Max: 1000
	PageSize int32
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{TTLAttribute: "ttl"}
}

func (c *Config) validate() {
	if c.TTLAttribute == "" {
		c.TTLAttribute = "ttl"
	}
	if c.PageSize < 0 {
		c.PageSize = 0
	}
	if c.PageSize > 1000 {
		c.PageSize = 1000
	}
}

// Backend stores records in DynamoDB tables.
type Backend struct {
	client API
	config Config
	now    func() time.Time
}

// New creates a new Backend.
func New(client API, config Config) *Backend {
	config.validate()
	return &Backend{
		client: client,
		config: config,
		now:    time.Now,
	}
}

func (b *Backend) Name() string { return "dynamodb" }

func (b *Backend) Dialect() query.Dialect { return Dialect{} }

// Persist inserts the record with a new UUID when its id is empty and
// otherwise updates it in place. Updating a missing or soft-deleted record
// fails with store.ErrNotFound.
func (b *Backend) Persist(ctx context.Context, req store.PersistRequest) (string, error) {
	raw, _ := req.Object.Get(req.IDField)
	id, _ := raw.(string)
	if id == "" {
		return b.insert(ctx, req)
	}
	return "", b.update(ctx, req, id)
}

func (b *Backend) insert(ctx context.Context, req store.PersistRequest) (string, error) {
	now := b.now()
	nowISO := now.UTC().Format(time.RFC3339)
	id := uuid.NewString()

	attrs := req.Object.Map()
	attrs[req.IDField] = id
	item, err := attributevalue.MarshalMap(attrs)
	if err != nil {
		return "", fmt.Errorf("marshal item: %w", err)
	}
	item[AttrVersion] = &types.AttributeValueMemberN{Value: "1"}
	item[AttrCreatedAt] = &types.AttributeValueMemberS{Value: nowISO}
	item[AttrUpdatedAt] = &types.AttributeValueMemberS{Value: nowISO}

	_, err = b.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(req.Table),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": req.IDField},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return "", fmt.Errorf("%w: %s %s", ErrAlreadyExists, req.Table, id)
		}
		return "", err
	}
	return id, nil
}

func (b *Backend) update(ctx context.Context, req store.PersistRequest, id string) error {
	now := b.now()
	nowISO := now.UTC().Format(time.RFC3339)

	attrs := req.Object.Map()
	delete(attrs, req.IDField)
	item, err := attributevalue.MarshalMap(attrs)
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}

	exprNames := map[string]string{
		"#id":         req.IDField,
		"#updated_at": AttrUpdatedAt,
		"#created_at": AttrCreatedAt,
		"#version":    AttrVersion,
	}
	exprValues := map[string]types.AttributeValue{
		":updated_at": &types.AttributeValueMemberS{Value: nowISO},
		":zero":       &types.AttributeValueMemberN{Value: "0"},
		":one":        &types.AttributeValueMemberN{Value: "1"},
	}

	// Sorted for stable expressions.
	keys := make([]string, 0, len(item))
	for k := range item {
		if k == AttrVersion || k == AttrCreatedAt || k == AttrUpdatedAt || k == b.config.TTLAttribute {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	setClauses := make([]string, 0, len(keys)+3)
	for i, k := range keys {
		nameKey := fmt.Sprintf("#attr%d", i)
		valueKey := fmt.Sprintf(":val%d", i)
		exprNames[nameKey] = k
		exprValues[valueKey] = item[k]
		setClauses = append(setClauses, fmt.Sprintf("%s = %s", nameKey, valueKey))
	}
	setClauses = append(setClauses,
		"#updated_at = :updated_at",
		"#created_at = if_not_exists(#created_at, :updated_at)",
		"#version = if_not_exists(#version, :zero) + :one",
	)

	_, err = b.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(req.Table),
		Key:                       map[string]types.AttributeValue{req.IDField: &types.AttributeValueMemberS{Value: id}},
		UpdateExpression:          aws.String("SET " + strings.Join(setClauses, ", ")),
		ConditionExpression:       aws.String("attribute_exists(#id) AND (" + TTLFilterExpr() + ")"),
		ExpressionAttributeNames:  mergeExprNames(exprNames, TTLFilterNames(b.config.TTLAttribute)),
		ExpressionAttributeValues: mergeExprValues(exprValues, TTLFilterValues(now)),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("%w: %s %s", store.ErrNotFound, req.Table, id)
		}
		return err
	}
	return nil
}

// Query scans the table with the rendered filter and TTL filtering.
func (b *Backend) Query(ctx context.Context, req store.QueryRequest) ([]*mapping.StoreObject, error) {
	now := b.now()

	filterExpr := TTLFilterExpr()
	exprNames := TTLFilterNames(b.config.TTLAttribute)
	exprValues := TTLFilterValues(now)
	if !req.Expr.Empty() {
		filterExpr = fmt.Sprintf("(%s) AND (%s)", req.Expr.Text, filterExpr)
		exprNames = mergeExprNames(exprNames, req.Expr.Names)
		values, err := marshalValues(req.Expr.Values)
		if err != nil {
			return nil, err
		}
		exprValues = mergeExprValues(exprValues, values)
	}

	input := &dynamodb.ScanInput{
		TableName:                 aws.String(req.Table),
		FilterExpression:          aws.String(filterExpr),
		ExpressionAttributeNames:  exprNames,
		ExpressionAttributeValues: exprValues,
	}
	if b.config.PageSize > 0 {
		input.Limit = aws.Int32(b.config.PageSize)
	}

	var out []*mapping.StoreObject
	paginator := dynamodb.NewScanPaginator(b.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Items {
			if IsDeleted(raw, b.config.TTLAttribute, now) {
				continue
			}
			so, err := b.unmarshalItem(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, so)
			if req.Limit > 0 && len(out) == req.Limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// Delete marks the record for deletion by setting its TTL to now.
// It fails with store.ErrNotFound when the record is missing or already deleted.
func (b *Backend) Delete(ctx context.Context, req store.DeleteRequest) error {
	now := b.now()

	_, err := b.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(req.Table),
		Key:                 map[string]types.AttributeValue{req.IDField: &types.AttributeValueMemberS{Value: req.ID}},
		UpdateExpression:    aws.String("SET #ttl = :now, #version = if_not_exists(#version, :zero) + :one"),
		ConditionExpression: aws.String("attribute_exists(#id) AND attribute_not_exists(#ttl)"),
		ExpressionAttributeNames: map[string]string{
			"#id":      req.IDField,
			"#ttl":     b.config.TTLAttribute,
			"#version": AttrVersion,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now":  unixAttr(now),
			":zero": &types.AttributeValueMemberN{Value: "0"},
			":one":  &types.AttributeValueMemberN{Value: "1"},
		},
	})

	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return fmt.Errorf("%w: %s %s", store.ErrNotFound, req.Table, req.ID)
	}
	return err
}

// unmarshalItem converts a DynamoDB item to a StoreObject without the TTL attribute.
func (b *Backend) unmarshalItem(raw map[string]types.AttributeValue) (*mapping.StoreObject, error) {
	var m map[string]any
	err := attributevalue.UnmarshalMapWithOptions(raw, &m, func(o *attributevalue.DecoderOptions) {
		o.UseNumber = true
	})
	if err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	delete(m, b.config.TTLAttribute)
	for k, v := range m {
		m[k] = exactNumbers(v)
	}
	return mapping.StoreObjectFromMap(m), nil
}

// exactNumbers replaces attributevalue.Number with json.Number, which the
// mapping handlers read without a float64 round trip.
func exactNumbers(v any) any {
	switch t := v.(type) {
	case attributevalue.Number:
		return json.Number(t)
	case []attributevalue.Number:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = json.Number(n)
		}
		return out
	case map[string]any:
		for k, e := range t {
			t[k] = exactNumbers(e)
		}
	case []any:
		for i, e := range t {
			t[i] = exactNumbers(e)
		}
	}
	return v
}

func marshalValues(values map[string]any) (map[string]types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, len(values))
	for k, v := range values {
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", k, err)
		}
		out[k] = av
	}
	return out, nil
}
