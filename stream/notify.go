package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/strata/mapping"
	"github.com/jacentio/strata/store"
)

// Handler processes DynamoDB stream events into store notifications.
type Handler struct {
	store   *store.Store
	logger  *slog.Logger
	ttlAttr string
}

// NewHandler creates a new stream handler.
func NewHandler(s *store.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:   s,
		logger:  logger,
		ttlAttr: "ttl",
	}
}

// WithTTLAttribute sets the TTL attribute name used by the dynamo backend.
func (h *Handler) WithTTLAttribute(name string) *Handler {
	if name != "" {
		h.ttlAttr = name
	}
	return h
}

// HandleEvent delivers a notification per relevant record.
// This function is designed to be used as an AWS Lambda handler.
func (h *Handler) HandleEvent(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	event, image, ok := classify(record, h.ttlAttr)
	if !ok {
		return nil
	}

	table := tableFromARN(record.EventSourceArn)
	m, ok := h.store.Registry().MapperForTable(table)
	if !ok {
		h.logger.Debug("skipping record of unmapped table", "table", table, "eventID", record.EventID)
		return nil
	}

	so := mapping.StoreObjectFromMap(imageToMap(image, h.ttlAttr))
	id := getStringAttr(image, m.IDField().Name)

	entity, err := h.store.Decode(ctx, m, so)
	if err != nil {
		if event != store.EventRemoved {
			return fmt.Errorf("decode %s %s: %w", m.Name(), id, err)
		}
		// references of a removed record may already be gone
		h.logger.Warn("delivering removed record without entity",
			"type", m.Name(),
			"id", id,
			"error", err,
		)
		entity = nil
	}

	h.logger.Info("delivering change notification",
		"type", m.Name(),
		"id", id,
		"event", event.String(),
	)
	return h.store.Notify(ctx, store.Notification{
		Event:  event,
		Type:   m,
		ID:     id,
		Entity: entity,
		Object: so,
	})
}

// classify maps a stream record to the notification it produces and the
// image describing the record.
func classify(record events.DynamoDBEventRecord, ttlAttr string) (store.Event, map[string]events.DynamoDBAttributeValue, bool) {
	switch record.EventName {
	case "INSERT":
		return store.EventChanged, record.Change.NewImage, true

	case "MODIFY":
		oldTTL := getNumberAttr(record.Change.OldImage, ttlAttr)
		newTTL := getNumberAttr(record.Change.NewImage, ttlAttr)
		switch {
		case oldTTL != 0:
			// already removed
			return 0, nil, false
		case newTTL != 0:
			return store.EventRemoved, record.Change.NewImage, true
		default:
			return store.EventChanged, record.Change.NewImage, true
		}

	case "REMOVE":
		// expiry of a soft-deleted record was reported when its TTL was set
		if getNumberAttr(record.Change.OldImage, ttlAttr) != 0 {
			return 0, nil, false
		}
		return store.EventRemoved, record.Change.OldImage, true
	}
	return 0, nil, false
}

// tableFromARN extracts the table name from a stream ARN such as
// arn:aws:dynamodb:us-east-1:123456789012:table/users/stream/2024-01-01T00:00:00.000.
func tableFromARN(arn string) string {
	_, rest, ok := strings.Cut(arn, ":table/")
	if !ok {
		return ""
	}
	table, _, _ := strings.Cut(rest, "/")
	return table
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

// getNumberAttr extracts a number attribute from a DynamoDB stream image.
func getNumberAttr(image map[string]events.DynamoDBAttributeValue, key string) int64 {
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeNumber {
			n, _ := strconv.ParseInt(v.Number(), 10, 64)
			return n
		}
	}
	return 0
}

// imageToMap converts a stream image to plain values, dropping the TTL attribute.
func imageToMap(image map[string]events.DynamoDBAttributeValue, ttlAttr string) map[string]any {
	out := make(map[string]any, len(image))
	for k, v := range image {
		if k == ttlAttr {
			continue
		}
		out[k] = attributeValue(v)
	}
	return out
}

// attributeValue converts one stream attribute. Integral numbers become
// int64, other numbers float64; sets become lists.
func attributeValue(v events.DynamoDBAttributeValue) any {
	switch v.DataType() {
	case events.DataTypeString:
		return v.String()
	case events.DataTypeNumber:
		return number(v.Number())
	case events.DataTypeBoolean:
		return v.Boolean()
	case events.DataTypeBinary:
		return v.Binary()
	case events.DataTypeNull:
		return nil
	case events.DataTypeList:
		list := v.List()
		out := make([]any, len(list))
		for i, item := range list {
			out[i] = attributeValue(item)
		}
		return out
	case events.DataTypeMap:
		m := v.Map()
		out := make(map[string]any, len(m))
		for k, item := range m {
			out[k] = attributeValue(item)
		}
		return out
	case events.DataTypeStringSet:
		set := v.StringSet()
		out := make([]any, len(set))
		for i, s := range set {
			out[i] = s
		}
		return out
	case events.DataTypeNumberSet:
		set := v.NumberSet()
		out := make([]any, len(set))
		for i, s := range set {
			out[i] = number(s)
		}
		return out
	case events.DataTypeBinarySet:
		set := v.BinarySet()
		out := make([]any, len(set))
		for i, b := range set {
			out[i] = b
		}
		return out
	}
	return nil
}

func number(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
