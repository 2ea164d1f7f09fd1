package dynamo

import (
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// IsDeleted checks if an item has an expired TTL (is marked for deletion).
func IsDeleted(item map[string]types.AttributeValue, ttlAttr string, now time.Time) bool {
	ttlValue, exists := item[ttlAttr]
	if !exists {
		return false // No TTL = active
	}
	ttlNum, ok := ttlValue.(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	ttl, err := strconv.ParseInt(ttlNum.Value, 10, 64)
	if err != nil {
		return false
	}
	return ttl <= now.Unix()
}

// TTLFilterExpr returns the filter expression to exclude deleted items.
// Use with TTLFilterNames and TTLFilterValues.
func TTLFilterExpr() string {
	return "attribute_not_exists(#ttl) OR #ttl > :now"
}

// TTLFilterNames returns expression attribute names for the TTL filter.
func TTLFilterNames(ttlAttr string) map[string]string {
	return map[string]string{"#ttl": ttlAttr}
}

// TTLFilterValues returns expression attribute values for the TTL filter.
func TTLFilterValues(now time.Time) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		":now": unixAttr(now),
	}
}

func unixAttr(t time.Time) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(t.Unix(), 10)}
}

// mergeExprNames merges multiple expression attribute name maps.
func mergeExprNames(maps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

// mergeExprValues merges multiple expression attribute value maps.
func mergeExprValues(maps ...map[string]types.AttributeValue) map[string]types.AttributeValue {
	result := make(map[string]types.AttributeValue)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}
