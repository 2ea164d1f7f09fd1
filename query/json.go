package query

import (
	"encoding/json"
	"fmt"
)

// Conditions are encoded as
//
//	{"and": [{"field": "name", "op": "EQUALS", "values": ["x"]}, {"or": [...]}]}
type node struct {
	And    []node `json:"and"`
	Or     []node `json:"or"`
	Field  string `json:"field"`
	Op     string `json:"op"`
	Values []any  `json:"values"`
}

// MarshalJSON encodes a condition tree.
func MarshalJSON(c Condition) ([]byte, error) {
	v, err := encodeNode(c)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func encodeNode(c Condition) (map[string]any, error) {
	switch n := c.(type) {
	case *FieldCondition:
		return map[string]any{
			"field":  n.field,
			"op":     n.op.String(),
			"values": n.Values(),
		}, nil
	case *Container:
		children := make([]any, 0, len(n.children))
		for _, child := range n.children {
			enc, err := encodeNode(child)
			if err != nil {
				return nil, err
			}
			children = append(children, enc)
		}
		key := "and"
		if n.logic == LogicOr {
			key = "or"
		}
		return map[string]any{key: children}, nil
	default:
		return nil, fmt.Errorf("%w: unknown node %T", ErrInvalidCondition, c)
	}
}

// UnmarshalJSON decodes a condition tree produced by MarshalJSON.
func UnmarshalJSON(data []byte) (Condition, error) {
	var n node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCondition, err)
	}
	return decodeNode(n)
}

func decodeNode(n node) (Condition, error) {
	switch {
	case n.And != nil && n.Or != nil:
		return nil, fmt.Errorf("%w: node has both and/or", ErrInvalidCondition)
	case n.And != nil || n.Or != nil:
		list, logic := n.And, LogicAnd
		if n.Or != nil {
			list, logic = n.Or, LogicOr
		}
		children := make([]Condition, 0, len(list))
		for _, child := range list {
			c, err := decodeNode(child)
			if err != nil {
				return nil, err
			}
			children = append(children, c)
		}
		return newContainer(logic, children), nil
	case n.Field != "":
		op, err := ParseOperator(n.Op)
		if err != nil {
			return nil, err
		}
		return NewCondition(n.Field, op, n.Values...), nil
	default:
		return nil, fmt.Errorf("%w: node is neither a container nor a field condition", ErrInvalidCondition)
	}
}
