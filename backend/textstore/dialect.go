package textstore

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/jacentio/strata/query"
)

// Operators is the JSONPath operator table.
var Operators = query.OperatorTable{
	Dialect: "textstore",
	Fragments: map[query.Operator]string{
		query.OpEquals:       "==",
		query.OpNotEquals:    "!=",
		query.OpLarger:       ">",
		query.OpLargerEqual:  ">=",
		query.OpSmaller:      "<",
		query.OpSmallerEqual: "<=",
		query.OpIn:           "in",
		query.OpNotIn:        "not in",
		query.OpContains:     "=~",
		query.OpStarts:       "=~",
		query.OpEnds:         "=~",
	},
}

// Dialect renders condition trees as JSONPath filter predicates with
// inline JSON literals.
type Dialect struct{}

func (Dialect) Name() string { return Operators.Dialect }

func (Dialect) Translate(op query.Operator) (string, error) {
	return Operators.Translate(op)
}

func (Dialect) Connective(l query.Logic) string {
	if l == query.LogicOr {
		return "||"
	}
	return "&&"
}

func (Dialect) Leaf(c *query.FieldCondition, fragment string, _ *query.Params) (string, error) {
	path := fieldPath(c.Field())

	switch c.Operator() {
	case query.OpIn, query.OpNotIn:
		list, err := literal(c, c.Values())
		if err != nil {
			return "", err
		}
		in := fmt.Sprintf("%s in %s", path, list)
		if c.Operator() == query.OpNotIn {
			return "!(" + in + ")", nil
		}
		return in, nil

	case query.OpContains, query.OpStarts, query.OpEnds:
		v, err := c.Single()
		if err != nil {
			return "", err
		}
		text, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("%w: %s on %s needs a string, got %T", query.ErrInvalidCondition, c.Operator(), c.Field(), v)
		}
		pattern := regexp.QuoteMeta(text)
		switch c.Operator() {
		case query.OpStarts:
			pattern = "^" + pattern
		case query.OpEnds:
			pattern = pattern + "$"
		}
		lit, err := literal(c, pattern)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", path, fragment, lit), nil

	default:
		v, err := c.Single()
		if err != nil {
			return "", err
		}
		lit, err := literal(c, v)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", path, fragment, lit), nil
	}
}

var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func fieldPath(field string) string {
	if identRE.MatchString(field) {
		return "@." + field
	}
	return fmt.Sprintf("@[%s]", quote(field))
}

func literal(c *query.FieldCondition, v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: value of %s: %v", query.ErrInvalidCondition, c.Field(), err)
	}
	return string(b), nil
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
