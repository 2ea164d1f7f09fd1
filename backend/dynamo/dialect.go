package dynamo

import (
	"fmt"
	"strings"

	"github.com/jacentio/strata/query"
)

// maxInOperands is DynamoDB's limit on the right-hand side of IN.
const maxInOperands = 100

// Operators is the DynamoDB operator table. ENDS is unsupported.
var Operators = query.OperatorTable{
	Dialect: "dynamodb",
	Fragments: map[query.Operator]string{
		query.OpEquals:       "=",
		query.OpNotEquals:    "<>",
		query.OpLarger:       ">",
		query.OpLargerEqual:  ">=",
		query.OpSmaller:      "<",
		query.OpSmallerEqual: "<=",
		query.OpIn:           "IN",
		query.OpNotIn:        "NOT IN",
		query.OpContains:     "contains",
		query.OpStarts:       "begins_with",
	},
}

// Dialect renders condition trees as DynamoDB filter expressions with
// placeholder attribute names and values.
type Dialect struct{}

func (Dialect) Name() string { return Operators.Dialect }

func (Dialect) Translate(op query.Operator) (string, error) {
	return Operators.Translate(op)
}

func (Dialect) Connective(l query.Logic) string { return l.String() }

// MaxOperands reports DynamoDB's IN limit.
func (Dialect) MaxOperands() int { return maxInOperands }

func (Dialect) Leaf(c *query.FieldCondition, fragment string, p *query.Params) (string, error) {
	name := p.Name(c.Field())

	switch c.Operator() {
	case query.OpIn, query.OpNotIn:
		values := c.Values()
		if len(values) > maxInOperands {
			return "", fmt.Errorf("%w: %s on %s has %d values, DynamoDB allows %d",
				query.ErrInvalidCondition, c.Operator(), c.Field(), len(values), maxInOperands)
		}
		marks := make([]string, len(values))
		for i, v := range values {
			marks[i] = p.Value(v)
		}
		in := fmt.Sprintf("%s IN (%s)", name, strings.Join(marks, ", "))
		if c.Operator() == query.OpNotIn {
			return "NOT (" + in + ")", nil
		}
		return in, nil

	case query.OpContains, query.OpStarts:
		v, err := c.Single()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s(%s, %s)", fragment, name, p.Value(v)), nil

	default:
		v, err := c.Single()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", name, fragment, p.Value(v)), nil
	}
}
