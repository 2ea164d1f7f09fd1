package query

import "fmt"

// Operator is an abstract comparison operator.
type Operator int

const (
	OpEquals Operator = iota + 1
	OpNotEquals
	OpLarger
	OpLargerEqual
	OpSmaller
	OpSmallerEqual
	OpIn
	OpNotIn
	OpContains
	OpStarts
	OpEnds
)

var operatorNames = map[Operator]string{
	OpEquals:       "EQUALS",
	OpNotEquals:    "NOT_EQUALS",
	OpLarger:       "LARGER",
	OpLargerEqual:  "LARGER_EQUAL",
	OpSmaller:      "SMALLER",
	OpSmallerEqual: "SMALLER_EQUAL",
	OpIn:           "IN",
	OpNotIn:        "NOT_IN",
	OpContains:     "CONTAINS",
	OpStarts:       "STARTS",
	OpEnds:         "ENDS",
}

// Operators returns every operator in declaration order.
func Operators() []Operator {
	return []Operator{
		OpEquals, OpNotEquals,
		OpLarger, OpLargerEqual, OpSmaller, OpSmallerEqual,
		OpIn, OpNotIn,
		OpContains, OpStarts, OpEnds,
	}
}

func (o Operator) String() string {
	if name, ok := operatorNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// Valid reports whether o is a member of the operator set.
func (o Operator) Valid() bool {
	_, ok := operatorNames[o]
	return ok
}

// MultiValued reports whether the operator compares against a value list.
func (o Operator) MultiValued() bool {
	return o == OpIn || o == OpNotIn
}

// ParseOperator returns the operator with the given name (e.g. "LARGER_EQUAL").
func ParseOperator(name string) (Operator, error) {
	for op, n := range operatorNames {
		if n == name {
			return op, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown operator %q", ErrInvalidCondition, name)
}

// Logic is the connective of a Container.
type Logic int

const (
	LogicAnd Logic = iota + 1
	LogicOr
)

func (l Logic) String() string {
	switch l {
	case LogicAnd:
		return "AND"
	case LogicOr:
		return "OR"
	default:
		return fmt.Sprintf("Logic(%d)", int(l))
	}
}
