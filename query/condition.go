package query

import (
	"fmt"
	"reflect"
	"strings"
)

// Condition is a node of the condition tree.
type Condition interface {
	// Equal reports structural equality. Child order is part of a container's identity.
	Equal(other Condition) bool
	String() string

	condition()
}

// FieldCondition compares one field against one or more values. It is immutable.
type FieldCondition struct {
	field  string
	op     Operator
	values []any
}

// NewCondition creates a leaf condition. The values slice is copied.
func NewCondition(field string, op Operator, values ...any) *FieldCondition {
	return &FieldCondition{
		field:  field,
		op:     op,
		values: append([]any(nil), values...),
	}
}

func Eq(field string, value any) *FieldCondition { return NewCondition(field, OpEquals, value) }
func Ne(field string, value any) *FieldCondition { return NewCondition(field, OpNotEquals, value) }
func Gt(field string, value any) *FieldCondition { return NewCondition(field, OpLarger, value) }
func Ge(field string, value any) *FieldCondition { return NewCondition(field, OpLargerEqual, value) }
func Lt(field string, value any) *FieldCondition { return NewCondition(field, OpSmaller, value) }
func Le(field string, value any) *FieldCondition { return NewCondition(field, OpSmallerEqual, value) }

func In(field string, values ...any) *FieldCondition { return NewCondition(field, OpIn, values...) }
func NotIn(field string, values ...any) *FieldCondition {
	return NewCondition(field, OpNotIn, values...)
}

func Contains(field, text string) *FieldCondition   { return NewCondition(field, OpContains, text) }
func StartsWith(field, text string) *FieldCondition { return NewCondition(field, OpStarts, text) }
func EndsWith(field, text string) *FieldCondition   { return NewCondition(field, OpEnds, text) }

func (c *FieldCondition) Field() string      { return c.field }
func (c *FieldCondition) Operator() Operator { return c.op }

// Values returns a copy of the comparison values.
func (c *FieldCondition) Values() []any {
	return append([]any(nil), c.values...)
}

// Single returns the only comparison value of a single-valued operator.
func (c *FieldCondition) Single() (any, error) {
	if len(c.values) != 1 {
		return nil, fmt.Errorf("%w: %s on %s takes one value, got %d", ErrInvalidCondition, c.op, c.field, len(c.values))
	}
	return c.values[0], nil
}

// Value returns the first comparison value, or nil.
func (c *FieldCondition) Value() any {
	if len(c.values) == 0 {
		return nil
	}
	return c.values[0]
}

func (c *FieldCondition) Equal(other Condition) bool {
	o, ok := other.(*FieldCondition)
	if !ok || o == nil {
		return false
	}
	if c.field != o.field || c.op != o.op || len(c.values) != len(o.values) {
		return false
	}
	for i := range c.values {
		if !reflect.DeepEqual(c.values[i], o.values[i]) {
			return false
		}
	}
	return true
}

func (c *FieldCondition) String() string {
	return fmt.Sprintf("%s %s %v", c.field, c.op, c.values)
}

func (c *FieldCondition) condition() {}

// Container joins child conditions with a logic connective.
type Container struct {
	logic    Logic
	children []Condition
}

// And creates an AND container. Nil children are dropped.
func And(children ...Condition) *Container { return newContainer(LogicAnd, children) }

// Or creates an OR container. Nil children are dropped.
func Or(children ...Condition) *Container { return newContainer(LogicOr, children) }

func newContainer(logic Logic, children []Condition) *Container {
	c := &Container{logic: logic, children: make([]Condition, 0, len(children))}
	for _, child := range children {
		if child == nil || isNilCondition(child) {
			continue
		}
		c.children = append(c.children, child)
	}
	return c
}

func isNilCondition(c Condition) bool {
	switch v := c.(type) {
	case *FieldCondition:
		return v == nil
	case *Container:
		return v == nil
	}
	return false
}

func (c *Container) Logic() Logic { return c.logic }

// Children returns the ordered child list.
func (c *Container) Children() []Condition {
	return append([]Condition(nil), c.children...)
}

func (c *Container) Len() int { return len(c.children) }

func (c *Container) Equal(other Condition) bool {
	o, ok := other.(*Container)
	if !ok || o == nil {
		return false
	}
	if c.logic != o.logic || len(c.children) != len(o.children) {
		return false
	}
	for i := range c.children {
		if !c.children[i].Equal(o.children[i]) {
			return false
		}
	}
	return true
}

func (c *Container) String() string {
	parts := make([]string, len(c.children))
	for i, child := range c.children {
		parts[i] = child.String()
	}
	return c.logic.String() + " [" + strings.Join(parts, ", ") + "]"
}

func (c *Container) condition() {}
