package query

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect renders conditions for one backend.
type Dialect interface {
	// Name identifies the backend in errors.
	Name() string

	// Translate maps an operator to the backend fragment, or returns an
	// *UnsupportedOperatorError.
	Translate(op Operator) (string, error)

	// Connective returns the text joining the children of a container.
	Connective(logic Logic) string

	// Leaf renders one field condition using the translated fragment,
	// registering any bound values on p.
	Leaf(c *FieldCondition, fragment string, p *Params) (string, error)
}

// OperandLimiter is implemented by dialects that cap the number of values an
// IN or NOT_IN leaf may carry.
type OperandLimiter interface {
	MaxOperands() int
}

// MaxOperands returns the IN operand cap of d, or 0 when it has none.
func MaxOperands(d Dialect) int {
	if l, ok := d.(OperandLimiter); ok {
		return l.MaxOperands()
	}
	return 0
}

// Params collects the values a rendered expression refers to.
// Positional dialects use Args; named dialects use Names and Values.
type Params struct {
	Args   []any
	Names  map[string]string
	Values map[string]any

	nameByField map[string]string
}

// Arg appends a positional argument and returns its 1-based position.
func (p *Params) Arg(v any) int {
	p.Args = append(p.Args, v)
	return len(p.Args)
}

// Name returns the placeholder for an attribute name, reusing it for repeated fields.
func (p *Params) Name(field string) string {
	if p.nameByField == nil {
		p.nameByField = make(map[string]string)
		p.Names = make(map[string]string)
	}
	if key, ok := p.nameByField[field]; ok {
		return key
	}
	key := "#f" + strconv.Itoa(len(p.nameByField))
	p.nameByField[field] = key
	p.Names[key] = field
	return key
}

// Value registers a named value and returns its placeholder.
func (p *Params) Value(v any) string {
	if p.Values == nil {
		p.Values = make(map[string]any)
	}
	key := ":v" + strconv.Itoa(len(p.Values))
	p.Values[key] = v
	return key
}

// Expression is a rendered condition tree.
type Expression struct {
	Text string
	Params
}

// Empty reports whether the expression selects everything.
func (e *Expression) Empty() bool {
	return e == nil || e.Text == ""
}

// Render translates a condition tree with the given dialect. A nil condition or
// an empty container renders to an empty expression.
func Render(c Condition, d Dialect) (*Expression, error) {
	expr := &Expression{}
	if c == nil || isNilCondition(c) {
		return expr, nil
	}
	text, err := render(c, d, &expr.Params)
	if err != nil {
		return nil, err
	}
	expr.Text = text
	return expr, nil
}

func render(c Condition, d Dialect, p *Params) (string, error) {
	switch node := c.(type) {
	case *FieldCondition:
		if !node.op.Valid() {
			return "", fmt.Errorf("%w: field %s has invalid operator %d", ErrInvalidCondition, node.field, int(node.op))
		}
		if node.field == "" {
			return "", fmt.Errorf("%w: empty field name", ErrInvalidCondition)
		}
		if node.op.MultiValued() && len(node.values) == 0 {
			return "", fmt.Errorf("%w: %s on %s needs at least one value", ErrInvalidCondition, node.op, node.field)
		}
		fragment, err := d.Translate(node.op)
		if err != nil {
			return "", err
		}
		return d.Leaf(node, fragment, p)

	case *Container:
		parts := make([]string, 0, len(node.children))
		for _, child := range node.children {
			text, err := render(child, d, p)
			if err != nil {
				return "", err
			}
			if text == "" {
				continue
			}
			if _, ok := child.(*Container); ok {
				text = "(" + text + ")"
			}
			parts = append(parts, text)
		}
		return strings.Join(parts, " "+d.Connective(node.logic)+" "), nil

	default:
		return "", fmt.Errorf("%w: unknown node %T", ErrInvalidCondition, c)
	}
}
