package sqlstore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jacentio/strata/query"
)

// Operators is the relational operator table.
var Operators = query.OperatorTable{
	Dialect: "sql",
	Fragments: map[query.Operator]string{
		query.OpEquals:       "=",
		query.OpNotEquals:    "<>",
		query.OpLarger:       ">",
		query.OpLargerEqual:  ">=",
		query.OpSmaller:      "<",
		query.OpSmallerEqual: "<=",
		query.OpIn:           "IN",
		query.OpNotIn:        "NOT IN",
		query.OpContains:     "LIKE",
		query.OpStarts:       "LIKE",
		query.OpEnds:         "LIKE",
	},
}

// Placeholder selects how bound arguments are written.
type Placeholder int

const (
	// Question writes "?" (sqlite, mysql).
	Question Placeholder = iota
	// Dollar writes "$1", "$2", ... (postgres).
	Dollar
)

func (p Placeholder) mark(n int) string {
	if p == Dollar {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Quoting selects how identifiers are quoted.
type Quoting int

const (
	// DoubleQuotes writes "name" (sqlite, postgres, ANSI).
	DoubleQuotes Quoting = iota
	// Backticks writes `name` (mysql without ANSI_QUOTES).
	Backticks
)

func (q Quoting) quote(name string) string {
	if q == Backticks {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// escapeLiteral is the LIKE escape character as a string literal. MySQL
// treats backslash as an escape inside literals.
func (q Quoting) escapeLiteral() string {
	if q == Backticks {
		return `'\\'`
	}
	return `'\'`
}

// Dialect renders condition trees as WHERE clauses.
type Dialect struct {
	Placeholder Placeholder
	Quoting     Quoting
}

func (Dialect) Name() string { return Operators.Dialect }

func (Dialect) Translate(op query.Operator) (string, error) {
	return Operators.Translate(op)
}

func (Dialect) Connective(l query.Logic) string { return l.String() }

func (d Dialect) Leaf(c *query.FieldCondition, fragment string, p *query.Params) (string, error) {
	column := d.Quoting.quote(c.Field())

	switch c.Operator() {
	case query.OpIn, query.OpNotIn:
		values := c.Values()
		marks := make([]string, len(values))
		for i, v := range values {
			marks[i] = d.Placeholder.mark(p.Arg(v))
		}
		return fmt.Sprintf("%s %s (%s)", column, fragment, strings.Join(marks, ", ")), nil

	case query.OpContains, query.OpStarts, query.OpEnds:
		v, err := c.Single()
		if err != nil {
			return "", err
		}
		text, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("%w: %s on %s needs a string, got %T", query.ErrInvalidCondition, c.Operator(), c.Field(), v)
		}
		pattern := likePattern(c.Operator(), text)
		return fmt.Sprintf(`%s %s %s ESCAPE %s`, column, fragment, d.Placeholder.mark(p.Arg(pattern)), d.Quoting.escapeLiteral()), nil

	default:
		v, err := c.Single()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", column, fragment, d.Placeholder.mark(p.Arg(v))), nil
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(op query.Operator, text string) string {
	text = likeEscaper.Replace(text)
	switch op {
	case query.OpStarts:
		return text + "%"
	case query.OpEnds:
		return "%" + text
	default:
		return "%" + text + "%"
	}
}
