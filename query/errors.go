package query

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedOperator is returned when a dialect has no mapping for an operator.
	ErrUnsupportedOperator = errors.New("strata: unsupported operator")

	// ErrInvalidCondition is returned for conditions that cannot be rendered or decoded.
	ErrInvalidCondition = errors.New("strata: invalid condition")
)

// UnsupportedOperatorError names the dialect and the operator it rejected.
type UnsupportedOperatorError struct {
	Dialect  string
	Operator Operator
}

// Unsupported returns the error a dialect reports for an operator it does not implement.
func Unsupported(dialect string, op Operator) error {
	return &UnsupportedOperatorError{Dialect: dialect, Operator: op}
}

func (e *UnsupportedOperatorError) Error() string {
	return fmt.Sprintf("strata: operator %s is not supported by the %s backend", e.Operator, e.Dialect)
}

func (e *UnsupportedOperatorError) Is(target error) bool {
	return target == ErrUnsupportedOperator
}
