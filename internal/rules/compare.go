package rules

import (
	"fmt"

	"github.com/roach88/grimoire/internal/doc"
)

// Comparison operators accepted by Compare.
const (
	OpLess         = "<"
	OpLessEqual    = "<="
	OpEqual        = "="
	OpGreaterEqual = ">="
	OpGreater      = ">"
)

// Compare applies op to (actual, threshold). Both operands must be numbers;
// no other kind is coerced.
func Compare(actual, threshold doc.Value, op string) (bool, error) {
	a, ok := doc.Number(actual)
	if !ok {
		return false, fmt.Errorf("compare: actual is %s, not a number", doc.KindOf(actual))
	}
	b, ok := doc.Number(threshold)
	if !ok {
		return false, fmt.Errorf("compare: threshold is %s, not a number", doc.KindOf(threshold))
	}
	switch op {
	case OpLess:
		return a < b, nil
	case OpLessEqual:
		return a <= b, nil
	case OpEqual, "==":
		return a == b, nil
	case OpGreaterEqual:
		return a >= b, nil
	case OpGreater:
		return a > b, nil
	default:
		return false, fmt.Errorf("compare: unknown operator %q", op)
	}
}
