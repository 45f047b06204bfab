package assertions

import (
	"fmt"
	"strings"
)

// Operator names a comparison.
type Operator string

const (
	OpEquals         Operator = "equals"
	OpNotEquals      Operator = "not_equals"
	OpGreaterThan    Operator = "gt"
	OpGreaterOrEqual Operator = "gte"
	OpLessThan       Operator = "lt"
	OpLessOrEqual    Operator = "lte"
	OpContains       Operator = "contains"
	OpNotContains    Operator = "not_contains"
	OpStartsWith     Operator = "starts_with"
	OpEndsWith       Operator = "ends_with"
	OpMatches        Operator = "matches"
	OpExists         Operator = "exists"
	OpNotExists      Operator = "not_exists"
	OpLength         Operator = "length"
	OpIncludes       Operator = "includes"
	OpNotIncludes    Operator = "not_includes"
	OpIn             Operator = "in"
	OpNotIn          Operator = "not_in"
	OpType           Operator = "type"
	OpSchema         Operator = "schema"
	OpEach           Operator = "each"
	OpSnapshot       Operator = "snapshot"
)

var aliases = map[string]Operator{
	"==":         OpEquals,
	"!=":         OpNotEquals,
	">":          OpGreaterThan,
	">=":         OpGreaterOrEqual,
	"<":          OpLessThan,
	"<=":         OpLessOrEqual,
	"startsWith": OpStartsWith,
	"endsWith":   OpEndsWith,
	"notEquals":  OpNotEquals,
}

var known = map[Operator]bool{
	OpEquals: true, OpNotEquals: true, OpGreaterThan: true, OpGreaterOrEqual: true,
	OpLessThan: true, OpLessOrEqual: true, OpContains: true, OpNotContains: true,
	OpStartsWith: true, OpEndsWith: true, OpMatches: true, OpExists: true,
	OpNotExists: true, OpLength: true, OpIncludes: true, OpNotIncludes: true,
	OpIn: true, OpNotIn: true, OpType: true, OpSchema: true, OpEach: true,
	OpSnapshot: true,
}

// Operators lists every canonical operator name.
func Operators() []Operator {
	out := make([]Operator, 0, len(known))
	for op := range known {
		out = append(out, op)
	}
	return out
}

// ParseOperator accepts canonical names and the symbolic aliases.
func ParseOperator(s string) (Operator, error) {
	s = strings.TrimSpace(s)
	if op, ok := aliases[s]; ok {
		return op, nil
	}
	op := Operator(strings.ToLower(s))
	if known[op] {
		return op, nil
	}
	return "", fmt.Errorf("unknown operator %q", s)
}

// Unary reports whether the operator ignores its expected value.
func (op Operator) Unary() bool {
	return op == OpExists || op == OpNotExists
}

func (op Operator) String() string { return string(op) }
