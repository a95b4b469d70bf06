package assertions

import (
	"fmt"
	"strings"
)

// Operator is a comparison applied to an observed value.
type Operator int

const (
	OpEquals Operator = iota
	OpEqualsIgnoreCase
	OpNotEquals
	OpExists
	OpNotNull
	OpNotExists
	OpNotEmpty
	OpContains
	OpNotContains
	OpStartsWith
	OpEndsWith
	OpMatches
	OpGreaterThan
	OpGreaterOrEqual
	OpLessThan
	OpLessOrEqual
	OpLength
	OpType
	OpIn
	OpNotIn
	OpIncludes
	OpNotIncludes
	OpEach
)

var operatorNames = map[Operator]string{
	OpEquals:           "equals",
	OpEqualsIgnoreCase: "equalsIgnoreCase",
	OpNotEquals:        "notEquals",
	OpExists:           "exists",
	OpNotNull:          "notNull",
	OpNotExists:        "notExists",
	OpNotEmpty:         "notEmpty",
	OpContains:         "contains",
	OpNotContains:      "notContains",
	OpStartsWith:       "startsWith",
	OpEndsWith:         "endsWith",
	OpMatches:          "matches",
	OpGreaterThan:      "gt",
	OpGreaterOrEqual:   "gte",
	OpLessThan:         "lt",
	OpLessOrEqual:      "lte",
	OpLength:           "length",
	OpType:             "type",
	OpIn:               "in",
	OpNotIn:            "notIn",
	OpIncludes:         "includes",
	OpNotIncludes:      "notIncludes",
	OpEach:             "each",
}

var operatorAliases = map[string]Operator{
	"==":             OpEquals,
	"eq":             OpEquals,
	"!=":             OpNotEquals,
	"ne":             OpNotEquals,
	">":              OpGreaterThan,
	"greaterthan":    OpGreaterThan,
	">=":             OpGreaterOrEqual,
	"greaterorequal": OpGreaterOrEqual,
	"<":              OpLessThan,
	"lessthan":       OpLessThan,
	"<=":             OpLessOrEqual,
	"lessorequal":    OpLessOrEqual,
	"present":        OpExists,
	"absent":         OpNotExists,
	"hassize":        OpLength,
	"size":           OpLength,
	"oneof":          OpIn,
	"hasitem":        OpIncludes,
	"everyitem":      OpEach,
}

func (o Operator) String() string {
	if name, ok := operatorNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// ParseOperator accepts an operator's canonical name, case-insensitively,
// or one of its symbolic aliases such as ">=".
func ParseOperator(name string) (Operator, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for op, n := range operatorNames {
		if strings.ToLower(n) == key {
			return op, nil
		}
	}
	if op, ok := operatorAliases[key]; ok {
		return op, nil
	}
	return 0, fmt.Errorf("unknown operator %q", name)
}

// takesNoValue reports operators that ignore the expected value.
func (o Operator) takesNoValue() bool {
	switch o {
	case OpExists, OpNotNull, OpNotExists, OpNotEmpty:
		return true
	}
	return false
}
