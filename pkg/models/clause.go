// Package models provides filter clause evaluation for triggers and conditions
package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Operator is a comparison operator usable in trigger filters and condition
// clauses.
type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorNotEquals   Operator = "not_equals"
	OperatorContains    Operator = "contains"
	OperatorGreaterThan Operator = "greater_than"
	OperatorLessThan    Operator = "less_than"
	OperatorIsSet       Operator = "is_set"
	OperatorIsNotSet    Operator = "is_not_set"
)

// FilterClause is a single {field, operator, value} predicate. Field supports
// dotted paths into nested maps ("deal.stage").
type FilterClause struct {
	Field    string   `json:"field"    validate:"required"`
	Operator Operator `json:"operator" validate:"required,oneof=equals not_equals contains greater_than less_than is_set is_not_set"`
	Value    any      `json:"value,omitempty"`
}

// Evaluate applies the clause to the given data. A missing or nil field makes
// is_not_set true and every value comparison false. Evaluation never errors.
func (c FilterClause) Evaluate(data map[string]any) bool {
	value, present := LookupField(data, c.Field)
	if !present || value == nil {
		return c.Operator == OperatorIsNotSet
	}

	switch c.Operator {
	case OperatorIsSet:
		return !isEmptyValue(value)
	case OperatorIsNotSet:
		return isEmptyValue(value)
	case OperatorEquals:
		return looseEquals(value, c.Value)
	case OperatorNotEquals:
		return !looseEquals(value, c.Value)
	case OperatorContains:
		return containsValue(value, c.Value)
	case OperatorGreaterThan:
		got, want, ok := numericPair(value, c.Value)

		return ok && got > want
	case OperatorLessThan:
		got, want, ok := numericPair(value, c.Value)

		return ok && got < want
	default:
		return false
	}
}

// EvaluateClauses evaluates the conjunction of all clauses. An empty clause
// list matches everything.
func EvaluateClauses(clauses []FilterClause, data map[string]any) bool {
	for _, clause := range clauses {
		if !clause.Evaluate(data) {
			return false
		}
	}

	return true
}

// LookupField resolves a dotted path against nested maps. The second return
// reports whether the full path was present.
func LookupField(data map[string]any, field string) (any, bool) {
	if data == nil {
		return nil, false
	}

	parts := strings.Split(field, ".")
	current := any(data)

	for _, part := range parts {
		asMap, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = asMap[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// looseEquals compares numerically when both sides coerce to numbers, and by
// string representation otherwise. Trigger payloads arrive as JSON, so "42"
// and 42.0 must compare equal.
func looseEquals(got, want any) bool {
	gotNum, gotOK := toFloat(got)
	wantNum, wantOK := toFloat(want)

	if gotOK && wantOK {
		return gotNum == wantNum
	}

	return stringify(got) == stringify(want)
}

func containsValue(got, want any) bool {
	if list, ok := got.([]any); ok {
		for _, item := range list {
			if looseEquals(item, want) {
				return true
			}
		}

		return false
	}

	return strings.Contains(stringify(got), stringify(want))
}

func numericPair(got, want any) (float64, float64, bool) {
	gotNum, gotOK := toFloat(got)
	wantNum, wantOK := toFloat(want)

	return gotNum, wantNum, gotOK && wantOK
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		num, err := strconv.ParseFloat(strings.TrimSpace(v), 64)

		return num, err == nil
	default:
		return 0, false
	}
}

func stringify(value any) string {
	if s, ok := value.(string); ok {
		return s
	}

	return fmt.Sprintf("%v", value)
}

func isEmptyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}
