package models

import (
	"testing"
)

func TestFilterClause_Evaluate(t *testing.T) {
	data := map[string]any{
		"source": "facebook",
		"score":  "42",
		"tags":   []any{"vip", "inbound"},
		"deal": map[string]any{
			"stage": "negotiation",
		},
		"notes": "",
	}

	tests := []struct {
		name   string
		clause FilterClause
		want   bool
	}{
		{"equals match", FilterClause{Field: "source", Operator: OperatorEquals, Value: "facebook"}, true},
		{"equals mismatch", FilterClause{Field: "source", Operator: OperatorEquals, Value: "web"}, false},
		{"equals numeric coercion", FilterClause{Field: "score", Operator: OperatorEquals, Value: 42}, true},
		{"not equals", FilterClause{Field: "source", Operator: OperatorNotEquals, Value: "web"}, true},
		{"contains substring", FilterClause{Field: "source", Operator: OperatorContains, Value: "face"}, true},
		{"contains list member", FilterClause{Field: "tags", Operator: OperatorContains, Value: "vip"}, true},
		{"contains list miss", FilterClause{Field: "tags", Operator: OperatorContains, Value: "outbound"}, false},
		{"greater than string coercion", FilterClause{Field: "score", Operator: OperatorGreaterThan, Value: 40}, true},
		{"less than", FilterClause{Field: "score", Operator: OperatorLessThan, Value: 40}, false},
		{"greater than non-numeric", FilterClause{Field: "source", Operator: OperatorGreaterThan, Value: 1}, false},
		{"dotted path", FilterClause{Field: "deal.stage", Operator: OperatorEquals, Value: "negotiation"}, true},
		{"is set", FilterClause{Field: "source", Operator: OperatorIsSet}, true},
		{"is set on empty string", FilterClause{Field: "notes", Operator: OperatorIsSet}, false},
		{"is not set on empty string", FilterClause{Field: "notes", Operator: OperatorIsNotSet}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.clause.Evaluate(data); got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterClause_Evaluate_MissingField(t *testing.T) {
	data := map[string]any{"present": "yes"}

	// A missing field always selects the is_not_set branch and never an error.
	valueOperators := []Operator{
		OperatorEquals, OperatorNotEquals, OperatorContains,
		OperatorGreaterThan, OperatorLessThan, OperatorIsSet,
	}

	for _, op := range valueOperators {
		clause := FilterClause{Field: "missing", Operator: op, Value: "anything"}
		if clause.Evaluate(data) {
			t.Errorf("operator %s against missing field should be false", op)
		}
	}

	unset := FilterClause{Field: "missing", Operator: OperatorIsNotSet}
	if !unset.Evaluate(data) {
		t.Error("is_not_set against missing field should be true")
	}

	if (FilterClause{Field: "missing", Operator: OperatorEquals}).Evaluate(nil) {
		t.Error("evaluating against nil data should be false, not panic")
	}
}

func TestEvaluateClauses_Conjunction(t *testing.T) {
	data := map[string]any{"source": "facebook", "score": 80.0}

	both := []FilterClause{
		{Field: "source", Operator: OperatorEquals, Value: "facebook"},
		{Field: "score", Operator: OperatorGreaterThan, Value: 50},
	}
	if !EvaluateClauses(both, data) {
		t.Error("all clauses hold, expected true")
	}

	oneFails := []FilterClause{
		{Field: "source", Operator: OperatorEquals, Value: "facebook"},
		{Field: "score", Operator: OperatorLessThan, Value: 50},
	}
	if EvaluateClauses(oneFails, data) {
		t.Error("one clause fails, conjunction must be false")
	}

	if !EvaluateClauses(nil, data) {
		t.Error("empty clause list matches everything")
	}
}
