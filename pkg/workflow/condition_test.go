package workflow

import (
	"testing"

	"github.com/omniflowhq/omniflow/pkg/models"
)

func TestSelectBranch_TrueFalse(t *testing.T) {
	spec := &models.ConditionSpec{
		Clauses: []models.FilterClause{
			{Field: "stage", Operator: models.OperatorEquals, Value: "won"},
		},
	}

	if got := SelectBranch(spec, map[string]any{"stage": "won"}); got != models.BranchTrue {
		t.Errorf("expected true branch, got %q", got)
	}

	if got := SelectBranch(spec, map[string]any{"stage": "lost"}); got != models.BranchFalse {
		t.Errorf("expected false branch, got %q", got)
	}
}

func TestSelectBranch_MissingFieldIsFalse(t *testing.T) {
	spec := &models.ConditionSpec{
		Clauses: []models.FilterClause{
			{Field: "stage", Operator: models.OperatorEquals, Value: "won"},
		},
	}

	// Unset fields never throw; value comparisons are simply false.
	if got := SelectBranch(spec, map[string]any{}); got != models.BranchFalse {
		t.Errorf("expected false branch for missing field, got %q", got)
	}

	if got := SelectBranch(spec, nil); got != models.BranchFalse {
		t.Errorf("expected false branch for nil context, got %q", got)
	}
}

func TestSelectBranch_MultiWay(t *testing.T) {
	spec := &models.ConditionSpec{
		Cases: []models.ConditionCase{
			{
				Branch: "hot",
				Clauses: []models.FilterClause{
					{Field: "score", Operator: models.OperatorGreaterThan, Value: 75},
				},
			},
			{
				Branch: "warm",
				Clauses: []models.FilterClause{
					{Field: "score", Operator: models.OperatorGreaterThan, Value: 25},
				},
			},
		},
	}

	tests := []struct {
		score any
		want  string
	}{
		{90, "hot"},
		{50, "warm"},
		{"80", "hot"}, // numeric coercion of string input
		{10, models.BranchFalse},
		{nil, models.BranchFalse},
	}

	for _, tt := range tests {
		context := map[string]any{}
		if tt.score != nil {
			context["score"] = tt.score
		}

		if got := SelectBranch(spec, context); got != tt.want {
			t.Errorf("score %v: expected branch %q, got %q", tt.score, tt.want, got)
		}
	}
}

func TestSelectBranch_Deterministic(t *testing.T) {
	spec := &models.ConditionSpec{
		Cases: []models.ConditionCase{
			{Branch: "a", Clauses: []models.FilterClause{{Field: "x", Operator: models.OperatorIsSet}}},
			{Branch: "b", Clauses: []models.FilterClause{{Field: "x", Operator: models.OperatorIsSet}}},
		},
	}

	context := map[string]any{"x": 1}

	first := SelectBranch(spec, context)
	for range 10 {
		if got := SelectBranch(spec, context); got != first {
			t.Fatalf("branch selection not deterministic: %q then %q", first, got)
		}
	}

	if first != "a" {
		t.Errorf("first matching case wins, expected %q got %q", "a", first)
	}
}
