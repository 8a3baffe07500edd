package workflow

import (
	"github.com/omniflowhq/omniflow/pkg/models"
)

// SelectBranch evaluates a condition node against the execution context and
// returns the branch tag to follow. Deterministic: the same context always
// yields the same branch, and evaluation never errors. A missing field makes
// value comparisons false, so undefined conditions fall through to "false".
//
// With Cases configured, the first case whose clauses all hold wins. Without
// cases, the plain clause list selects "true" or "false".
func SelectBranch(spec *models.ConditionSpec, context map[string]any) string {
	if spec == nil {
		return models.BranchTrue
	}

	if len(spec.Cases) > 0 {
		for _, conditionCase := range spec.Cases {
			if models.EvaluateClauses(conditionCase.Clauses, context) {
				return conditionCase.Branch
			}
		}

		return models.BranchFalse
	}

	if models.EvaluateClauses(spec.Clauses, context) {
		return models.BranchTrue
	}

	return models.BranchFalse
}
