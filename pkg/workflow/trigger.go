package workflow

import (
	"log/slog"

	"github.com/omniflowhq/omniflow/pkg/events"
	"github.com/omniflowhq/omniflow/pkg/models"
)

// TriggerEvaluator matches inbound entity events against workflow trigger
// definitions. Read-only over the workflows the caller holds; duplicate-firing
// suppression is the caller's policy, enforced against the execution store.
type TriggerEvaluator struct {
	logger *slog.Logger
}

// Match pairs a selected workflow with the initial execution context derived
// from the triggering event.
type Match struct {
	Workflow       *models.Workflow
	InitialContext map[string]any
}

func NewTriggerEvaluator(logger *slog.Logger) *TriggerEvaluator {
	return &TriggerEvaluator{
		logger: logger.With("module", "trigger_evaluator"),
	}
}

// Evaluate returns the workflows whose trigger event type matches the event
// and whose filter clauses (ANDed) all evaluate true against the entity data.
func (te *TriggerEvaluator) Evaluate(event events.EntityChanged, workflows []*models.Workflow) []Match {
	var matches []Match

	te.logger.Debug("Matching entity event against workflows",
		"change_type", event.ChangeType,
		"company_id", event.CompanyID,
		"entity_id", event.EntityID,
		"workflows_count", len(workflows))

	for _, wf := range workflows {
		if wf.Status != models.WorkflowStatusActive {
			continue
		}

		if wf.CompanyID != event.CompanyID {
			continue
		}

		trigger := wf.TriggerNode()
		if trigger == nil || trigger.Trigger == nil {
			continue
		}

		if trigger.Trigger.EventType != event.ChangeType {
			continue
		}

		if !models.EvaluateClauses(trigger.Trigger.Filters, event.EntityData) {
			continue
		}

		matches = append(matches, Match{
			Workflow:       wf,
			InitialContext: InitialContext(event),
		})

		te.logger.Debug("Found matching workflow",
			"workflow_id", wf.ID,
			"workflow_name", wf.Name,
			"trigger_node_id", trigger.ID)
	}

	te.logger.Info("Completed trigger matching",
		"change_type", event.ChangeType,
		"company_id", event.CompanyID,
		"matches_found", len(matches))

	return matches
}

// InitialContext builds the variable map a new execution starts with: the
// entity's data plus event identity fields. Action outputs are merged in as
// the run advances.
func InitialContext(event events.EntityChanged) map[string]any {
	context := make(map[string]any, len(event.EntityData)+4)
	for k, v := range event.EntityData {
		context[k] = v
	}

	context["entity_id"] = event.EntityID
	context["entity_type"] = event.EntityType
	context["event_type"] = event.ChangeType
	context["company_id"] = event.CompanyID

	return context
}
