package workflow

import (
	"fmt"

	"github.com/omniflowhq/omniflow/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// Per-kind JSON schemas for node specs. Structural problems (wrong kind, nil
// spec) are caught before these run; the schemas catch value-level mistakes
// coming from the workflow editor, like an unknown operator or delay unit.
const triggerSpecSchema = `{
	"type": "object",
	"properties": {
		"event_type": {"type": "string", "minLength": 1},
		"cron_expression": {"type": "string"},
		"filters": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"field": {"type": "string", "minLength": 1},
					"operator": {
						"type": "string",
						"enum": ["equals", "not_equals", "contains", "greater_than", "less_than", "is_set", "is_not_set"]
					}
				},
				"required": ["field", "operator"]
			}
		}
	},
	"required": ["event_type"]
}`

const actionSpecSchema = `{
	"type": "object",
	"properties": {
		"type": {
			"type": "string",
			"enum": ["send_email", "send_sms", "send_whatsapp", "update_lead"]
		},
		"to": {"type": "string"},
		"payload": {
			"type": "object",
			"additionalProperties": {"type": "string"}
		},
		"provider": {"type": "string"},
		"output_key": {"type": "string"}
	},
	"required": ["type"]
}`

const conditionSpecSchema = `{
	"type": "object",
	"properties": {
		"clauses": {"type": "array"},
		"cases": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"branch": {"type": "string", "minLength": 1},
					"clauses": {"type": "array"}
				},
				"required": ["branch"]
			}
		}
	}
}`

const delaySpecSchema = `{
	"type": "object",
	"properties": {
		"amount": {"type": "integer", "minimum": 0},
		"unit": {
			"type": "string",
			"enum": ["seconds", "minutes", "hours", "days"]
		},
		"until": {"type": "string"}
	}
}`

var specSchemas = map[models.NodeKind]string{
	models.NodeKindTrigger:   triggerSpecSchema,
	models.NodeKindAction:    actionSpecSchema,
	models.NodeKindCondition: conditionSpecSchema,
	models.NodeKindDelay:     delaySpecSchema,
}

func validateNodeConfig(workflowID string, node *models.WorkflowNode) error {
	schema, ok := specSchemas[node.Kind]
	if !ok {
		return newGraphError(workflowID, node.ID, fmt.Sprintf("unknown node kind %q", node.Kind))
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewGoLoader(node.Spec()),
	)
	if err != nil {
		return newGraphError(workflowID, node.ID, fmt.Sprintf("config schema check failed: %v", err))
	}

	if !result.Valid() {
		detail := "invalid node config"
		if len(result.Errors()) > 0 {
			detail = result.Errors()[0].String()
		}

		return newGraphError(workflowID, node.ID, detail)
	}

	return nil
}
