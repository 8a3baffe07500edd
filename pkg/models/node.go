// Package models defines core node-based workflow models for graph execution
package models

import (
	"time"
)

// NodeKind represents the kind of node in the workflow graph. Nodes are a
// closed sum: exactly one of the kind-specific specs is populated.
type NodeKind string

const (
	NodeKindTrigger   NodeKind = "trigger"
	NodeKindAction    NodeKind = "action"
	NodeKindCondition NodeKind = "condition"
	NodeKindDelay     NodeKind = "delay"
)

// Branch tags used on connections leaving condition nodes. Nodes of every
// other kind have a single implicit branch, the empty tag.
const (
	BranchDefault = ""
	BranchTrue    = "true"
	BranchFalse   = "false"
)

// Connection is a directed edge between two nodes. Branch selects which
// outgoing edges are followed from a condition node.
type Connection struct {
	ID         string `json:"id"`
	FromNodeID string `json:"from_node_id" validate:"required"`
	ToNodeID   string `json:"to_node_id"   validate:"required"`
	Branch     string `json:"branch,omitempty"`
}

// WorkflowNode represents a node instance in a workflow.
type WorkflowNode struct {
	ID        string         `json:"id"   validate:"required"`
	Kind      NodeKind       `json:"kind" validate:"required,oneof=trigger action condition delay"`
	Name      string         `json:"name" validate:"required,min=1"`
	Trigger   *TriggerSpec   `json:"trigger,omitempty"`
	Action    *ActionSpec    `json:"action,omitempty"`
	Condition *ConditionSpec `json:"condition,omitempty"`
	Delay     *DelaySpec     `json:"delay,omitempty"`
}

// Built-in trigger event types.
const (
	EventTypeLeadCreated      = "lead_created"
	EventTypeLeadUpdated      = "lead_updated"
	EventTypeDealStageChanged = "deal_stage_changed"
	EventTypeSchedule         = "schedule"
)

// TriggerSpec is the entry condition of a workflow: an event type plus an
// ANDed filter over the triggering entity's data. Schedule triggers carry a
// cron expression instead of filters.
type TriggerSpec struct {
	EventType      string         `json:"event_type" validate:"required"`
	Filters        []FilterClause `json:"filters,omitempty"`
	CronExpression string         `json:"cron_expression,omitempty"`
}

// ActionType identifies what an action node does.
type ActionType string

const (
	ActionTypeSendEmail    ActionType = "send_email"
	ActionTypeSendSMS      ActionType = "send_sms"
	ActionTypeSendWhatsApp ActionType = "send_whatsapp"
	ActionTypeUpdateLead   ActionType = "update_lead"
)

// ActionSpec configures an action node. To and every Payload value support
// {{variable}} interpolation from the execution context. Provider optionally
// pins a vendor instead of the per-channel priority order. OutputKey names the
// context key the action's output is merged under; empty means the node ID.
type ActionSpec struct {
	Type      ActionType        `json:"type" validate:"required"`
	To        string            `json:"to,omitempty"`
	Payload   map[string]string `json:"payload,omitempty"`
	Provider  string            `json:"provider,omitempty"`
	OutputKey string            `json:"output_key,omitempty"`
}

// ConditionCase is one arm of a multi-way condition node.
type ConditionCase struct {
	Branch  string         `json:"branch" validate:"required"`
	Clauses []FilterClause `json:"clauses"`
}

// ConditionSpec configures a condition node. With Cases set, the first case
// whose clauses all hold selects the branch, falling through to "false".
// Without cases, Clauses select "true" or "false" directly.
type ConditionSpec struct {
	Clauses []FilterClause  `json:"clauses,omitempty"`
	Cases   []ConditionCase `json:"cases,omitempty"`
}

// DelaySpec configures a delay node as either a relative duration or an
// absolute resume timestamp.
type DelaySpec struct {
	Amount int        `json:"amount,omitempty"`
	Unit   string     `json:"unit,omitempty"` // seconds, minutes, hours, days
	Until  *time.Time `json:"until,omitempty"`
}

// ResumeAt computes the timestamp a delayed execution becomes due again.
func (d *DelaySpec) ResumeAt(now time.Time) time.Time {
	if d.Until != nil {
		return *d.Until
	}

	var unit time.Duration

	switch d.Unit {
	case "seconds":
		unit = time.Second
	case "minutes":
		unit = time.Minute
	case "hours":
		unit = time.Hour
	case "days":
		unit = 24 * time.Hour
	default:
		unit = time.Minute
	}

	return now.Add(time.Duration(d.Amount) * unit)
}

// Spec returns the kind-specific spec as an any, for callers that only need
// presence checks.
func (n *WorkflowNode) Spec() any {
	switch n.Kind {
	case NodeKindTrigger:
		if n.Trigger != nil {
			return n.Trigger
		}
	case NodeKindAction:
		if n.Action != nil {
			return n.Action
		}
	case NodeKindCondition:
		if n.Condition != nil {
			return n.Condition
		}
	case NodeKindDelay:
		if n.Delay != nil {
			return n.Delay
		}
	}

	return nil
}

func (n *WorkflowNode) IsTriggerNode() bool {
	return n.Kind == NodeKindTrigger
}
