package models

import (
	"slices"
	"time"
)

// ExecutionStatus defines the possible states of a workflow execution.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusWaiting   ExecutionStatus = "waiting"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// FailureReasonAbandoned marks waiting states swept past the maximum age.
const FailureReasonAbandoned = "abandoned"

// ExecutionState is one run of a workflow for one triggering entity. The
// engine runs in short-lived ticks, so the full cursor (current node, context,
// resume time) is persisted and any process instance can pick it up.
//
// Invariants: ResumeAt is set iff Status is waiting; CurrentNodeID always
// references a node of the owning workflow; terminal states are never
// mutated again.
type ExecutionState struct {
	ID            string          `json:"id"`
	WorkflowID    string          `json:"workflow_id" validate:"required"`
	CompanyID     string          `json:"company_id"  validate:"required"`
	EntityID      string          `json:"entity_id"`
	CurrentNodeID string          `json:"current_node_id"`
	Status        ExecutionStatus `json:"status" validate:"required,oneof=running waiting completed failed cancelled"`
	ResumeAt      *time.Time      `json:"resume_at,omitempty"`
	Context       map[string]any  `json:"context,omitempty"`
	ExecutedNodes []string        `json:"executed_nodes,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// IsTerminal reports whether the state can never transition again.
func (e *ExecutionState) IsTerminal() bool {
	switch e.Status {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	default:
		return false
	}
}

// HasExecuted reports whether the replay guard already recorded the node for
// this run. A retried tick resumes from the persisted cursor and must not
// re-run a node's side effect.
func (e *ExecutionState) HasExecuted(nodeID string) bool {
	return slices.Contains(e.ExecutedNodes, nodeID)
}

// MarkExecuted records a node in the replay guard.
func (e *ExecutionState) MarkExecuted(nodeID string) {
	if !e.HasExecuted(nodeID) {
		e.ExecutedNodes = append(e.ExecutedNodes, nodeID)
	}
}
