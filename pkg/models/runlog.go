package models

import "time"

// RunLogOutcome classifies the result of one node transition.
type RunLogOutcome string

const (
	RunLogOutcomeSuccess RunLogOutcome = "success"
	RunLogOutcomeSkipped RunLogOutcome = "skipped"
	RunLogOutcomeError   RunLogOutcome = "error"
)

// RunLogEntry is one append-only audit record of a node transition. Entries
// are never mutated after creation.
type RunLogEntry struct {
	ID               string        `json:"id"`
	ExecutionStateID string        `json:"execution_state_id" validate:"required"`
	NodeID           string        `json:"node_id"`
	NodeKind         NodeKind      `json:"node_kind"`
	Outcome          RunLogOutcome `json:"outcome" validate:"required,oneof=success skipped error"`
	Detail           string        `json:"detail,omitempty"`
	Timestamp        time.Time     `json:"timestamp"`
}
