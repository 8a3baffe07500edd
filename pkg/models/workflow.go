// Package models defines the core domain models for node-based workflow automation
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft  WorkflowStatus = "draft"  // Editable, not executable
	WorkflowStatusActive WorkflowStatus = "active" // Executable, matched against trigger events
	WorkflowStatusPaused WorkflowStatus = "paused" // Kept, not executable
)

// Workflow represents a tenant-owned automation: one trigger node and a
// directed graph of action/condition/delay nodes.
type Workflow struct {
	ID          string          `json:"id"`
	CompanyID   string          `json:"company_id"  validate:"required"`
	Name        string          `json:"name"        validate:"required,min=3"`
	Description string          `json:"description"`
	Status      WorkflowStatus  `json:"status"      validate:"required,oneof=draft active paused"`
	Nodes       []*WorkflowNode `json:"nodes"`
	Connections []*Connection   `json:"connections"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   *time.Time      `json:"deleted_at,omitempty"`
}

// TriggerNode returns the workflow's trigger node, or nil when the graph has
// none. Graph validation guarantees exactly one for active workflows.
func (w *Workflow) TriggerNode() *WorkflowNode {
	for _, node := range w.Nodes {
		if node.Kind == NodeKindTrigger {
			return node
		}
	}

	return nil
}

// NodeByID returns the node with the given ID, or nil.
func (w *Workflow) NodeByID(nodeID string) *WorkflowNode {
	for _, node := range w.Nodes {
		if node.ID == nodeID {
			return node
		}
	}

	return nil
}
