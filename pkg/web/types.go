// Package web provides HTTP request and response types for the workflow API.
package web

import "github.com/omniflowhq/omniflow/pkg/models"

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	Name        string                  `json:"name"        validate:"required,min=3"`
	Description string                  `json:"description"`
	CompanyID   string                  `json:"company_id"  validate:"required"`
	Nodes       []*models.WorkflowNode  `json:"nodes"`
	Connections []*models.Connection    `json:"connections"`
}

// UpdateWorkflowRequest represents the request body for updating an existing
// workflow. All fields are optional to support partial updates.
type UpdateWorkflowRequest struct {
	Name        *string                `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string                `json:"description,omitempty"`
	Nodes       []*models.WorkflowNode `json:"nodes,omitempty"`
	Connections []*models.Connection   `json:"connections,omitempty"`
}

// SaveCredentialRequest represents the request body for configuring a
// per-company messaging provider.
type SaveCredentialRequest struct {
	CompanyID string            `json:"company_id" validate:"required"`
	Channel   models.Channel    `json:"channel"    validate:"required,oneof=email sms whatsapp"`
	Provider  string            `json:"provider"   validate:"required"`
	Settings  map[string]string `json:"settings"   validate:"required"`
}

// IngestEventRequest represents an entity change pushed onto the trigger feed.
type IngestEventRequest struct {
	CompanyID  string         `json:"company_id"  validate:"required"`
	EntityType string         `json:"entity_type" validate:"required"`
	EntityID   string         `json:"entity_id"   validate:"required"`
	ChangeType string         `json:"change_type" validate:"required"`
	EntityData map[string]any `json:"entity_data"`
}
