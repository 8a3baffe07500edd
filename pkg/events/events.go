// Package events defines event types and structures exchanged over the bus.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/omniflowhq/omniflow/pkg/models"
)

type EventType string

// Bus topics.
const EntityTopic = "omniflow.entity.events"       // CRM entity changes feeding triggers
const ExecutionTopic = "omniflow.execution.events" // engine lifecycle notifications

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Entity change events produced by CRUD operations elsewhere.
	EntityChangedEvent EventType = "entity.changed"

	// Execution lifecycle events produced by the engine.
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionWaitingEvent   EventType = "execution.waiting"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionCancelledEvent EventType = "execution.cancelled"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	CompanyID string    `json:"company_id"`
}

// EntityChanged is the inbound feed the trigger evaluator consumes: a lead or
// deal changed somewhere in the application.
type EntityChanged struct {
	BaseEvent

	EntityType string         `json:"entity_type"` // lead, deal
	EntityID   string         `json:"entity_id"`
	ChangeType string         `json:"change_type"` // lead_created, lead_updated, deal_stage_changed
	EntityData map[string]any `json:"entity_data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func (e EntityChanged) GetType() EventType {
	return EntityChangedEvent
}

// NewEntityChanged builds an EntityChanged event with identity and timestamps set.
func NewEntityChanged(companyID, entityType, entityID, changeType string, entityData map[string]any) EntityChanged {
	now := time.Now().UTC()

	return EntityChanged{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EntityChangedEvent,
			Timestamp: now,
			CompanyID: companyID,
		},
		EntityType: entityType,
		EntityID:   entityID,
		ChangeType: changeType,
		EntityData: entityData,
		OccurredAt: now,
	}
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
	EntityID    string `json:"entity_id,omitempty"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionWaiting struct {
	BaseEvent

	ExecutionID string    `json:"execution_id"`
	WorkflowID  string    `json:"workflow_id"`
	NodeID      string    `json:"node_id"`
	ResumeAt    time.Time `json:"resume_at"`
}

func (e ExecutionWaiting) GetType() EventType {
	return ExecutionWaitingEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	WorkflowID  string        `json:"workflow_id"`
	Duration    time.Duration `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
	NodeID      string `json:"node_id,omitempty"`
	Reason      string `json:"reason"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionCancelled struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
}

func (e ExecutionCancelled) GetType() EventType {
	return ExecutionCancelledEvent
}

// NewExecutionBase builds the shared header for execution lifecycle events.
func NewExecutionBase(eventType EventType, state *models.ExecutionState) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		CompanyID: state.CompanyID,
	}
}
