// Package persistence provides data storage abstraction for workflows,
// execution states, run logs, credentials and schedules.
package persistence

import (
	"context"
	"time"

	"github.com/omniflowhq/omniflow/pkg/models"
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	RunLogRepository() RunLogRepository
	CredentialRepository() CredentialRepository
	ScheduleRepository() ScheduleRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	ListByCompany(ctx context.Context, companyID string) ([]*models.Workflow, error)
	// ListActive returns every active workflow across tenants; the trigger
	// evaluator filters per-company itself.
	ListActive(ctx context.Context) ([]*models.Workflow, error)
	Delete(ctx context.Context, id string) error
}

type ExecutionRepository interface {
	Save(ctx context.Context, state *models.ExecutionState) error
	GetByID(ctx context.Context, id string) (*models.ExecutionState, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionState, error)
	// ListDue returns executions ready for a tick: waiting states with
	// resumeAt <= now, plus running states untouched since staleBefore
	// (orphaned by a crashed worker). Running states with a fresh updatedAt
	// belong to an in-flight worker and are never handed out again. Oldest
	// first, capped at limit.
	ListDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]*models.ExecutionState, error)
	// ListWaitingOlderThan returns waiting states whose resumeAt is before
	// the cutoff, for the abandoned-state sweep.
	ListWaitingOlderThan(ctx context.Context, cutoff time.Time) ([]*models.ExecutionState, error)
	// LatestForEntity returns the most recent state for a workflow+entity
	// pair, or nil when none exists. Used for duplicate-trigger suppression.
	LatestForEntity(ctx context.Context, workflowID, entityID string) (*models.ExecutionState, error)
}

type RunLogRepository interface {
	// Append writes one entry. Entries are never updated or deleted.
	Append(ctx context.Context, entry *models.RunLogEntry) error
	ListByExecution(ctx context.Context, executionStateID string) ([]*models.RunLogEntry, error)
}

// CredentialRepository is read-mostly from the engine's side: the settings
// subsystem owns writes, and its document store guarantees the engine reads a
// fully-formed credential or none.
type CredentialRepository interface {
	Save(ctx context.Context, credential *models.Credential) error
	GetByCompanyChannel(ctx context.Context, companyID string, channel models.Channel) (map[string]*models.Credential, error)
}

type ScheduleRepository interface {
	Save(ctx context.Context, schedule *models.Schedule) error
	GetByWorkflow(ctx context.Context, workflowID string) (*models.Schedule, error)
	ListDue(ctx context.Context, now time.Time) ([]*models.Schedule, error)
	Delete(ctx context.Context, id string) error
}
