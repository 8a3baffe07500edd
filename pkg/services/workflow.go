package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/omniflowhq/omniflow/pkg/models"
	"github.com/omniflowhq/omniflow/pkg/persistence"
	"github.com/omniflowhq/omniflow/pkg/workflow"
)

// ErrWorkflowNotFound is returned when a workflow is not found.
var ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

// Workflow manages workflow definitions and their lifecycle. Definitions are
// editable while draft or paused; activation validates the node graph and,
// for schedule triggers, registers the cron schedule.
type Workflow struct {
	persistence persistence.Persistence
	validator   *validator.Validate
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(p persistence.Persistence) *Workflow {
	return &Workflow{
		persistence: p,
		validator:   validator.New(),
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// List returns a company's workflows.
func (w *Workflow) List(ctx context.Context, companyID string) ([]*models.Workflow, error) {
	if companyID == "" {
		return nil, ErrCompanyIDRequired
	}

	return w.persistence.WorkflowRepository().ListByCompany(ctx, companyID)
}

// Get returns one workflow by ID.
func (w *Workflow) Get(ctx context.Context, id string) (*models.Workflow, error) {
	return w.persistence.WorkflowRepository().GetByID(ctx, id)
}

// Create stores a new workflow in draft status. Graph validation is deferred
// to activation so the editor can save incomplete drafts.
func (w *Workflow) Create(ctx context.Context, wf *models.Workflow) (*models.Workflow, error) {
	if wf == nil {
		return nil, ErrWorkflowNil
	}

	if wf.Name == "" {
		return nil, ErrWorkflowNameRequired
	}

	if wf.CompanyID == "" {
		return nil, ErrCompanyIDRequired
	}

	wf.ID = uuid.New().String()
	wf.Status = models.WorkflowStatusDraft
	wf.CreatedAt = time.Now().UTC()
	wf.UpdatedAt = wf.CreatedAt

	err := w.validator.Struct(wf)
	if err != nil {
		return nil, NewValidationError("create_workflow", "invalid_workflow", err.Error(), ErrInvalidRequest)
	}

	err = w.persistence.WorkflowRepository().Save(ctx, wf)
	if err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	return wf, nil
}

// Update replaces a workflow's definition. Active workflows must be paused
// first so in-flight executions never observe a definition change mid-run.
func (w *Workflow) Update(ctx context.Context, wf *models.Workflow) (*models.Workflow, error) {
	if wf == nil {
		return nil, ErrWorkflowNil
	}

	existing, err := w.persistence.WorkflowRepository().GetByID(ctx, wf.ID)
	if err != nil {
		return nil, err
	}

	if existing.Status == models.WorkflowStatusActive {
		return nil, ErrWorkflowNotDraft
	}

	wf.CompanyID = existing.CompanyID
	wf.Status = existing.Status
	wf.CreatedAt = existing.CreatedAt
	wf.UpdatedAt = time.Now().UTC()

	err = w.validator.Struct(wf)
	if err != nil {
		return nil, NewValidationError("update_workflow", "invalid_workflow", err.Error(), ErrInvalidRequest)
	}

	err = w.persistence.WorkflowRepository().Save(ctx, wf)
	if err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	return wf, nil
}

// Activate validates the node graph and turns the workflow on. A schedule
// trigger also registers its cron schedule for the tick driver.
func (w *Workflow) Activate(ctx context.Context, id string) (*models.Workflow, error) {
	wf, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if wf.Status == models.WorkflowStatusActive {
		return nil, ErrWorkflowNotDraft
	}

	err = workflow.Validate(wf)
	if err != nil {
		return nil, NewValidationError("activate_workflow", "invalid_graph", err.Error(), ErrInvalidRequest)
	}

	wf.Status = models.WorkflowStatusActive
	wf.UpdatedAt = time.Now().UTC()

	err = w.persistence.WorkflowRepository().Save(ctx, wf)
	if err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	err = w.syncSchedule(ctx, wf)
	if err != nil {
		return nil, err
	}

	return wf, nil
}

// Pause turns an active workflow off. Executions already waiting keep their
// state; new triggers stop matching.
func (w *Workflow) Pause(ctx context.Context, id string) (*models.Workflow, error) {
	wf, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if wf.Status != models.WorkflowStatusActive {
		return nil, ErrWorkflowNotActive
	}

	wf.Status = models.WorkflowStatusPaused
	wf.UpdatedAt = time.Now().UTC()

	err = w.persistence.WorkflowRepository().Save(ctx, wf)
	if err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	err = w.deactivateSchedule(ctx, wf.ID)
	if err != nil {
		return nil, err
	}

	return wf, nil
}

// Delete soft deletes a workflow. Active workflows must be paused first.
func (w *Workflow) Delete(ctx context.Context, id string) error {
	wf, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return err
	}

	if wf.Status == models.WorkflowStatusActive {
		return ErrActiveWorkflowDelete
	}

	err = w.deactivateSchedule(ctx, id)
	if err != nil {
		return err
	}

	return w.persistence.WorkflowRepository().Delete(ctx, id)
}

func (w *Workflow) syncSchedule(ctx context.Context, wf *models.Workflow) error {
	trigger := wf.TriggerNode()
	if trigger == nil || trigger.Trigger.EventType != models.EventTypeSchedule {
		return nil
	}

	schedules := w.persistence.ScheduleRepository()

	schedule, err := schedules.GetByWorkflow(ctx, wf.ID)
	if errors.Is(err, persistence.ErrScheduleNotFound) {
		schedule, err = models.NewSchedule(uuid.New().String(), wf.ID, wf.CompanyID, trigger.Trigger.CronExpression)
		if err != nil {
			return NewValidationError("activate_workflow", "invalid_cron", err.Error(), ErrInvalidRequest)
		}

		return schedules.Save(ctx, schedule)
	}

	if err != nil {
		return fmt.Errorf("failed to load schedule: %w", err)
	}

	schedule.CronExpression = trigger.Trigger.CronExpression
	schedule.Active = true

	err = schedule.UpdateNextDueAt()
	if err != nil {
		return NewValidationError("activate_workflow", "invalid_cron", err.Error(), ErrInvalidRequest)
	}

	return schedules.Save(ctx, schedule)
}

func (w *Workflow) deactivateSchedule(ctx context.Context, workflowID string) error {
	schedules := w.persistence.ScheduleRepository()

	schedule, err := schedules.GetByWorkflow(ctx, workflowID)
	if errors.Is(err, persistence.ErrScheduleNotFound) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to load schedule: %w", err)
	}

	schedule.Active = false

	return schedules.Save(ctx, schedule)
}
