package models

import (
	"errors"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidSchedule indicates a schedule entry with missing or malformed fields.
var ErrInvalidSchedule = errors.New("invalid schedule")

// Schedule is the materialized firing plan for a workflow with a schedule
// trigger. NextDueAt is precomputed so a tick can query due schedules without
// parsing cron expressions per workflow.
type Schedule struct {
	// ID uniquely identifies this schedule entry
	ID string `json:"id" validate:"required"`

	// WorkflowID identifies the workflow whose trigger owns this schedule
	WorkflowID string `json:"workflow_id" validate:"required"`

	// CompanyID scopes the schedule to its tenant
	CompanyID string `json:"company_id" validate:"required"`

	// CronExpression defines when this schedule should trigger
	// Uses standard 5-field cron format (minute hour day month weekday)
	CronExpression string `json:"cron_expression" validate:"required"`

	// NextDueAt is the precomputed next execution time
	NextDueAt time.Time `json:"next_due_at" validate:"required"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Active indicates if this schedule is currently processed by ticks
	Active bool `json:"active"`
}

// NewSchedule creates a new Schedule with the next execution time calculated.
func NewSchedule(id, workflowID, companyID, cronExpression string) (*Schedule, error) {
	now := time.Now().UTC()
	schedule := &Schedule{
		ID:             id,
		WorkflowID:     workflowID,
		CompanyID:      companyID,
		CronExpression: cronExpression,
		CreatedAt:      now,
		UpdatedAt:      now,
		Active:         true,
	}

	if err := schedule.calculateNextDueAt(now); err != nil {
		return nil, err
	}

	return schedule, nil
}

// UpdateNextDueAt calculates and updates the next execution time from now.
func (s *Schedule) UpdateNextDueAt() error {
	return s.calculateNextDueAt(time.Now().UTC())
}

func (s *Schedule) calculateNextDueAt(referenceTime time.Time) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	cronSchedule, err := parser.Parse(s.CronExpression)
	if err != nil {
		return err
	}

	s.NextDueAt = cronSchedule.Next(referenceTime)
	s.UpdatedAt = time.Now().UTC()

	return nil
}

// IsDue checks if this schedule is due for execution at the given time.
func (s *Schedule) IsDue(now time.Time) bool {
	return s.Active && !s.NextDueAt.After(now)
}

// Validate performs validation on the schedule fields.
func (s *Schedule) Validate() error {
	if s.ID == "" || s.WorkflowID == "" || s.CronExpression == "" {
		return ErrInvalidSchedule
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(s.CronExpression); err != nil {
		return ErrInvalidSchedule
	}

	return nil
}
