package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/omniflowhq/omniflow/pkg/models"
	"github.com/omniflowhq/omniflow/pkg/persistence"
)

// ScheduleRepository handles schedule database operations.
type ScheduleRepository struct {
	db *sql.DB
}

func (r *ScheduleRepository) Save(ctx context.Context, schedule *models.Schedule) error {
	query := `
		INSERT INTO schedules (id, workflow_id, company_id, cron_expression, next_due_at, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			cron_expression = EXCLUDED.cron_expression,
			next_due_at = EXCLUDED.next_due_at,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		schedule.ID,
		schedule.WorkflowID,
		schedule.CompanyID,
		schedule.CronExpression,
		schedule.NextDueAt,
		schedule.Active,
		schedule.CreatedAt,
		schedule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}

	return nil
}

func (r *ScheduleRepository) GetByWorkflow(ctx context.Context, workflowID string) (*models.Schedule, error) {
	query := `
		SELECT id, workflow_id, company_id, cron_expression, next_due_at, active, created_at, updated_at
		FROM schedules
		WHERE workflow_id = $1
		LIMIT 1
	`

	schedule, err := scanSchedule(r.db.QueryRowContext(ctx, query, workflowID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrScheduleNotFound
		}

		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}

	return schedule, nil
}

func (r *ScheduleRepository) ListDue(ctx context.Context, now time.Time) ([]*models.Schedule, error) {
	query := `
		SELECT id, workflow_id, company_id, cron_expression, next_due_at, active, created_at, updated_at
		FROM schedules
		WHERE active = TRUE AND next_due_at <= $1
		ORDER BY next_due_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due schedules: %w", err)
	}

	defer func() { _ = rows.Close() }()

	schedules := make([]*models.Schedule, 0)

	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}

		schedules = append(schedules, schedule)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating schedules: %w", err)
	}

	return schedules, nil
}

func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM schedules WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}

	if affected == 0 {
		return persistence.ErrScheduleNotFound
	}

	return nil
}

func scanSchedule(row rowScanner) (*models.Schedule, error) {
	var schedule models.Schedule

	err := row.Scan(
		&schedule.ID,
		&schedule.WorkflowID,
		&schedule.CompanyID,
		&schedule.CronExpression,
		&schedule.NextDueAt,
		&schedule.Active,
		&schedule.CreatedAt,
		&schedule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &schedule, nil
}
