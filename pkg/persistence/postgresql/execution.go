package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/omniflowhq/omniflow/pkg/models"
	"github.com/omniflowhq/omniflow/pkg/persistence"
)

// ExecutionRepository handles execution state database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const executionColumns = `
	id
  , workflow_id
  , company_id
  , entity_id
  , current_node_id
  , status
  , resume_at
  , context
  , executed_nodes
  , failure_reason
  , created_at
  , updated_at
`

// Save upserts an execution state inside a transaction. A state that already
// reached a terminal status cannot move to a different status.
func (r *ExecutionRepository) Save(ctx context.Context, state *models.ExecutionState) error {
	contextDoc, err := json.Marshal(state.Context)
	if err != nil {
		return persistence.NewExecutionError("save", state.ID, err)
	}

	executedNodes, err := json.Marshal(state.ExecutedNodes)
	if err != nil {
		return persistence.NewExecutionError("save", state.ID, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewExecutionError("save", state.ID, err)
	}

	var existingStatus models.ExecutionStatus

	err = tx.QueryRowContext(ctx,
		"SELECT status FROM executions WHERE id = $1 FOR UPDATE", state.ID).Scan(&existingStatus)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()

		return persistence.NewExecutionError("save", state.ID, err)
	}

	if err == nil {
		existing := models.ExecutionState{Status: existingStatus}
		if existing.IsTerminal() && existingStatus != state.Status {
			_ = tx.Rollback()

			return persistence.NewExecutionError("save", state.ID, persistence.ErrTerminalState)
		}
	}

	query := `
		INSERT INTO executions (id, workflow_id, company_id, entity_id, current_node_id, status, resume_at, context, executed_nodes, failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			current_node_id = EXCLUDED.current_node_id,
			status = EXCLUDED.status,
			resume_at = EXCLUDED.resume_at,
			context = EXCLUDED.context,
			executed_nodes = EXCLUDED.executed_nodes,
			failure_reason = EXCLUDED.failure_reason,
			updated_at = EXCLUDED.updated_at
	`

	_, err = tx.ExecContext(ctx, query,
		state.ID,
		state.WorkflowID,
		state.CompanyID,
		state.EntityID,
		state.CurrentNodeID,
		state.Status,
		state.ResumeAt,
		contextDoc,
		executedNodes,
		state.FailureReason,
		state.CreatedAt,
		state.UpdatedAt,
	)
	if err != nil {
		_ = tx.Rollback()

		return persistence.NewExecutionError("save", state.ID, err)
	}

	err = tx.Commit()
	if err != nil {
		return persistence.NewExecutionError("save", state.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.ExecutionState, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE id = $1`

	state, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("get", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("get", id, err)
	}

	return state, nil
}

func (r *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionState, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE workflow_id = $1 ORDER BY created_at DESC`

	return r.queryExecutions(ctx, query, workflowID)
}

// ListDue returns waiting executions whose resume time has passed, plus
// running ones untouched since staleBefore. A running row with a fresh
// updated_at belongs to an in-flight worker and is skipped. Oldest first.
func (r *ExecutionRepository) ListDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]*models.ExecutionState, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE (status = $1 AND updated_at < $2) OR (status = $3 AND resume_at <= $4)
		ORDER BY updated_at ASC
		LIMIT $5
	`

	return r.queryExecutions(ctx, query,
		models.ExecutionStatusRunning, staleBefore, models.ExecutionStatusWaiting, now, limit)
}

// ListWaitingOlderThan returns waiting states whose resume time passed before
// the cutoff. These were due long ago and never resumed.
func (r *ExecutionRepository) ListWaitingOlderThan(ctx context.Context, cutoff time.Time) ([]*models.ExecutionState, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE status = $1 AND resume_at < $2`

	return r.queryExecutions(ctx, query, models.ExecutionStatusWaiting, cutoff)
}

func (r *ExecutionRepository) LatestForEntity(ctx context.Context, workflowID, entityID string) (*models.ExecutionState, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE workflow_id = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	state, err := scanExecution(r.db.QueryRowContext(ctx, query, workflowID, entityID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, persistence.NewExecutionError("latest_for_entity", workflowID, err)
	}

	return state, nil
}

func (r *ExecutionRepository) queryExecutions(ctx context.Context, query string, args ...any) ([]*models.ExecutionState, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewExecutionError("list", "", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	states := make([]*models.ExecutionState, 0)

	for rows.Next() {
		state, err := scanExecution(rows)
		if err != nil {
			return nil, persistence.NewExecutionError("list", "", err)
		}

		states = append(states, state)
	}

	err = rows.Err()
	if err != nil {
		return nil, persistence.NewExecutionError("list", "", err)
	}

	return states, nil
}

func scanExecution(row rowScanner) (*models.ExecutionState, error) {
	var (
		state         models.ExecutionState
		contextDoc    []byte
		executedNodes []byte
	)

	err := row.Scan(
		&state.ID,
		&state.WorkflowID,
		&state.CompanyID,
		&state.EntityID,
		&state.CurrentNodeID,
		&state.Status,
		&state.ResumeAt,
		&contextDoc,
		&executedNodes,
		&state.FailureReason,
		&state.CreatedAt,
		&state.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(contextDoc, &state.Context); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(executedNodes, &state.ExecutedNodes); err != nil {
		return nil, err
	}

	return &state, nil
}
