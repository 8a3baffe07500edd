package postgresql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/omniflowhq/omniflow/pkg/models"
)

// RunLogRepository handles run log database operations. Rows are insert-only.
type RunLogRepository struct {
	db *sql.DB
}

func (r *RunLogRepository) Append(ctx context.Context, entry *models.RunLogEntry) error {
	query := `
		INSERT INTO run_log_entries (id, execution_state_id, node_id, node_kind, outcome, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.ExecutionStateID,
		entry.NodeID,
		entry.NodeKind,
		entry.Outcome,
		entry.Detail,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append run log entry: %w", err)
	}

	return nil
}

func (r *RunLogRepository) ListByExecution(ctx context.Context, executionStateID string) ([]*models.RunLogEntry, error) {
	query := `
		SELECT id, execution_state_id, node_id, node_kind, outcome, detail, occurred_at
		FROM run_log_entries
		WHERE execution_state_id = $1
		ORDER BY occurred_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, executionStateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run log: %w", err)
	}

	defer func() { _ = rows.Close() }()

	entries := make([]*models.RunLogEntry, 0)

	for rows.Next() {
		var entry models.RunLogEntry

		err := rows.Scan(
			&entry.ID,
			&entry.ExecutionStateID,
			&entry.NodeID,
			&entry.NodeKind,
			&entry.Outcome,
			&entry.Detail,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run log entry: %w", err)
		}

		entries = append(entries, &entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating run log: %w", err)
	}

	return entries, nil
}
