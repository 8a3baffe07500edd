// Package runlog records per-node execution history for debugging.
// Recording is best effort: a failed append is logged and swallowed so it
// never blocks an execution from advancing.
package runlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/omniflowhq/omniflow/pkg/models"
	"github.com/omniflowhq/omniflow/pkg/persistence"
)

type Logger struct {
	repository persistence.RunLogRepository
	logger     *slog.Logger
}

func NewLogger(repository persistence.RunLogRepository, logger *slog.Logger) *Logger {
	return &Logger{
		repository: repository,
		logger:     logger.With("module", "runlog"),
	}
}

// Record appends one entry for a node visit.
func (l *Logger) Record(ctx context.Context, state *models.ExecutionState, node *models.WorkflowNode, outcome models.RunLogOutcome, detail string) {
	entry := &models.RunLogEntry{
		ID:               uuid.New().String(),
		ExecutionStateID: state.ID,
		NodeID:           node.ID,
		NodeKind:         node.Kind,
		Outcome:          outcome,
		Detail:           detail,
		Timestamp:        time.Now().UTC(),
	}

	err := l.repository.Append(ctx, entry)
	if err != nil {
		l.logger.WarnContext(ctx, "Failed to append run log entry",
			"execution_id", state.ID,
			"node_id", node.ID,
			"error", err)
	}
}

// History returns the recorded entries for an execution in order.
func (l *Logger) History(ctx context.Context, executionStateID string) ([]*models.RunLogEntry, error) {
	return l.repository.ListByExecution(ctx, executionStateID)
}
