package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/omniflowhq/omniflow/pkg/eventbus"
	"github.com/omniflowhq/omniflow/pkg/events"
	"github.com/omniflowhq/omniflow/pkg/models"
	"github.com/omniflowhq/omniflow/pkg/persistence"
	"github.com/omniflowhq/omniflow/pkg/runlog"
)

// ErrExecutionNotFound is returned when an execution is not found.
var ErrExecutionNotFound = persistence.ErrExecutionNotFound

// Execution exposes execution state and run history for inspection, plus
// operator cancellation. The engine owns every other state transition.
type Execution struct {
	persistence persistence.Persistence
	runLog      *runlog.Logger
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

// NewExecution creates a new execution service. Publisher may be nil when no
// bus is wired; cancellation then happens without a lifecycle event.
func NewExecution(p persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Execution {
	return &Execution{
		persistence: p,
		runLog:      runlog.NewLogger(p.RunLogRepository(), logger),
		publisher:   publisher,
		logger:      logger.With("module", "execution_service"),
	}
}

// ListByWorkflow returns the executions of one workflow.
func (s *Execution) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionState, error) {
	return s.persistence.ExecutionRepository().ListByWorkflow(ctx, workflowID)
}

// Get returns one execution by ID.
func (s *Execution) Get(ctx context.Context, id string) (*models.ExecutionState, error) {
	return s.persistence.ExecutionRepository().GetByID(ctx, id)
}

// History returns the run log entries of one execution in order.
func (s *Execution) History(ctx context.Context, id string) ([]*models.RunLogEntry, error) {
	_, err := s.persistence.ExecutionRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.runLog.History(ctx, id)
}

// Cancel terminates a non-terminal execution. Takes effect between ticks;
// there is no mid-node interruption.
func (s *Execution) Cancel(ctx context.Context, id string) (*models.ExecutionState, error) {
	state, err := s.persistence.ExecutionRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if state.IsTerminal() {
		return nil, ErrExecutionTerminal
	}

	state.Status = models.ExecutionStatusCancelled
	state.ResumeAt = nil

	err = s.persistence.ExecutionRepository().Save(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("failed to save execution: %w", err)
	}

	if s.publisher != nil {
		err = s.publisher.Publish(ctx, state.ID, events.ExecutionCancelled{
			BaseEvent:   events.NewExecutionBase(events.ExecutionCancelledEvent, state),
			ExecutionID: state.ID,
			WorkflowID:  state.WorkflowID,
		})
		if err != nil {
			s.logger.WarnContext(ctx, "Failed to publish cancellation event",
				"execution_id", state.ID, "error", err)
		}
	}

	return state, nil
}
