package engine

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/omniflowhq/omniflow/pkg/models"
	"github.com/omniflowhq/omniflow/pkg/otelhelper"
	"github.com/omniflowhq/omniflow/pkg/workflow"
)

// TickResult reports what one scheduler invocation processed.
type TickResult struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// ProcessDueExecutions advances a batch of due executions with bounded
// parallelism. Different executions never share mutable state, so they run
// concurrently; nodes within one execution stay strictly sequential. Running
// states are reclaimed only after the recovery lease expires, so an execution
// a live worker is advancing right now is never handed out a second time.
// Errors and panics are contained per execution so one tenant's failure never
// blocks another's.
func (e *Engine) ProcessDueExecutions(ctx context.Context) (TickResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.process_due_executions",
		attribute.String(otelhelper.WorkerIDKey, e.workerID),
	)
	defer span.End()

	result := TickResult{}

	now := e.now()

	due, err := e.persistence.ExecutionRepository().ListDue(ctx, now, now.Add(-e.recoveryLease), e.batchSize)
	if err != nil {
		otelhelper.SetError(span, err)

		return result, fmt.Errorf("failed to list due executions: %w", err)
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, e.parallelism)
	)

	for _, state := range due {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(state *models.ExecutionState) {
			defer wg.Done()
			defer func() { <-semaphore }()

			failed := e.processOne(ctx, state)

			mu.Lock()
			defer mu.Unlock()

			result.Processed++
			if failed {
				result.Failed++
			} else {
				result.Succeeded++
			}
		}(state)
	}

	wg.Wait()

	span.SetAttributes(
		attribute.Int("omniflow.tick.processed", result.Processed),
		attribute.Int("omniflow.tick.succeeded", result.Succeeded),
		attribute.Int("omniflow.tick.failed", result.Failed),
	)

	return result, nil
}

// processOne resumes or continues a single execution. Reports whether the
// execution failed, either by transitioning to failed or by an infrastructure
// error. A panic while advancing counts as a failure of that execution
// alone; it never takes the worker down with it.
func (e *Engine) processOne(ctx context.Context, state *models.ExecutionState) (failed bool) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}

		e.logger.ErrorContext(ctx, "Execution processing panicked",
			"execution_id", state.ID, "workflow_id", state.WorkflowID, "panic", r)

		failErr := e.failExecution(ctx, state, nil, "internal_error", fmt.Sprint(r))
		if failErr != nil {
			e.logger.ErrorContext(ctx, "Failed to mark execution failed",
				"execution_id", state.ID, "error", failErr)
		}

		failed = true
	}()

	return e.advanceOne(ctx, state)
}

func (e *Engine) advanceOne(ctx context.Context, state *models.ExecutionState) bool {
	wf, err := e.persistence.WorkflowRepository().GetByID(ctx, state.WorkflowID)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to load workflow for execution",
			"execution_id", state.ID, "workflow_id", state.WorkflowID, "error", err)

		failErr := e.failExecution(ctx, state, nil, "workflow_missing", err.Error())
		if failErr != nil {
			e.logger.ErrorContext(ctx, "Failed to mark execution failed",
				"execution_id", state.ID, "error", failErr)
		}

		return true
	}

	if state.Status == models.ExecutionStatusWaiting {
		err = e.resume(ctx, wf, state)
		if err != nil {
			e.logger.ErrorContext(ctx, "Failed to resume execution",
				"execution_id", state.ID, "error", err)

			return true
		}

		return state.Status == models.ExecutionStatusFailed
	}

	err = e.advance(ctx, wf, state)
	if err != nil {
		e.logger.ErrorContext(ctx, "Execution advance failed",
			"execution_id", state.ID, "error", err)

		return true
	}

	return state.Status == models.ExecutionStatusFailed
}

// resume moves a due waiting state back to running, marks the delay node as
// executed, and continues from its successors.
func (e *Engine) resume(ctx context.Context, wf *models.Workflow, state *models.ExecutionState) error {
	delayNodeID := state.CurrentNodeID

	state.Status = models.ExecutionStatusRunning
	state.ResumeAt = nil
	state.MarkExecuted(delayNodeID)
	state.UpdatedAt = e.now()

	next := workflow.NextNodes(wf, delayNodeID, models.BranchDefault)
	if len(next) == 0 {
		return e.completeExecution(ctx, state)
	}

	state.CurrentNodeID = next[0]

	err := e.persistence.ExecutionRepository().Save(ctx, state)
	if err != nil {
		return err
	}

	return e.advance(ctx, wf, state)
}

// SweepAbandoned fails waiting states whose resume time passed more than the
// configured maximum age ago. Returns the number of states swept.
func (e *Engine) SweepAbandoned(ctx context.Context) (int, error) {
	cutoff := e.now().Add(-e.maxWaitingAge)

	stale, err := e.persistence.ExecutionRepository().ListWaitingOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale waiting executions: %w", err)
	}

	swept := 0

	for _, state := range stale {
		node := &models.WorkflowNode{ID: state.CurrentNodeID, Kind: models.NodeKindDelay}
		e.runLog.Record(ctx, state, node, models.RunLogOutcomeError, models.FailureReasonAbandoned)

		err = e.failExecution(ctx, state, nil, models.FailureReasonAbandoned, models.FailureReasonAbandoned)
		if err != nil {
			e.logger.ErrorContext(ctx, "Failed to sweep abandoned execution",
				"execution_id", state.ID, "error", err)

			continue
		}

		swept++
	}

	return swept, nil
}

// ProcessDueSchedules starts executions for schedule-triggered workflows
// whose next due time has passed, then rolls each schedule forward.
func (e *Engine) ProcessDueSchedules(ctx context.Context) (int, error) {
	due, err := e.persistence.ScheduleRepository().ListDue(ctx, e.now())
	if err != nil {
		return 0, fmt.Errorf("failed to list due schedules: %w", err)
	}

	triggered := 0

	for _, schedule := range due {
		wf, err := e.persistence.WorkflowRepository().GetByID(ctx, schedule.WorkflowID)
		if err != nil {
			e.logger.WarnContext(ctx, "Schedule references missing workflow, deactivating",
				"schedule_id", schedule.ID, "workflow_id", schedule.WorkflowID, "error", err)

			schedule.Active = false
			_ = e.persistence.ScheduleRepository().Save(ctx, schedule)

			continue
		}

		if wf.Status == models.WorkflowStatusActive {
			initialContext := map[string]any{
				"event_type":   models.EventTypeSchedule,
				"company_id":   schedule.CompanyID,
				"scheduled_at": schedule.NextDueAt,
			}

			err = e.startExecution(ctx, wf, "", initialContext)
			if err != nil {
				e.logger.ErrorContext(ctx, "Failed to start scheduled execution",
					"schedule_id", schedule.ID, "workflow_id", wf.ID, "error", err)
			} else {
				triggered++
			}
		}

		err = schedule.UpdateNextDueAt()
		if err != nil {
			e.logger.ErrorContext(ctx, "Failed to roll schedule forward, deactivating",
				"schedule_id", schedule.ID, "error", err)

			schedule.Active = false
		}

		err = e.persistence.ScheduleRepository().Save(ctx, schedule)
		if err != nil {
			e.logger.ErrorContext(ctx, "Failed to save schedule",
				"schedule_id", schedule.ID, "error", err)
		}
	}

	return triggered, nil
}
