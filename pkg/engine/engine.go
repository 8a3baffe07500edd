// Package engine advances workflow executions. It runs inside short-lived
// invocations driven by an external scheduler tick: each call processes due
// executions and freshly fired triggers, persisting the full cursor so the
// next invocation, on any replica, can pick up where this one stopped.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/omniflowhq/omniflow/pkg/dispatcher"
	"github.com/omniflowhq/omniflow/pkg/eventbus"
	"github.com/omniflowhq/omniflow/pkg/events"
	"github.com/omniflowhq/omniflow/pkg/models"
	"github.com/omniflowhq/omniflow/pkg/otelhelper"
	"github.com/omniflowhq/omniflow/pkg/persistence"
	"github.com/omniflowhq/omniflow/pkg/runlog"
	"github.com/omniflowhq/omniflow/pkg/suppression"
	"github.com/omniflowhq/omniflow/pkg/workflow"
)

const (
	defaultBatchSize     = 100
	defaultParallelism   = 4
	defaultMaxWaitingAge = 30 * 24 * time.Hour

	// How long a running state stays reserved for the worker that touched it
	// last. Ticks only pick running states older than this, so an execution
	// being advanced right now is never handed out a second time.
	defaultRecoveryLease = 5 * time.Minute

	// Upper bound on nodes advanced in one execution run. A definition with
	// a connection cycle hits this instead of spinning forever.
	maxStepsPerRun = 1000
)

// ActionDispatcher executes action nodes. Failures come back as typed
// results, never as raised errors.
type ActionDispatcher interface {
	Dispatch(ctx context.Context, action *models.ActionSpec, state *models.ExecutionState) dispatcher.Outcome
}

// Config assembles an Engine.
type Config struct {
	Persistence persistence.Persistence
	Dispatcher  ActionDispatcher
	RunLog      *runlog.Logger
	Suppression suppression.Store
	Publisher   eventbus.EventPublisher
	Tracer      trace.Tracer
	Logger      *slog.Logger

	SuppressionWindow time.Duration
	MaxWaitingAge     time.Duration
	RecoveryLease     time.Duration
	BatchSize         int
	Parallelism       int
	WorkerID          string
}

type Engine struct {
	persistence persistence.Persistence
	dispatcher  ActionDispatcher
	runLog      *runlog.Logger
	suppression suppression.Store
	publisher   eventbus.EventPublisher
	evaluator   *workflow.TriggerEvaluator
	tracer      trace.Tracer
	logger      *slog.Logger

	suppressionWindow time.Duration
	maxWaitingAge     time.Duration
	recoveryLease     time.Duration
	batchSize         int
	parallelism       int
	workerID          string

	now func() time.Time
}

func NewEngine(cfg Config) *Engine {
	if cfg.SuppressionWindow <= 0 {
		cfg.SuppressionWindow = suppression.DefaultWindow
	}

	if cfg.MaxWaitingAge <= 0 {
		cfg.MaxWaitingAge = defaultMaxWaitingAge
	}

	if cfg.RecoveryLease <= 0 {
		cfg.RecoveryLease = defaultRecoveryLease
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	if cfg.Parallelism <= 0 {
		cfg.Parallelism = defaultParallelism
	}

	if cfg.Tracer == nil {
		cfg.Tracer = noop.NewTracerProvider().Tracer("engine")
	}

	if cfg.WorkerID == "" {
		cfg.WorkerID = uuid.New().String()
	}

	return &Engine{
		persistence:       cfg.Persistence,
		dispatcher:        cfg.Dispatcher,
		runLog:            cfg.RunLog,
		suppression:       cfg.Suppression,
		publisher:         cfg.Publisher,
		evaluator:         workflow.NewTriggerEvaluator(cfg.Logger),
		tracer:            cfg.Tracer,
		logger:            cfg.Logger.With("module", "engine", "worker_id", cfg.WorkerID),
		suppressionWindow: cfg.SuppressionWindow,
		maxWaitingAge:     cfg.MaxWaitingAge,
		recoveryLease:     cfg.RecoveryLease,
		batchSize:         cfg.BatchSize,
		parallelism:       cfg.Parallelism,
		workerID:          cfg.WorkerID,
		now:               time.Now,
	}
}

// TriggerResult reports what a trigger event started.
type TriggerResult struct {
	WorkflowsTriggered int `json:"workflows_triggered"`
}

// HandleTriggerEvent evaluates an entity change against all active workflows
// and starts an execution for each match, unless a duplicate delivery of the
// same event already claimed the suppression window.
func (e *Engine) HandleTriggerEvent(ctx context.Context, event events.EntityChanged) (TriggerResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.handle_trigger_event",
		attribute.String(otelhelper.EventIDKey, event.ID),
		attribute.String(otelhelper.CompanyIDKey, event.CompanyID),
		attribute.String(otelhelper.EntityIDKey, event.EntityID),
	)
	defer span.End()

	result := TriggerResult{}

	workflows, err := e.persistence.WorkflowRepository().ListActive(ctx)
	if err != nil {
		otelhelper.SetError(span, err)

		return result, fmt.Errorf("failed to list active workflows: %w", err)
	}

	matches := e.evaluator.Evaluate(event, workflows)

	for _, match := range matches {
		claimed, err := e.claimTrigger(ctx, match.Workflow.ID, event.EntityID, event.ChangeType)
		if err != nil {
			e.logger.ErrorContext(ctx, "Suppression claim failed, dropping trigger",
				"workflow_id", match.Workflow.ID, "entity_id", event.EntityID, "error", err)

			continue
		}

		if !claimed {
			e.logger.InfoContext(ctx, "Duplicate trigger suppressed",
				"workflow_id", match.Workflow.ID, "entity_id", event.EntityID, "event_type", event.ChangeType)

			continue
		}

		err = e.startExecution(ctx, match.Workflow, event.EntityID, match.InitialContext)
		if err != nil {
			e.logger.ErrorContext(ctx, "Failed to start execution",
				"workflow_id", match.Workflow.ID, "entity_id", event.EntityID, "error", err)

			continue
		}

		result.WorkflowsTriggered++
	}

	return result, nil
}

// claimTrigger decides whether a trigger match may start an execution.
// Without a suppression store it falls back to the execution history: a state
// for the same workflow and entity created inside the window counts as a
// duplicate.
func (e *Engine) claimTrigger(ctx context.Context, workflowID, entityID, eventType string) (bool, error) {
	if e.suppression == nil {
		latest, err := e.persistence.ExecutionRepository().LatestForEntity(ctx, workflowID, entityID)
		if err != nil {
			return false, err
		}

		if latest != nil && e.now().Sub(latest.CreatedAt) < e.suppressionWindow {
			return false, nil
		}

		return true, nil
	}

	key := fmt.Sprintf("%s/%s/%s", workflowID, entityID, eventType)

	return e.suppression.Claim(ctx, key, e.suppressionWindow)
}

// startExecution creates a new running state positioned on the first node
// after the trigger and advances it until it suspends or terminates. The
// advance error, if any, is contained per execution.
func (e *Engine) startExecution(ctx context.Context, wf *models.Workflow, entityID string, initialContext map[string]any) error {
	trigger := wf.TriggerNode()
	if trigger == nil {
		return fmt.Errorf("workflow %s has no trigger node", wf.ID)
	}

	now := e.now()

	state := &models.ExecutionState{
		ID:            uuid.New().String(),
		WorkflowID:    wf.ID,
		CompanyID:     wf.CompanyID,
		EntityID:      entityID,
		Status:        models.ExecutionStatusRunning,
		Context:       initialContext,
		ExecutedNodes: []string{trigger.ID},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	next := workflow.NextNodes(wf, trigger.ID, models.BranchDefault)
	if len(next) == 0 {
		state.Status = models.ExecutionStatusCompleted

		return e.persistence.ExecutionRepository().Save(ctx, state)
	}

	state.CurrentNodeID = next[0]

	err := e.persistence.ExecutionRepository().Save(ctx, state)
	if err != nil {
		return err
	}

	e.publish(ctx, state.ID, events.ExecutionStarted{
		BaseEvent:   events.NewExecutionBase(events.ExecutionStartedEvent, state),
		ExecutionID: state.ID,
		WorkflowID:  state.WorkflowID,
		EntityID:    state.EntityID,
	})

	err = e.advance(ctx, wf, state)
	if err != nil {
		e.logger.ErrorContext(ctx, "Execution advance failed",
			"execution_id", state.ID, "workflow_id", wf.ID, "error", err)
	}

	return nil
}

// advance runs the state machine loop: action and condition nodes are
// processed without yielding until a delay suspends the execution, a node
// without outgoing connections completes it, or an action error fails it.
func (e *Engine) advance(ctx context.Context, wf *models.Workflow, state *models.ExecutionState) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.advance",
		attribute.String(otelhelper.ExecutionIDKey, state.ID),
		attribute.String(otelhelper.WorkflowIDKey, wf.ID),
	)
	defer span.End()

	for range maxStepsPerRun {
		if state.IsTerminal() {
			return nil
		}

		node := wf.NodeByID(state.CurrentNodeID)
		if node == nil {
			return e.failExecution(ctx, state, nil, "unknown_node",
				fmt.Sprintf("node %s not found in workflow", state.CurrentNodeID))
		}

		branch := models.BranchDefault

		switch node.Kind {
		case models.NodeKindAction:
			if node.Action == nil {
				return e.failExecution(ctx, state, node, "invalid_node",
					fmt.Sprintf("action node %s has no action config", node.ID))
			}

			done, err := e.runAction(ctx, state, node)
			if err != nil {
				return err
			}

			if done {
				return nil
			}

		case models.NodeKindCondition:
			branch = workflow.SelectBranch(node.Condition, state.Context)
			e.runLog.Record(ctx, state, node, models.RunLogOutcomeSuccess, "branch="+branch)

		case models.NodeKindDelay:
			if node.Delay == nil {
				return e.failExecution(ctx, state, node, "invalid_node",
					fmt.Sprintf("delay node %s has no delay config", node.ID))
			}

			return e.suspend(ctx, state, node)

		case models.NodeKindTrigger:
			// Cursor always starts after the trigger; nothing to do.
		}

		next := workflow.NextNodes(wf, node.ID, branch)
		if len(next) == 0 {
			return e.completeExecution(ctx, state)
		}

		state.CurrentNodeID = next[0]
		state.UpdatedAt = e.now()

		err := e.persistence.ExecutionRepository().Save(ctx, state)
		if err != nil {
			return err
		}
	}

	return e.failExecution(ctx, state, nil, "step_limit_exceeded",
		fmt.Sprintf("execution exceeded %d steps, likely a connection cycle", maxStepsPerRun))
}

// runAction dispatches one action node. The replay guard skips nodes already
// executed in this run, so a retried tick never duplicates a provider send.
// Returns done=true when the action failure terminated the execution.
func (e *Engine) runAction(ctx context.Context, state *models.ExecutionState, node *models.WorkflowNode) (bool, error) {
	if state.HasExecuted(node.ID) {
		e.runLog.Record(ctx, state, node, models.RunLogOutcomeSkipped, "already_executed")

		return false, nil
	}

	outcome := e.dispatcher.Dispatch(ctx, node.Action, state)
	if !outcome.Success {
		detail := string(outcome.ErrorKind)
		if outcome.Detail != "" {
			detail += ": " + outcome.Detail
		}

		e.runLog.Record(ctx, state, node, models.RunLogOutcomeError, detail)

		return true, e.failExecution(ctx, state, node, detail, detail)
	}

	outputKey := node.Action.OutputKey
	if outputKey == "" {
		outputKey = node.ID
	}

	if state.Context == nil {
		state.Context = make(map[string]any)
	}

	state.Context[outputKey] = outcome.Output
	state.MarkExecuted(node.ID)

	e.runLog.Record(ctx, state, node, models.RunLogOutcomeSuccess, outcome.ProviderMessageID)

	return false, nil
}

// suspend parks the execution on a delay node. A zero or past resume time
// still goes through waiting; the next tick resumes it immediately.
func (e *Engine) suspend(ctx context.Context, state *models.ExecutionState, node *models.WorkflowNode) error {
	resumeAt := node.Delay.ResumeAt(e.now())

	state.Status = models.ExecutionStatusWaiting
	state.ResumeAt = &resumeAt
	state.UpdatedAt = e.now()

	e.runLog.Record(ctx, state, node, models.RunLogOutcomeSuccess,
		"waiting until "+resumeAt.Format(time.RFC3339))

	err := e.persistence.ExecutionRepository().Save(ctx, state)
	if err != nil {
		return err
	}

	e.publish(ctx, state.ID, events.ExecutionWaiting{
		BaseEvent:   events.NewExecutionBase(events.ExecutionWaitingEvent, state),
		ExecutionID: state.ID,
		WorkflowID:  state.WorkflowID,
		NodeID:      node.ID,
		ResumeAt:    resumeAt,
	})

	return nil
}

func (e *Engine) completeExecution(ctx context.Context, state *models.ExecutionState) error {
	state.Status = models.ExecutionStatusCompleted
	state.ResumeAt = nil
	state.UpdatedAt = e.now()

	err := e.persistence.ExecutionRepository().Save(ctx, state)
	if err != nil {
		return err
	}

	e.publish(ctx, state.ID, events.ExecutionCompleted{
		BaseEvent:   events.NewExecutionBase(events.ExecutionCompletedEvent, state),
		ExecutionID: state.ID,
		WorkflowID:  state.WorkflowID,
		Duration:    state.UpdatedAt.Sub(state.CreatedAt),
	})

	return nil
}

func (e *Engine) failExecution(ctx context.Context, state *models.ExecutionState, node *models.WorkflowNode, reason, detail string) error {
	state.Status = models.ExecutionStatusFailed
	state.FailureReason = reason
	state.ResumeAt = nil
	state.UpdatedAt = e.now()

	err := e.persistence.ExecutionRepository().Save(ctx, state)
	if err != nil {
		return err
	}

	nodeID := state.CurrentNodeID
	if node != nil {
		nodeID = node.ID
	}

	e.logger.WarnContext(ctx, "Execution failed",
		"execution_id", state.ID, "workflow_id", state.WorkflowID, "node_id", nodeID, "detail", detail)

	e.publish(ctx, state.ID, events.ExecutionFailed{
		BaseEvent:   events.NewExecutionBase(events.ExecutionFailedEvent, state),
		ExecutionID: state.ID,
		WorkflowID:  state.WorkflowID,
		NodeID:      nodeID,
		Reason:      reason,
	})

	return nil
}

// publish sends a lifecycle event. Publishing is best effort: a bus error is
// logged, never surfaced to the state machine.
func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	err := e.publisher.Publish(ctx, key, event)
	if err != nil {
		e.logger.WarnContext(ctx, "Failed to publish lifecycle event",
			"event_type", event.GetType(), "key", key, "error", err)
	}
}
