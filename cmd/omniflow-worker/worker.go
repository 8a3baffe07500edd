package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/omniflowhq/omniflow/pkg/engine"
	"github.com/omniflowhq/omniflow/pkg/eventbus"
	"github.com/omniflowhq/omniflow/pkg/events"
)

// Worker drives one engine instance: it subscribes to entity change events
// and runs the periodic tick and sweep loops until interrupted.
type Worker struct {
	id            string
	engine        *engine.Engine
	eventBus      eventbus.EventBus
	logger        *slog.Logger
	tickInterval  time.Duration
	sweepInterval time.Duration
}

func NewWorker(
	id string,
	eng *engine.Engine,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
	tickInterval time.Duration,
	sweepInterval time.Duration,
) *Worker {
	return &Worker{
		id:            id,
		engine:        eng,
		eventBus:      eventBus,
		logger:        logger,
		tickInterval:  tickInterval,
		sweepInterval: sweepInterval,
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker",
		"tick_interval", w.tickInterval, "sweep_interval", w.sweepInterval)

	err := w.eventBus.Handle(events.EntityChangedEvent, w.handleEntityChanged)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	tick := time.NewTicker(w.tickInterval)
	defer tick.Stop()

	sweep := time.NewTicker(w.sweepInterval)
	defer sweep.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sigChan:
			w.logger.InfoContext(ctx, "Shutting down worker...")

			return nil
		case <-tick.C:
			w.tick(ctx)
		case <-sweep.C:
			w.sweepAbandoned(ctx)
		}
	}
}

// tick runs one processing round: due schedules first so executions they
// start are picked up on the next round, then due executions.
func (w *Worker) tick(ctx context.Context) {
	triggered, err := w.engine.ProcessDueSchedules(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to process due schedules", "error", err)
	}

	result, err := w.engine.ProcessDueExecutions(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to process due executions", "error", err)

		return
	}

	if result.Processed > 0 || triggered > 0 {
		w.logger.InfoContext(ctx, "Tick completed",
			"schedules_triggered", triggered,
			"processed", result.Processed,
			"succeeded", result.Succeeded,
			"failed", result.Failed)
	}
}

func (w *Worker) sweepAbandoned(ctx context.Context) {
	swept, err := w.engine.SweepAbandoned(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to sweep abandoned executions", "error", err)

		return
	}

	if swept > 0 {
		w.logger.WarnContext(ctx, "Abandoned executions failed", "count", swept)
	}
}

func (w *Worker) handleEntityChanged(ctx context.Context, event any) error {
	changed, ok := event.(*events.EntityChanged)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for EntityChanged")

		return nil
	}

	logger := w.logger.With(
		"company_id", changed.CompanyID,
		"entity_id", changed.EntityID,
		"change_type", changed.ChangeType,
		"event_id", changed.ID,
	)
	logger.InfoContext(ctx, "Processing entity change event")

	result, err := w.engine.HandleTriggerEvent(ctx, *changed)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to handle entity change event", "error", err)

		return err
	}

	if result.WorkflowsTriggered > 0 {
		logger.InfoContext(ctx, "Workflows triggered", "count", result.WorkflowsTriggered)
	}

	return nil
}
