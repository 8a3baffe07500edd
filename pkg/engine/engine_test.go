package engine

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniflowhq/omniflow/pkg/dispatcher"
	"github.com/omniflowhq/omniflow/pkg/events"
	"github.com/omniflowhq/omniflow/pkg/models"
	"github.com/omniflowhq/omniflow/pkg/persistence/file"
	"github.com/omniflowhq/omniflow/pkg/providers"
	"github.com/omniflowhq/omniflow/pkg/runlog"
	"github.com/omniflowhq/omniflow/pkg/suppression"
)

type fakeDispatcher struct {
	mu       sync.Mutex
	calls    []models.ActionType
	failWith map[models.ActionType]dispatcher.Outcome
	panicOn  map[models.ActionType]bool
}

func (d *fakeDispatcher) Dispatch(_ context.Context, action *models.ActionSpec, _ *models.ExecutionState) dispatcher.Outcome {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls = append(d.calls, action.Type)

	if d.panicOn[action.Type] {
		panic("vendor client blew up")
	}

	if outcome, ok := d.failWith[action.Type]; ok {
		return outcome
	}

	return dispatcher.Outcome{
		Result: providers.Result{Success: true, ProviderMessageID: "msg-1"},
		Output: map[string]any{"provider": "fake"},
	}
}

func (d *fakeDispatcher) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.calls)
}

type testHarness struct {
	engine      *Engine
	dispatcher  *fakeDispatcher
	persistence *file.Persistence
	now         time.Time
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	p := file.NewPersistence(t.TempDir())
	fake := &fakeDispatcher{
		failWith: make(map[models.ActionType]dispatcher.Outcome),
		panicOn:  make(map[models.ActionType]bool),
	}

	eng := NewEngine(Config{
		Persistence: p,
		Dispatcher:  fake,
		RunLog:      runlog.NewLogger(p.RunLogRepository(), logger),
		Suppression: suppression.NewMemoryStore(),
		Logger:      logger,
	})

	h := &testHarness{engine: eng, dispatcher: fake, persistence: p, now: time.Now().UTC()}
	eng.now = func() time.Time { return h.now }

	return h
}

func (h *testHarness) saveWorkflow(t *testing.T, wf *models.Workflow) {
	t.Helper()
	require.NoError(t, h.persistence.WorkflowRepository().Save(context.Background(), wf))
}

func (h *testHarness) execution(t *testing.T, workflowID string) *models.ExecutionState {
	t.Helper()

	states, err := h.persistence.ExecutionRepository().ListByWorkflow(context.Background(), workflowID)
	require.NoError(t, err)
	require.Len(t, states, 1)

	return states[0]
}

func leadWorkflow(actions ...*models.WorkflowNode) *models.Workflow {
	nodes := []*models.WorkflowNode{
		{
			ID:   "trigger",
			Kind: models.NodeKindTrigger,
			Name: "Lead created",
			Trigger: &models.TriggerSpec{
				EventType: models.EventTypeLeadCreated,
				Filters: []models.FilterClause{
					{Field: "source", Operator: models.OperatorEquals, Value: "facebook"},
				},
			},
		},
	}
	nodes = append(nodes, actions...)

	connections := make([]*models.Connection, 0, len(nodes)-1)
	for i := 1; i < len(nodes); i++ {
		connections = append(connections, &models.Connection{
			ID:         "c" + nodes[i].ID,
			FromNodeID: nodes[i-1].ID,
			ToNodeID:   nodes[i].ID,
		})
	}

	return &models.Workflow{
		ID:          "wf-1",
		CompanyID:   "acme",
		Name:        "Facebook leads",
		Status:      models.WorkflowStatusActive,
		Nodes:       nodes,
		Connections: connections,
	}
}

func emailNode(id string) *models.WorkflowNode {
	return &models.WorkflowNode{
		ID:   id,
		Kind: models.NodeKindAction,
		Name: "Send email",
		Action: &models.ActionSpec{
			Type:    models.ActionTypeSendEmail,
			To:      "{{email}}",
			Payload: map[string]string{"subject": "Hello", "body": "Hi {{name}}"},
		},
	}
}

func TestHandleTriggerEventSelectsByFilter(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.saveWorkflow(t, leadWorkflow(emailNode("email")))

	matched := events.NewEntityChanged("acme", "lead", "lead-1", models.EventTypeLeadCreated,
		map[string]any{"source": "facebook", "email": "a@b.c"})

	result, err := h.engine.HandleTriggerEvent(ctx, matched)
	require.NoError(t, err)
	assert.Equal(t, 1, result.WorkflowsTriggered)

	state := h.execution(t, "wf-1")
	assert.Equal(t, models.ExecutionStatusCompleted, state.Status)
	assert.Equal(t, 1, h.dispatcher.callCount())

	unmatched := events.NewEntityChanged("acme", "lead", "lead-2", models.EventTypeLeadCreated,
		map[string]any{"source": "web"})

	result, err = h.engine.HandleTriggerEvent(ctx, unmatched)
	require.NoError(t, err)
	assert.Equal(t, 0, result.WorkflowsTriggered)
}

func TestHandleTriggerEventSuppressesDuplicates(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.saveWorkflow(t, leadWorkflow(emailNode("email")))

	event := events.NewEntityChanged("acme", "lead", "lead-1", models.EventTypeLeadCreated,
		map[string]any{"source": "facebook"})

	first, err := h.engine.HandleTriggerEvent(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, 1, first.WorkflowsTriggered)

	second, err := h.engine.HandleTriggerEvent(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, 0, second.WorkflowsTriggered)

	assert.Equal(t, 1, h.dispatcher.callCount())
}

func TestDelayThenActionLifecycle(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	delay := &models.WorkflowNode{
		ID:    "wait",
		Kind:  models.NodeKindDelay,
		Name:  "Wait an hour",
		Delay: &models.DelaySpec{Amount: 1, Unit: "hours"},
	}
	sms := &models.WorkflowNode{
		ID:   "sms",
		Kind: models.NodeKindAction,
		Name: "Send SMS",
		Action: &models.ActionSpec{
			Type: models.ActionTypeSendSMS,
			To:   "+15550001",
		},
	}
	h.saveWorkflow(t, leadWorkflow(delay, sms))

	event := events.NewEntityChanged("acme", "lead", "lead-1", models.EventTypeLeadCreated,
		map[string]any{"source": "facebook"})

	_, err := h.engine.HandleTriggerEvent(ctx, event)
	require.NoError(t, err)

	state := h.execution(t, "wf-1")
	require.Equal(t, models.ExecutionStatusWaiting, state.Status)
	require.NotNil(t, state.ResumeAt)
	assert.WithinDuration(t, h.now.Add(time.Hour), *state.ResumeAt, time.Second)
	assert.Equal(t, 0, h.dispatcher.callCount())

	// A tick before the resume time leaves the state untouched.
	h.now = h.now.Add(30 * time.Minute)

	result, err := h.engine.ProcessDueExecutions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, models.ExecutionStatusWaiting, h.execution(t, "wf-1").Status)

	// A tick after the resume time runs the SMS and completes.
	h.now = h.now.Add(time.Hour)

	result, err = h.engine.ProcessDueExecutions(ctx)
	require.NoError(t, err)
	assert.Equal(t, TickResult{Processed: 1, Succeeded: 1}, result)

	state = h.execution(t, "wf-1")
	assert.Equal(t, models.ExecutionStatusCompleted, state.Status)
	assert.Nil(t, state.ResumeAt)
	assert.Equal(t, 1, h.dispatcher.callCount())
	assert.Contains(t, state.ExecutedNodes, "wait")
	assert.Contains(t, state.ExecutedNodes, "sms")
}

func TestZeroDurationDelayResumesOnNextTick(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	delay := &models.WorkflowNode{
		ID:    "wait",
		Kind:  models.NodeKindDelay,
		Name:  "No wait",
		Delay: &models.DelaySpec{Amount: 0, Unit: "seconds"},
	}
	h.saveWorkflow(t, leadWorkflow(delay, emailNode("email")))

	event := events.NewEntityChanged("acme", "lead", "lead-1", models.EventTypeLeadCreated,
		map[string]any{"source": "facebook"})

	_, err := h.engine.HandleTriggerEvent(ctx, event)
	require.NoError(t, err)
	require.Equal(t, models.ExecutionStatusWaiting, h.execution(t, "wf-1").Status)

	result, err := h.engine.ProcessDueExecutions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, models.ExecutionStatusCompleted, h.execution(t, "wf-1").Status)
}

func TestCredentialMissingFailsExecution(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.dispatcher.failWith[models.ActionTypeSendEmail] = dispatcher.Outcome{
		Result: providers.Result{
			Success:   false,
			ErrorKind: providers.ErrorKindCredentialMissing,
			Detail:    dispatcher.DetailCredentialMissing,
		},
	}
	h.saveWorkflow(t, leadWorkflow(emailNode("email")))

	event := events.NewEntityChanged("acme", "lead", "lead-1", models.EventTypeLeadCreated,
		map[string]any{"source": "facebook"})

	_, err := h.engine.HandleTriggerEvent(ctx, event)
	require.NoError(t, err)

	state := h.execution(t, "wf-1")
	assert.Equal(t, models.ExecutionStatusFailed, state.Status)
	assert.Contains(t, state.FailureReason, string(providers.ErrorKindCredentialMissing))
	assert.Contains(t, state.FailureReason, dispatcher.DetailCredentialMissing)

	entries, err := h.persistence.RunLogRepository().ListByExecution(ctx, state.ID)
	require.NoError(t, err)

	errorEntries := 0
	for _, entry := range entries {
		if entry.NodeID == "email" {
			assert.Equal(t, models.RunLogOutcomeError, entry.Outcome)
			errorEntries++
		}
	}
	assert.Equal(t, 1, errorEntries)
}

func TestReplayedTickNeverRepeatsExecutedNodes(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	wf := leadWorkflow(emailNode("email"), emailNode("followup"))
	h.saveWorkflow(t, wf)

	// Simulate a crashed invocation that sent the first email and persisted
	// the cursor on that node before advancing. The last touch is older than
	// the recovery lease, so the tick reclaims the state.
	crashedAt := h.now.Add(-10 * time.Minute)
	state := &models.ExecutionState{
		ID:            "exec-1",
		WorkflowID:    wf.ID,
		CompanyID:     wf.CompanyID,
		EntityID:      "lead-1",
		CurrentNodeID: "email",
		Status:        models.ExecutionStatusRunning,
		Context:       map[string]any{"source": "facebook"},
		ExecutedNodes: []string{"trigger", "email"},
		CreatedAt:     crashedAt,
		UpdatedAt:     crashedAt,
	}
	require.NoError(t, h.persistence.ExecutionRepository().Save(ctx, state))

	result, err := h.engine.ProcessDueExecutions(ctx)
	require.NoError(t, err)
	assert.Equal(t, TickResult{Processed: 1, Succeeded: 1}, result)

	// Only the followup was sent; the already-executed node was skipped.
	assert.Equal(t, []models.ActionType{models.ActionTypeSendEmail}, h.dispatcher.calls)

	loaded, err := h.persistence.ExecutionRepository().GetByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, loaded.Status)

	entries, err := h.persistence.RunLogRepository().ListByExecution(ctx, "exec-1")
	require.NoError(t, err)

	var skipped bool
	for _, entry := range entries {
		if entry.NodeID == "email" && entry.Outcome == models.RunLogOutcomeSkipped {
			skipped = true
		}
	}
	assert.True(t, skipped, "expected a skipped run log entry for the replayed node")
}

func TestTickLeavesInFlightRunningStateAlone(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	wf := leadWorkflow(emailNode("email"))
	h.saveWorkflow(t, wf)

	// A running state touched moments ago belongs to a worker that is still
	// advancing it, perhaps mid-provider-send. The tick must not reclaim it,
	// or the same action would be dispatched twice.
	state := &models.ExecutionState{
		ID:            "exec-live",
		WorkflowID:    wf.ID,
		CompanyID:     wf.CompanyID,
		EntityID:      "lead-1",
		CurrentNodeID: "email",
		Status:        models.ExecutionStatusRunning,
		Context:       map[string]any{"source": "facebook"},
		ExecutedNodes: []string{"trigger"},
		CreatedAt:     h.now,
		UpdatedAt:     h.now,
	}
	require.NoError(t, h.persistence.ExecutionRepository().Save(ctx, state))

	result, err := h.engine.ProcessDueExecutions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, 0, h.dispatcher.callCount())

	// Past the recovery lease the owning worker is presumed dead and the
	// tick picks the state up.
	h.now = h.now.Add(10 * time.Minute)

	result, err = h.engine.ProcessDueExecutions(ctx)
	require.NoError(t, err)
	assert.Equal(t, TickResult{Processed: 1, Succeeded: 1}, result)
	assert.Equal(t, 1, h.dispatcher.callCount())
}

func TestNilActionSpecFailsExecution(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	// Stored active with a broken node, bypassing the activation gate.
	broken := &models.WorkflowNode{ID: "email", Kind: models.NodeKindAction, Name: "Send email"}
	h.saveWorkflow(t, leadWorkflow(broken))

	event := events.NewEntityChanged("acme", "lead", "lead-1", models.EventTypeLeadCreated,
		map[string]any{"source": "facebook"})

	_, err := h.engine.HandleTriggerEvent(ctx, event)
	require.NoError(t, err)

	state := h.execution(t, "wf-1")
	assert.Equal(t, models.ExecutionStatusFailed, state.Status)
	assert.Equal(t, "invalid_node", state.FailureReason)
	assert.Equal(t, 0, h.dispatcher.callCount())
}

func TestNilDelaySpecFailsExecution(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	broken := &models.WorkflowNode{ID: "wait", Kind: models.NodeKindDelay, Name: "Wait"}
	h.saveWorkflow(t, leadWorkflow(broken, emailNode("email")))

	event := events.NewEntityChanged("acme", "lead", "lead-1", models.EventTypeLeadCreated,
		map[string]any{"source": "facebook"})

	_, err := h.engine.HandleTriggerEvent(ctx, event)
	require.NoError(t, err)

	state := h.execution(t, "wf-1")
	assert.Equal(t, models.ExecutionStatusFailed, state.Status)
	assert.Equal(t, "invalid_node", state.FailureReason)
	assert.Equal(t, 0, h.dispatcher.callCount())
}

func TestTickContainsPanickingDispatch(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.dispatcher.panicOn[models.ActionTypeSendEmail] = true

	wf := leadWorkflow(emailNode("email"))
	h.saveWorkflow(t, wf)

	crashedAt := h.now.Add(-10 * time.Minute)
	state := &models.ExecutionState{
		ID:            "exec-panic",
		WorkflowID:    wf.ID,
		CompanyID:     wf.CompanyID,
		EntityID:      "lead-1",
		CurrentNodeID: "email",
		Status:        models.ExecutionStatusRunning,
		Context:       map[string]any{"source": "facebook"},
		ExecutedNodes: []string{"trigger"},
		CreatedAt:     crashedAt,
		UpdatedAt:     crashedAt,
	}
	require.NoError(t, h.persistence.ExecutionRepository().Save(ctx, state))

	result, err := h.engine.ProcessDueExecutions(ctx)
	require.NoError(t, err)
	assert.Equal(t, TickResult{Processed: 1, Failed: 1}, result)

	loaded, err := h.persistence.ExecutionRepository().GetByID(ctx, "exec-panic")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, loaded.Status)
	assert.Equal(t, "internal_error", loaded.FailureReason)
}

func TestConditionRoutesBranches(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	wf := leadWorkflow()
	wf.Nodes = append(wf.Nodes,
		&models.WorkflowNode{
			ID:   "check",
			Kind: models.NodeKindCondition,
			Name: "Hot lead?",
			Condition: &models.ConditionSpec{
				Clauses: []models.FilterClause{
					{Field: "score", Operator: models.OperatorGreaterThan, Value: 50},
				},
			},
		},
		emailNode("hot"),
		&models.WorkflowNode{
			ID:   "cold",
			Kind: models.NodeKindAction,
			Name: "Send SMS",
			Action: &models.ActionSpec{
				Type: models.ActionTypeSendSMS,
				To:   "{{phone}}",
			},
		},
	)
	wf.Connections = []*models.Connection{
		{ID: "c1", FromNodeID: "trigger", ToNodeID: "check"},
		{ID: "c2", FromNodeID: "check", ToNodeID: "hot", Branch: models.BranchTrue},
		{ID: "c3", FromNodeID: "check", ToNodeID: "cold", Branch: models.BranchFalse},
	}
	h.saveWorkflow(t, wf)

	event := events.NewEntityChanged("acme", "lead", "lead-1", models.EventTypeLeadCreated,
		map[string]any{"source": "facebook", "score": 80})

	_, err := h.engine.HandleTriggerEvent(ctx, event)
	require.NoError(t, err)

	assert.Equal(t, []models.ActionType{models.ActionTypeSendEmail}, h.dispatcher.calls)
	assert.Equal(t, models.ExecutionStatusCompleted, h.execution(t, "wf-1").Status)
}

func TestSweepAbandoned(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	h.saveWorkflow(t, leadWorkflow(emailNode("email")))

	longPast := h.now.Add(-60 * 24 * time.Hour)
	state := &models.ExecutionState{
		ID:            "exec-stale",
		WorkflowID:    "wf-1",
		CompanyID:     "acme",
		CurrentNodeID: "email",
		Status:        models.ExecutionStatusWaiting,
		ResumeAt:      &longPast,
		CreatedAt:     longPast,
		UpdatedAt:     longPast,
	}
	require.NoError(t, h.persistence.ExecutionRepository().Save(ctx, state))

	swept, err := h.engine.SweepAbandoned(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	loaded, err := h.persistence.ExecutionRepository().GetByID(ctx, "exec-stale")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, loaded.Status)
	assert.Equal(t, models.FailureReasonAbandoned, loaded.FailureReason)
}

func TestProcessDueSchedules(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	wf := &models.Workflow{
		ID:        "wf-sched",
		CompanyID: "acme",
		Name:      "Daily digest",
		Status:    models.WorkflowStatusActive,
		Nodes: []*models.WorkflowNode{
			{
				ID:   "trigger",
				Kind: models.NodeKindTrigger,
				Name: "Every morning",
				Trigger: &models.TriggerSpec{
					EventType:      models.EventTypeSchedule,
					CronExpression: "0 9 * * *",
				},
			},
			emailNode("digest"),
		},
		Connections: []*models.Connection{
			{ID: "c1", FromNodeID: "trigger", ToNodeID: "digest"},
		},
	}
	h.saveWorkflow(t, wf)

	schedule, err := models.NewSchedule("sched-1", "wf-sched", "acme", "0 9 * * *")
	require.NoError(t, err)
	schedule.NextDueAt = h.now.Add(-time.Minute)
	require.NoError(t, h.persistence.ScheduleRepository().Save(ctx, schedule))

	triggered, err := h.engine.ProcessDueSchedules(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, triggered)

	state := h.execution(t, "wf-sched")
	assert.Equal(t, models.ExecutionStatusCompleted, state.Status)

	rolled, err := h.persistence.ScheduleRepository().GetByWorkflow(ctx, "wf-sched")
	require.NoError(t, err)
	assert.True(t, rolled.NextDueAt.After(h.now))
}
