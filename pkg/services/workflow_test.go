package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniflowhq/omniflow/pkg/models"
	"github.com/omniflowhq/omniflow/pkg/persistence"
	"github.com/omniflowhq/omniflow/pkg/persistence/file"
)

func newWorkflowService(t *testing.T) (*Workflow, *file.Persistence) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())

	return NewWorkflow(p), p
}

func validWorkflow() *models.Workflow {
	return &models.Workflow{
		CompanyID: "acme",
		Name:      "Lead welcome",
		Nodes: []*models.WorkflowNode{
			{
				ID:      "trigger",
				Kind:    models.NodeKindTrigger,
				Name:    "Lead created",
				Trigger: &models.TriggerSpec{EventType: models.EventTypeLeadCreated},
			},
			{
				ID:   "email",
				Kind: models.NodeKindAction,
				Name: "Send email",
				Action: &models.ActionSpec{
					Type: models.ActionTypeSendEmail,
					To:   "{{email}}",
					Payload: map[string]string{
						"subject": "Welcome",
						"body":    "Hi {{name}}",
					},
				},
			},
		},
		Connections: []*models.Connection{
			{ID: "c1", FromNodeID: "trigger", ToNodeID: "email"},
		},
	}
}

func TestCreateWorkflowDefaultsToDraft(t *testing.T) {
	service, _ := newWorkflowService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, validWorkflow())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.WorkflowStatusDraft, created.Status)
	assert.False(t, created.CreatedAt.IsZero())
}

func TestCreateWorkflowValidation(t *testing.T) {
	service, _ := newWorkflowService(t)
	ctx := context.Background()

	_, err := service.Create(ctx, nil)
	assert.ErrorIs(t, err, ErrWorkflowNil)

	unnamed := validWorkflow()
	unnamed.Name = ""
	_, err = service.Create(ctx, unnamed)
	assert.ErrorIs(t, err, ErrWorkflowNameRequired)

	orphan := validWorkflow()
	orphan.CompanyID = ""
	_, err = service.Create(ctx, orphan)
	assert.ErrorIs(t, err, ErrCompanyIDRequired)
}

func TestActivateValidatesGraph(t *testing.T) {
	service, _ := newWorkflowService(t)
	ctx := context.Background()

	// A draft with an unreachable node saves fine but cannot activate.
	draft := validWorkflow()
	draft.Nodes = append(draft.Nodes, &models.WorkflowNode{
		ID:   "island",
		Kind: models.NodeKindAction,
		Name: "Unreachable",
		Action: &models.ActionSpec{
			Type: models.ActionTypeSendSMS,
			To:   "+15550001",
		},
	})

	created, err := service.Create(ctx, draft)
	require.NoError(t, err)

	_, err = service.Activate(ctx, created.ID)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	loaded, err := service.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusDraft, loaded.Status)
}

func TestActivatePauseLifecycle(t *testing.T) {
	service, _ := newWorkflowService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, validWorkflow())
	require.NoError(t, err)

	activated, err := service.Activate(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusActive, activated.Status)

	// Editing while active conflicts.
	_, err = service.Update(ctx, activated)
	assert.ErrorIs(t, err, ErrWorkflowNotDraft)

	// Deleting while active conflicts.
	err = service.Delete(ctx, created.ID)
	assert.ErrorIs(t, err, ErrActiveWorkflowDelete)

	paused, err := service.Pause(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusPaused, paused.Status)

	_, err = service.Pause(ctx, created.ID)
	assert.ErrorIs(t, err, ErrWorkflowNotActive)

	require.NoError(t, service.Delete(ctx, created.ID))

	_, err = service.Get(ctx, created.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestActivateScheduleTriggerRegistersSchedule(t *testing.T) {
	service, p := newWorkflowService(t)
	ctx := context.Background()

	wf := validWorkflow()
	wf.Nodes[0].Trigger = &models.TriggerSpec{
		EventType:      models.EventTypeSchedule,
		CronExpression: "0 9 * * *",
	}

	created, err := service.Create(ctx, wf)
	require.NoError(t, err)

	_, err = service.Activate(ctx, created.ID)
	require.NoError(t, err)

	schedule, err := p.ScheduleRepository().GetByWorkflow(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, schedule.Active)
	assert.Equal(t, "0 9 * * *", schedule.CronExpression)

	_, err = service.Pause(ctx, created.ID)
	require.NoError(t, err)

	schedule, err = p.ScheduleRepository().GetByWorkflow(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, schedule.Active)
}
