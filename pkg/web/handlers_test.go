package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniflowhq/omniflow/pkg/eventbus"
	"github.com/omniflowhq/omniflow/pkg/models"
	"github.com/omniflowhq/omniflow/pkg/persistence/file"
	"github.com/omniflowhq/omniflow/pkg/services"
	"github.com/omniflowhq/omniflow/pkg/web"
)

type capturingPublisher struct {
	published []eventbus.Event
}

func (p *capturingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.published = append(p.published, event)

	return nil
}

func setupTestApp(t *testing.T) (*fiber.App, *file.Persistence, *capturingPublisher) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	publisher := &capturingPublisher{}

	handlers := web.NewAPIHandlers(
		services.NewWorkflow(p),
		services.NewExecution(p, publisher, logger),
		services.NewCredential(p, nil),
		publisher,
		validator.New(validator.WithRequiredStructEnabled()),
	)

	app := fiber.New()
	handlers.RegisterRoutes(app)

	return app, p, publisher
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	responseBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, responseBody
}

func createWorkflowRequest() web.CreateWorkflowRequest {
	return web.CreateWorkflowRequest{
		Name:      "Facebook leads",
		CompanyID: "acme",
		Nodes: []*models.WorkflowNode{
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
			{
				ID:   "email",
				Kind: models.NodeKindAction,
				Name: "Send email",
				Action: &models.ActionSpec{
					Type:    models.ActionTypeSendEmail,
					To:      "{{email}}",
					Payload: map[string]string{"subject": "Welcome"},
				},
			},
		},
		Connections: []*models.Connection{
			{ID: "c1", FromNodeID: "trigger", ToNodeID: "email"},
		},
	}
}

func TestCreateAndActivateWorkflow(t *testing.T) {
	app, _, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/workflows", createWorkflowRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Workflow
	require.NoError(t, json.Unmarshal(body, &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.WorkflowStatusDraft, created.Status)

	resp, body = doJSON(t, app, http.MethodPost, "/workflows/"+created.ID+"/activate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var activated models.Workflow
	require.NoError(t, json.Unmarshal(body, &activated))
	assert.Equal(t, models.WorkflowStatusActive, activated.Status)
}

func TestCreateWorkflowValidation(t *testing.T) {
	app, _, _ := setupTestApp(t)

	invalid := createWorkflowRequest()
	invalid.CompanyID = ""

	resp, _ := doJSON(t, app, http.MethodPost, "/workflows", invalid)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestActivateRejectsInvalidGraph(t *testing.T) {
	app, _, _ := setupTestApp(t)

	broken := createWorkflowRequest()
	broken.Connections = nil // action node unreachable from the trigger

	resp, body := doJSON(t, app, http.MethodPost, "/workflows", broken)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Workflow
	require.NoError(t, json.Unmarshal(body, &created))

	resp, _ = doJSON(t, app, http.MethodPost, "/workflows/"+created.ID+"/activate", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetWorkflowNotFound(t *testing.T) {
	app, _, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodGet, "/workflows/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExecutionEndpoints(t *testing.T) {
	app, p, _ := setupTestApp(t)
	ctx := context.Background()

	state := &models.ExecutionState{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		CompanyID:  "acme",
		Status:     models.ExecutionStatusRunning,
	}
	require.NoError(t, p.ExecutionRepository().Save(ctx, state))
	require.NoError(t, p.RunLogRepository().Append(ctx, &models.RunLogEntry{
		ID:               "entry-1",
		ExecutionStateID: "exec-1",
		NodeID:           "email",
		Outcome:          models.RunLogOutcomeSuccess,
	}))

	resp, body := doJSON(t, app, http.MethodGet, "/executions/exec-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var loaded models.ExecutionState
	require.NoError(t, json.Unmarshal(body, &loaded))
	assert.Equal(t, models.ExecutionStatusRunning, loaded.Status)

	resp, body = doJSON(t, app, http.MethodGet, "/executions/exec-1/runlog", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "entry-1")

	resp, _ = doJSON(t, app, http.MethodPost, "/executions/exec-1/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// A second cancel conflicts with the terminal state.
	resp, _ = doJSON(t, app, http.MethodPost, "/executions/exec-1/cancel", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestIngestEventPublishes(t *testing.T) {
	app, _, publisher := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/events", web.IngestEventRequest{
		CompanyID:  "acme",
		EntityType: "lead",
		EntityID:   "lead-1",
		ChangeType: models.EventTypeLeadCreated,
		EntityData: map[string]any{"source": "facebook"},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Contains(t, string(body), "event_id")
	require.Len(t, publisher.published, 1)
}

func TestSaveCredential(t *testing.T) {
	app, p, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPut, "/credentials", web.SaveCredentialRequest{
		CompanyID: "acme",
		Channel:   models.ChannelEmail,
		Provider:  "brevo",
		Settings:  map[string]string{"api_key": "secret"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	credentials, err := p.CredentialRepository().GetByCompanyChannel(context.Background(), "acme", models.ChannelEmail)
	require.NoError(t, err)
	assert.Contains(t, credentials, "brevo")
}
