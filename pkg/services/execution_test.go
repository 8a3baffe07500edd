package services

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniflowhq/omniflow/pkg/models"
	"github.com/omniflowhq/omniflow/pkg/persistence"
	"github.com/omniflowhq/omniflow/pkg/persistence/file"
)

func newExecutionService(t *testing.T) (*Execution, *file.Persistence) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	return NewExecution(p, nil, logger), p
}

func TestExecutionHistory(t *testing.T) {
	service, p := newExecutionService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	state := &models.ExecutionState{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		CompanyID:  "acme",
		Status:     models.ExecutionStatusCompleted,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, p.ExecutionRepository().Save(ctx, state))

	entry := &models.RunLogEntry{
		ID:               "entry-1",
		ExecutionStateID: "exec-1",
		NodeID:           "email",
		NodeKind:         models.NodeKindAction,
		Outcome:          models.RunLogOutcomeSuccess,
		Timestamp:        now,
	}
	require.NoError(t, p.RunLogRepository().Append(ctx, entry))

	entries, err := service.History(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "email", entries[0].NodeID)

	_, err = service.History(ctx, "exec-unknown")
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestCancelExecution(t *testing.T) {
	service, p := newExecutionService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	resumeAt := now.Add(time.Hour)
	state := &models.ExecutionState{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		CompanyID:  "acme",
		Status:     models.ExecutionStatusWaiting,
		ResumeAt:   &resumeAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, p.ExecutionRepository().Save(ctx, state))

	cancelled, err := service.Cancel(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.ResumeAt)

	_, err = service.Cancel(ctx, "exec-1")
	assert.ErrorIs(t, err, ErrExecutionTerminal)
}
