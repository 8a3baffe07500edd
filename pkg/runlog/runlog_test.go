package runlog

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniflowhq/omniflow/pkg/models"
)

type failingRepository struct {
	appended int
}

func (r *failingRepository) Append(_ context.Context, _ *models.RunLogEntry) error {
	r.appended++

	return errors.New("disk full")
}

func (r *failingRepository) ListByExecution(_ context.Context, _ string) ([]*models.RunLogEntry, error) {
	return nil, nil
}

type memoryRepository struct {
	entries []*models.RunLogEntry
}

func (r *memoryRepository) Append(_ context.Context, entry *models.RunLogEntry) error {
	r.entries = append(r.entries, entry)

	return nil
}

func (r *memoryRepository) ListByExecution(_ context.Context, id string) ([]*models.RunLogEntry, error) {
	var out []*models.RunLogEntry

	for _, entry := range r.entries {
		if entry.ExecutionStateID == id {
			out = append(out, entry)
		}
	}

	return out, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestRecordSwallowsRepositoryErrors(t *testing.T) {
	repo := &failingRepository{}
	logger := NewLogger(repo, testLogger())

	state := &models.ExecutionState{ID: "exec-1"}
	node := &models.WorkflowNode{ID: "node-1", Kind: models.NodeKindAction}

	logger.Record(context.Background(), state, node, models.RunLogOutcomeError, "send failed")

	assert.Equal(t, 1, repo.appended)
}

func TestRecordWritesEntry(t *testing.T) {
	repo := &memoryRepository{}
	logger := NewLogger(repo, testLogger())

	state := &models.ExecutionState{ID: "exec-1"}
	node := &models.WorkflowNode{ID: "node-1", Kind: models.NodeKindCondition}

	logger.Record(context.Background(), state, node, models.RunLogOutcomeSuccess, "branch=true")

	entries, err := logger.History(context.Background(), "exec-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ID)
	assert.Equal(t, models.NodeKindCondition, entries[0].NodeKind)
	assert.Equal(t, "branch=true", entries[0].Detail)
	assert.False(t, entries[0].Timestamp.IsZero())
}
