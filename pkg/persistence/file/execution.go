package file

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/omniflowhq/omniflow/pkg/models"
	"github.com/omniflowhq/omniflow/pkg/persistence"
)

type ExecutionRepository struct {
	dir string
	mu  sync.RWMutex
}

// Save persists an execution state. Once a state reached a terminal status
// its status can no longer change.
func (r *ExecutionRepository) Save(_ context.Context, state *models.ExecutionState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var existing models.ExecutionState
	if err := readJSON(r.dir, state.ID, &existing); err == nil {
		if existing.IsTerminal() && existing.Status != state.Status {
			return persistence.NewExecutionError("save", state.ID, persistence.ErrTerminalState)
		}
	}

	if err := writeJSON(r.dir, state.ID, state); err != nil {
		return persistence.NewExecutionError("save", state.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) GetByID(_ context.Context, id string) (*models.ExecutionState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var state models.ExecutionState
	if err := readJSON(r.dir, id, &state); err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewExecutionError("get", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("get", id, err)
	}

	return &state, nil
}

func (r *ExecutionRepository) ListByWorkflow(_ context.Context, workflowID string) ([]*models.ExecutionState, error) {
	return r.list(func(s *models.ExecutionState) bool {
		return s.WorkflowID == workflowID
	})
}

// ListDue returns executions ready to run: waiting with a resume time at or
// before now, or running but untouched since staleBefore. A running state
// with a fresh update belongs to an in-flight worker and is skipped. Oldest
// first, capped at limit.
func (r *ExecutionRepository) ListDue(_ context.Context, now, staleBefore time.Time, limit int) ([]*models.ExecutionState, error) {
	states, err := r.list(func(s *models.ExecutionState) bool {
		switch s.Status {
		case models.ExecutionStatusRunning:
			return s.UpdatedAt.Before(staleBefore)
		case models.ExecutionStatusWaiting:
			return s.ResumeAt != nil && !s.ResumeAt.After(now)
		default:
			return false
		}
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(states, func(i, j int) bool { return states[i].UpdatedAt.Before(states[j].UpdatedAt) })

	if limit > 0 && len(states) > limit {
		states = states[:limit]
	}

	return states, nil
}

// ListWaitingOlderThan returns waiting states whose resume time passed before
// the cutoff. These were due long ago and never resumed.
func (r *ExecutionRepository) ListWaitingOlderThan(_ context.Context, cutoff time.Time) ([]*models.ExecutionState, error) {
	return r.list(func(s *models.ExecutionState) bool {
		return s.Status == models.ExecutionStatusWaiting && s.ResumeAt != nil && s.ResumeAt.Before(cutoff)
	})
}

// LatestForEntity returns the most recently created execution of a workflow
// for an entity, or nil when none exists.
func (r *ExecutionRepository) LatestForEntity(_ context.Context, workflowID, entityID string) (*models.ExecutionState, error) {
	states, err := r.list(func(s *models.ExecutionState) bool {
		return s.WorkflowID == workflowID && s.EntityID == entityID
	})
	if err != nil {
		return nil, err
	}

	var latest *models.ExecutionState

	for _, state := range states {
		if latest == nil || state.CreatedAt.After(latest.CreatedAt) {
			latest = state
		}
	}

	return latest, nil
}

func (r *ExecutionRepository) list(keep func(*models.ExecutionState) bool) ([]*models.ExecutionState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var states []*models.ExecutionState

	err := readAll(r.dir, func(body []byte) error {
		var state models.ExecutionState
		if err := json.Unmarshal(body, &state); err != nil {
			return err
		}

		if keep(&state) {
			states = append(states, &state)
		}

		return nil
	})
	if err != nil {
		return nil, persistence.NewExecutionError("list", "", err)
	}

	return states, nil
}
