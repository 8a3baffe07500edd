package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/omniflowhq/omniflow/pkg/models"
	"github.com/omniflowhq/omniflow/pkg/persistence"
)

type WorkflowRepository struct {
	dir string
	mu  sync.RWMutex
}

func (r *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := writeJSON(r.dir, workflow.ID, workflow); err != nil {
		return persistence.NewWorkflowError("save", workflow.ID, err)
	}

	return nil
}

func (r *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var workflow models.Workflow
	if err := readJSON(r.dir, id, &workflow); err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewWorkflowError("get", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("get", id, err)
	}

	return &workflow, nil
}

func (r *WorkflowRepository) ListByCompany(_ context.Context, companyID string) ([]*models.Workflow, error) {
	return r.list(func(w *models.Workflow) bool {
		return w.CompanyID == companyID && w.DeletedAt == nil
	})
}

func (r *WorkflowRepository) ListActive(_ context.Context) ([]*models.Workflow, error) {
	return r.list(func(w *models.Workflow) bool {
		return w.Status == models.WorkflowStatusActive && w.DeletedAt == nil
	})
}

func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := filepath.Join(r.dir, id+".json")
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return persistence.NewWorkflowError("delete", id, persistence.ErrWorkflowNotFound)
		}

		return persistence.NewWorkflowError("delete", id, err)
	}

	return nil
}

func (r *WorkflowRepository) list(keep func(*models.Workflow) bool) ([]*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var workflows []*models.Workflow

	err := readAll(r.dir, func(body []byte) error {
		var workflow models.Workflow
		if err := json.Unmarshal(body, &workflow); err != nil {
			return err
		}

		if keep(&workflow) {
			workflows = append(workflows, &workflow)
		}

		return nil
	})
	if err != nil {
		return nil, persistence.NewWorkflowError("list", "", err)
	}

	sort.Slice(workflows, func(i, j int) bool { return workflows[i].ID < workflows[j].ID })

	return workflows, nil
}
