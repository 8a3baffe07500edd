package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/omniflowhq/omniflow/pkg/models"
	"github.com/omniflowhq/omniflow/pkg/persistence"
)

type ScheduleRepository struct {
	dir string
	mu  sync.RWMutex
}

func (r *ScheduleRepository) Save(_ context.Context, schedule *models.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return writeJSON(r.dir, schedule.ID, schedule)
}

func (r *ScheduleRepository) GetByWorkflow(_ context.Context, workflowID string) (*models.Schedule, error) {
	schedules, err := r.list(func(s *models.Schedule) bool {
		return s.WorkflowID == workflowID
	})
	if err != nil {
		return nil, err
	}

	if len(schedules) == 0 {
		return nil, persistence.ErrScheduleNotFound
	}

	return schedules[0], nil
}

func (r *ScheduleRepository) ListDue(_ context.Context, now time.Time) ([]*models.Schedule, error) {
	return r.list(func(s *models.Schedule) bool {
		return s.IsDue(now)
	})
}

func (r *ScheduleRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(filepath.Join(r.dir, id+".json")); err != nil {
		if os.IsNotExist(err) {
			return persistence.ErrScheduleNotFound
		}

		return err
	}

	return nil
}

func (r *ScheduleRepository) list(keep func(*models.Schedule) bool) ([]*models.Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var schedules []*models.Schedule

	err := readAll(r.dir, func(body []byte) error {
		var schedule models.Schedule
		if err := json.Unmarshal(body, &schedule); err != nil {
			return err
		}

		if keep(&schedule) {
			schedules = append(schedules, &schedule)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return schedules, nil
}
