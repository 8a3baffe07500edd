package file

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"
	"sync"

	"github.com/omniflowhq/omniflow/pkg/models"
)

type RunLogRepository struct {
	dir string
	mu  sync.RWMutex
}

// Append writes one entry as its own document under the execution's
// directory. Entries are never rewritten.
func (r *RunLogRepository) Append(_ context.Context, entry *models.RunLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return writeJSON(filepath.Join(r.dir, entry.ExecutionStateID), entry.ID, entry)
}

func (r *RunLogRepository) ListByExecution(_ context.Context, executionStateID string) ([]*models.RunLogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var entries []*models.RunLogEntry

	err := readAll(filepath.Join(r.dir, executionStateID), func(body []byte) error {
		var entry models.RunLogEntry
		if err := json.Unmarshal(body, &entry); err != nil {
			return err
		}

		entries = append(entries, &entry)

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp.Before(entries[j].Timestamp) })

	return entries, nil
}
