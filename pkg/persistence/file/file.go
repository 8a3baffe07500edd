// Package file provides file-based persistence for development and tests.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/omniflowhq/omniflow/pkg/persistence"
)

// Persistence implements persistence.Persistence on a directory of JSON
// documents, one file per record.
type Persistence struct {
	root           string
	workflowRepo   *WorkflowRepository
	executionRepo  *ExecutionRepository
	runLogRepo     *RunLogRepository
	credentialRepo *CredentialRepository
	scheduleRepo   *ScheduleRepository
}

// NewPersistence creates a new instance rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:           cleanRoot,
		workflowRepo:   &WorkflowRepository{dir: filepath.Join(cleanRoot, "workflows")},
		executionRepo:  &ExecutionRepository{dir: filepath.Join(cleanRoot, "executions")},
		runLogRepo:     &RunLogRepository{dir: filepath.Join(cleanRoot, "runlog")},
		credentialRepo: &CredentialRepository{dir: filepath.Join(cleanRoot, "credentials")},
		scheduleRepo:   &ScheduleRepository{dir: filepath.Join(cleanRoot, "schedules")},
	}
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return fp.executionRepo
}

func (fp *Persistence) RunLogRepository() persistence.RunLogRepository {
	return fp.runLogRepo
}

func (fp *Persistence) CredentialRepository() persistence.CredentialRepository {
	return fp.credentialRepo
}

func (fp *Persistence) ScheduleRepository() persistence.ScheduleRepository {
	return fp.scheduleRepo
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. Nothing to clean up for files.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// writeJSON marshals a document and writes it under dir, creating the
// directory on first use.
func writeJSON(dir, name string, doc any) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	path := filepath.Join(dir, name+".json")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

// readJSON reads one document; os.IsNotExist errors pass through for the
// caller to map onto the package's sentinel errors.
func readJSON(dir, name string, doc any) error {
	body, err := os.ReadFile(filepath.Join(dir, name+".json"))
	if err != nil {
		return err
	}

	return json.Unmarshal(body, doc)
}

// readAll decodes every document in dir via decode, tolerating a missing
// directory (nothing stored yet).
func readAll(dir string, decode func(body []byte) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		body, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}

		if err := decode(body); err != nil {
			return err
		}
	}

	return nil
}
