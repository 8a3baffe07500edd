// Package postgresql provides PostgreSQL persistence for workflows and executions.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// Registers the "postgres" driver with database/sql.
	_ "github.com/lib/pq"

	"github.com/omniflowhq/omniflow/pkg/persistence"
	"github.com/omniflowhq/omniflow/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db             *sql.DB
	logger         *slog.Logger
	workflowRepo   *WorkflowRepository
	executionRepo  *ExecutionRepository
	runLogRepo     *RunLogRepository
	credentialRepo *CredentialRepository
	scheduleRepo   *ScheduleRepository
}

// NewPersistence connects, runs migrations, and returns a ready persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:             database,
		logger:         logger,
		workflowRepo:   &WorkflowRepository{db: database, logger: logger},
		executionRepo:  &ExecutionRepository{db: database, logger: logger},
		runLogRepo:     &RunLogRepository{db: database},
		credentialRepo: &CredentialRepository{db: database},
		scheduleRepo:   &ScheduleRepository{db: database},
	}, nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executionRepo
}

func (p *Persistence) RunLogRepository() persistence.RunLogRepository {
	return p.runLogRepo
}

func (p *Persistence) CredentialRepository() persistence.CredentialRepository {
	return p.credentialRepo
}

func (p *Persistence) ScheduleRepository() persistence.ScheduleRepository {
	return p.scheduleRepo
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id TEXT PRIMARY KEY,
				company_id TEXT NOT NULL,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				nodes JSONB NOT NULL DEFAULT '[]',
				connections JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_workflows_company ON workflows (company_id) WHERE deleted_at IS NULL;
			CREATE INDEX IF NOT EXISTS idx_workflows_status ON workflows (status) WHERE deleted_at IS NULL;

			CREATE TABLE IF NOT EXISTS executions (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				company_id TEXT NOT NULL,
				entity_id TEXT NOT NULL DEFAULT '',
				current_node_id TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				resume_at TIMESTAMP WITH TIME ZONE,
				context JSONB NOT NULL DEFAULT '{}',
				executed_nodes JSONB NOT NULL DEFAULT '[]',
				failure_reason TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_executions_workflow ON executions (workflow_id);
			CREATE INDEX IF NOT EXISTS idx_executions_due ON executions (status, resume_at);
			CREATE INDEX IF NOT EXISTS idx_executions_entity ON executions (workflow_id, entity_id);

			CREATE TABLE IF NOT EXISTS run_log_entries (
				id TEXT PRIMARY KEY,
				execution_state_id TEXT NOT NULL,
				node_id TEXT NOT NULL,
				node_kind TEXT NOT NULL DEFAULT '',
				outcome TEXT NOT NULL,
				detail TEXT NOT NULL DEFAULT '',
				occurred_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_run_log_execution ON run_log_entries (execution_state_id, occurred_at);

			CREATE TABLE IF NOT EXISTS credentials (
				company_id TEXT NOT NULL,
				channel TEXT NOT NULL,
				provider TEXT NOT NULL,
				settings JSONB NOT NULL DEFAULT '{}',
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (company_id, channel, provider)
			);

			CREATE TABLE IF NOT EXISTS schedules (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				company_id TEXT NOT NULL,
				cron_expression TEXT NOT NULL,
				next_due_at TIMESTAMP WITH TIME ZONE NOT NULL,
				active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_schedules_due ON schedules (active, next_due_at);
		`,
	}
}
