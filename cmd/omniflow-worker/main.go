package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/omniflowhq/omniflow/pkg/cmd"
	"github.com/omniflowhq/omniflow/pkg/crm"
	"github.com/omniflowhq/omniflow/pkg/dispatcher"
	"github.com/omniflowhq/omniflow/pkg/engine"
	"github.com/omniflowhq/omniflow/pkg/log"
	"github.com/omniflowhq/omniflow/pkg/otelhelper"
	"github.com/omniflowhq/omniflow/pkg/runlog"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultTickInterval       = 10 * time.Second
	defaultSweepInterval      = 10 * time.Minute
	defaultCredentialCacheTTL = 5 * time.Minute
)

func main() {
	command := &cli.Command{
		Name:                  "omniflow-worker",
		EnableShellCompletion: true,
		Usage:                 "Process due workflow executions and incoming entity change events",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "suppression-url",
				Usage:   "Redis URL for the duplicate-trigger claim store (in-process store if empty)",
				Value:   "",
				Sources: cli.EnvVars("SUPPRESSION_URL"),
			},
			&cli.StringFlag{
				Name:    "crm-url",
				Usage:   "Base URL of the CRM API for update_lead actions (log-only if empty)",
				Value:   "",
				Sources: cli.EnvVars("CRM_URL"),
			},
			&cli.StringFlag{
				Name:    "crm-api-key",
				Usage:   "API key for the CRM API",
				Value:   "",
				Sources: cli.EnvVars("CRM_API_KEY"),
			},
			&cli.DurationFlag{
				Name:    "tick-interval",
				Usage:   "Interval between due-execution processing ticks",
				Value:   defaultTickInterval,
				Sources: cli.EnvVars("TICK_INTERVAL"),
			},
			&cli.DurationFlag{
				Name:    "sweep-interval",
				Usage:   "Interval between abandoned-execution sweeps",
				Value:   defaultSweepInterval,
				Sources: cli.EnvVars("SWEEP_INTERVAL"),
			},
			&cli.IntFlag{
				Name:    "batch-size",
				Usage:   "Maximum due executions claimed per tick",
				Value:   0,
				Sources: cli.EnvVars("BATCH_SIZE"),
			},
			&cli.IntFlag{
				Name:    "parallelism",
				Usage:   "Executions processed concurrently within a tick",
				Value:   0,
				Sources: cli.EnvVars("PARALLELISM"),
			},
			&cli.DurationFlag{
				Name:    "max-waiting-age",
				Usage:   "Waiting executions older than this are failed as abandoned",
				Value:   0,
				Sources: cli.EnvVars("MAX_WAITING_AGE"),
			},
			&cli.DurationFlag{
				Name:    "recovery-lease",
				Usage:   "Age a running execution must reach before a tick reclaims it from a crashed worker",
				Value:   0,
				Sources: cli.EnvVars("RECOVERY_LEASE"),
			},
			&cli.DurationFlag{
				Name:    "suppression-window",
				Usage:   "Window within which a repeated trigger for the same entity is suppressed",
				Value:   0,
				Sources: cli.EnvVars("SUPPRESSION_WINDOW"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("omniflow-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing OmniFlow worker")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "omniflow-worker", logger)
			if err != nil {
				return err
			}

			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			suppressionStore, err := cmd.NewSuppressionStore(ctx, command.String("suppression-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := suppressionStore.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close suppression store", "error", err)
				}
			}()

			var updater dispatcher.EntityUpdater
			if crmURL := command.String("crm-url"); crmURL != "" {
				updater = crm.NewClient(crmURL, command.String("crm-api-key"))
			} else {
				updater = crm.NewLogUpdater(logger)
			}

			credentials := dispatcher.NewCredentialCache(cmd.NewCredentialResolver(persistence), defaultCredentialCacheTTL)
			actionDispatcher := dispatcher.NewDispatcher(cmd.NewRegistry(logger), credentials, updater, logger)

			var tracer trace.Tracer
			if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
				tracer, err = otelhelper.NewTracer(ctx, "omniflow-worker")
				if err != nil {
					return err
				}
			}

			eng := engine.NewEngine(engine.Config{
				Persistence: persistence,
				Dispatcher:  actionDispatcher,
				RunLog:      runlog.NewLogger(persistence.RunLogRepository(), logger),
				Suppression: suppressionStore,
				Publisher:   eventBus,
				Tracer:      tracer,
				Logger:      logger,

				SuppressionWindow: command.Duration("suppression-window"),
				MaxWaitingAge:     command.Duration("max-waiting-age"),
				RecoveryLease:     command.Duration("recovery-lease"),
				BatchSize:         command.Int("batch-size"),
				Parallelism:       command.Int("parallelism"),
				WorkerID:          workerID,
			})

			worker := NewWorker(workerID, eng, eventBus, logger,
				command.Duration("tick-interval"), command.Duration("sweep-interval"))

			return worker.Start(ctx)
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
