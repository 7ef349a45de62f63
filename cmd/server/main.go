package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/recruit-sla/internal/server"
	"github.com/iota-uz/recruit-sla/modules"
	milestonesoutbox "github.com/iota-uz/recruit-sla/modules/milestones/infrastructure/outbox"
	"github.com/iota-uz/recruit-sla/pkg/application"
	"github.com/iota-uz/recruit-sla/pkg/configuration"
	"github.com/iota-uz/recruit-sla/pkg/eventbus"
	"github.com/iota-uz/recruit-sla/pkg/logging"
	"github.com/iota-uz/recruit-sla/pkg/metrics"
	"github.com/iota-uz/recruit-sla/pkg/outbox"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	defer conf.Unload()
	logger := conf.Logger()

	if conf.OpenTelemetry.Enabled {
		tracingCleanup := logging.SetupTracing(
			context.Background(),
			conf.OpenTelemetry.ServiceName,
			conf.OpenTelemetry.TempoURL,
		)
		defer tracingCleanup()
		logger.Info("OpenTelemetry tracing enabled, exporting to " + conf.OpenTelemetry.TempoURL)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()
	pool, err := pgxpool.New(connectCtx, conf.Database.Opts)
	if err != nil {
		panic(err)
	}
	defer pool.Close()

	app := application.New(&application.ApplicationOptions{
		Pool:        pool,
		EventBus:    eventbus.NewEventPublisher(logger),
		Logger:      logger,
		DatabaseURL: conf.Database.Opts,
	})
	if err := modules.Load(app, modules.BuiltInModules...); err != nil {
		log.Fatalf("failed to load modules: %v", err)
	}

	startOutboxBackground(ctx, conf, pool, logger, app.EventPublisher())

	if conf.Metrics.Enabled {
		app.RegisterControllers(metrics.NewController(conf.Metrics, nil))
	}
	serverInstance, err := server.Default(&server.DefaultOptions{
		Logger:        logger,
		Configuration: conf,
		Application:   app,
		Pool:          pool,
	})
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}
	log.Printf("Listening on: %s\n", conf.SocketAddress)
	if err := serverInstance.Start(ctx, conf.SocketAddress); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

// startOutboxBackground runs one relay and one cleaner per configured outbox table
// until ctx is cancelled.
func startOutboxBackground(
	ctx context.Context,
	conf *configuration.Configuration,
	pool *pgxpool.Pool,
	logger *logrus.Logger,
	bus eventbus.EventBusWithError,
) {
	outboxLog := logger.WithField("component", "outbox")

	tables, err := outbox.ParseIdentifierList(conf.Outbox.RelayTables)
	if err != nil {
		outboxLog.WithError(err).Warn("outbox: invalid OUTBOX_RELAY_TABLES; relay and cleaner disabled")
		return
	}
	if len(tables) == 0 {
		outboxLog.Info("outbox: no tables configured")
		return
	}

	if conf.Outbox.RelayEnabled {
		dispatcher := milestonesoutbox.NewDispatcher(bus)
		for _, table := range tables {
			relay, err := outbox.NewRelay(pool, table, dispatcher, outbox.RelayOptions{
				PollInterval:    conf.Outbox.RelayPollInterval,
				BatchSize:       conf.Outbox.RelayBatchSize,
				LockTTL:         conf.Outbox.RelayLockTTL,
				MaxAttempts:     conf.Outbox.RelayMaxAttempts,
				SingleActive:    conf.Outbox.RelaySingleActive,
				LastErrorMaxLen: conf.Outbox.LastErrorMaxBytes,
				DispatchTimeout: conf.Outbox.RelayDispatchTimeout,
				Logger:          outboxLog.WithField("table", outbox.TableLabel(table)),
			})
			if err != nil {
				outboxLog.WithError(err).Warn("outbox: failed to create relay")
				continue
			}
			go runUntilDone(ctx, outboxLog, "relay", relay.Run)
		}
	}

	if conf.Outbox.CleanerEnabled {
		for _, table := range tables {
			cleaner, err := outbox.NewCleaner(pool, table, outbox.CleanerOptions{
				Enabled:               true,
				Interval:              conf.Outbox.CleanerInterval,
				Retention:             conf.Outbox.CleanerRetention,
				DeadRetention:         conf.Outbox.CleanerDeadRetention,
				DeadAttemptsThreshold: conf.Outbox.RelayMaxAttempts,
				Logger:                outboxLog.WithField("table", outbox.TableLabel(table)),
			})
			if err != nil {
				outboxLog.WithError(err).Warn("outbox: failed to create cleaner")
				continue
			}
			go runUntilDone(ctx, outboxLog, "cleaner", cleaner.Run)
		}
	}
}

func runUntilDone(ctx context.Context, log *logrus.Entry, what string, run func(context.Context) error) {
	if err := run(ctx); err != nil && ctx.Err() == nil {
		log.WithError(err).Errorf("outbox: %s stopped", what)
	}
}
