// Package itf builds database-backed test environments for integration tests.
//
// Tests are skipped unless MILESTONES_TEST_DSN points at a disposable Postgres
// database. Migrations of the loaded modules are applied on every Build.
package itf

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/recruit-sla/modules"
	"github.com/iota-uz/recruit-sla/pkg/application"
	"github.com/iota-uz/recruit-sla/pkg/composables"
	"github.com/iota-uz/recruit-sla/pkg/eventbus"
	"github.com/iota-uz/recruit-sla/pkg/repo"
)

const DSNEnv = "MILESTONES_TEST_DSN"

// TestContext provides a fluent API for building test environments.
type TestContext struct {
	modules   []application.Module
	committed bool
	logger    *logrus.Logger
}

func NewTestContext() *TestContext {
	return &TestContext{}
}

func (tc *TestContext) WithModules(modules ...application.Module) *TestContext {
	tc.modules = append(tc.modules, modules...)
	return tc
}

// Committed skips the wrapping transaction, for tests whose data must be
// visible to other connections (background workers). Such tests clean up
// after themselves.
func (tc *TestContext) Committed() *TestContext {
	tc.committed = true
	return tc
}

func (tc *TestContext) WithLogger(logger *logrus.Logger) *TestContext {
	tc.logger = logger
	return tc
}

// Build connects, loads modules, migrates and, unless Committed, opens a
// transaction that is rolled back when the test ends.
func (tc *TestContext) Build(tb testing.TB) *TestEnvironment {
	tb.Helper()
	dsn := os.Getenv(DSNEnv)
	if dsn == "" {
		tb.Skipf("%s is not set", DSNEnv)
	}
	logger := tc.logger
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	ctx := context.Background()
	pool, err := NewPool(ctx, dsn)
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(pool.Close)

	app, err := SetupApplication(ctx, pool, dsn, logger, tc.modules...)
	if err != nil {
		tb.Fatal(err)
	}

	requestID := "itf-" + uuid.NewString()
	ctx = composables.WithPool(ctx, pool)
	ctx = composables.WithRequestID(ctx, requestID)
	ctx = composables.WithLogger(ctx, logger.WithField("request-id", requestID))

	env := &TestEnvironment{Ctx: ctx, Pool: pool, App: app}
	if tc.committed {
		return env
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() {
		if err := tx.Rollback(context.Background()); err != nil && err != pgx.ErrTxClosed {
			tb.Logf("warning: failed to rollback transaction: %v", err)
		}
	})
	env.Tx = tx
	env.Ctx = composables.WithTx(ctx, tx)
	return env
}

// TestEnvironment contains all test dependencies.
type TestEnvironment struct {
	Ctx  context.Context
	Pool *pgxpool.Pool
	// Tx is nil for committed environments.
	Tx  pgx.Tx
	App application.Application
}

// DB is where fixtures should be written: the test transaction when there is one.
func (te *TestEnvironment) DB() repo.Tx {
	if te.Tx != nil {
		return te.Tx
	}
	return te.Pool
}

// GetService retrieves and casts a registered service.
func GetService[T any](te *TestEnvironment) *T {
	var zero T
	return te.App.Service(zero).(*T)
}

func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	return pool, nil
}

func SetupApplication(ctx context.Context, pool *pgxpool.Pool, dsn string, logger *logrus.Logger, mods ...application.Module) (application.Application, error) {
	app := application.New(&application.ApplicationOptions{
		Pool:        pool,
		EventBus:    eventbus.NewEventPublisher(logger),
		Logger:      logger,
		DatabaseURL: dsn,
	})
	if err := modules.Load(app, mods...); err != nil {
		return nil, err
	}
	if err := app.Migrations().Up(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return app, nil
}
