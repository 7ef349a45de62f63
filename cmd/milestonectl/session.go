package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iota-uz/recruit-sla/modules"
	"github.com/iota-uz/recruit-sla/modules/milestones/services"
	"github.com/iota-uz/recruit-sla/pkg/application"
	"github.com/iota-uz/recruit-sla/pkg/composables"
	"github.com/iota-uz/recruit-sla/pkg/configuration"
	"github.com/iota-uz/recruit-sla/pkg/eventbus"
)

// session is a loaded application bound to a database pool.
type session struct {
	app  application.Application
	pool *pgxpool.Pool
}

func connect(ctx context.Context) (context.Context, *session, error) {
	conf := configuration.Use()
	logger := conf.Logger()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(connectCtx, conf.Database.Opts)
	if err != nil {
		return nil, nil, withCode(exitDB, fmt.Errorf("db connect failed: %w", err))
	}

	app := application.New(&application.ApplicationOptions{
		Pool:        pool,
		EventBus:    eventbus.NewEventPublisher(logger),
		Logger:      logger,
		DatabaseURL: conf.Database.Opts,
	})
	if err := modules.Load(app, modules.BuiltInModules...); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("load modules: %w", err)
	}

	requestID := "cli-" + uuid.NewString()
	ctx = composables.WithPool(ctx, pool)
	ctx = composables.WithRequestID(ctx, requestID)
	ctx = composables.WithLogger(ctx, logger.WithField("request-id", requestID))
	return ctx, &session{app: app, pool: pool}, nil
}

func (s *session) Close() {
	s.pool.Close()
}

func (s *session) catalog() *services.CatalogService {
	return s.app.Service(services.CatalogService{}).(*services.CatalogService)
}

func (s *session) instances() *services.InstanceService {
	return s.app.Service(services.InstanceService{}).(*services.InstanceService)
}

func (s *session) dashboard() *services.DashboardService {
	return s.app.Service(services.DashboardService{}).(*services.DashboardService)
}
