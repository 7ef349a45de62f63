package milestones

import (
	"embed"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/iota-uz/recruit-sla/modules/milestones/domain/statushistory"
	"github.com/iota-uz/recruit-sla/modules/milestones/handlers"
	"github.com/iota-uz/recruit-sla/modules/milestones/infrastructure/cache"
	"github.com/iota-uz/recruit-sla/modules/milestones/infrastructure/persistence"
	"github.com/iota-uz/recruit-sla/modules/milestones/presentation/controllers"
	"github.com/iota-uz/recruit-sla/modules/milestones/services"
	"github.com/iota-uz/recruit-sla/pkg/application"
	"github.com/iota-uz/recruit-sla/pkg/bizcal"
	"github.com/iota-uz/recruit-sla/pkg/configuration"
	"github.com/iota-uz/recruit-sla/pkg/outbox"
	"github.com/iota-uz/recruit-sla/pkg/webhooks"
)

//go:embed infrastructure/persistence/schema/*.sql
var migrationFiles embed.FS

// OutboxTable receives milestone domain events.
var OutboxTable = pgx.Identifier{"public", "milestone_outbox"}

type ModuleOptions struct {
	// Clock defaults to the real clock.
	Clock clockwork.Clock
	// Redis overrides the client built from REDIS_URL for the status cache.
	Redis redis.UniversalClient
}

func NewModule(opts *ModuleOptions) application.Module {
	if opts == nil {
		opts = &ModuleOptions{}
	}
	return &Module{options: opts}
}

type Module struct {
	options *ModuleOptions
}

func (m *Module) Register(app application.Application) error {
	conf := configuration.Use()
	app.Migrations().RegisterSchema(&migrationFiles)

	calendar, err := bizcal.Load(conf.Milestones.HolidaysFile)
	if err != nil {
		return fmt.Errorf("milestones: load holidays: %w", err)
	}
	publisher, err := outbox.NewPublisher(OutboxTable)
	if err != nil {
		return fmt.Errorf("milestones: outbox publisher: %w", err)
	}

	templates := persistence.NewTemplateRepository()
	instances := persistence.NewInstanceRepository()

	statuses := services.NewStatusResolver(
		persistence.NewStatusEventRepository(),
		statushistory.NewFrozenSet(conf.Milestones.FrozenStatusList()...),
	)
	client := m.options.Redis
	if client == nil && conf.RedisURL != "" {
		client, err = redisClient(conf.RedisURL)
		if err != nil {
			return fmt.Errorf("milestones: redis: %w", err)
		}
	}
	if ttl := conf.Milestones.StatusCacheTTL; ttl > 0 && client != nil {
		statuses.WithCache(cache.NewStatusCache(client, cache.DefaultStatusPrefix, ttl))
	}

	app.RegisterServices(
		services.NewCatalogService(templates, instances),
		services.NewInstanceService(templates, instances, calendar, services.InstanceServiceOptions{
			Strict:    conf.Milestones.StrictInstantiation,
			Clock:     m.options.Clock,
			Location:  conf.Milestones.Location(),
			Publisher: publisher,
		}),
		services.NewDashboardService(
			instances,
			persistence.NewRequestDirectory(),
			statuses,
			calendar,
			m.options.Clock,
			conf.Milestones.Location(),
		),
		statuses,
	)

	app.RegisterControllers(
		controllers.NewMilestonesAPIController(app),
	)
	if secret := conf.Webhooks.Secret; secret != "" {
		var protector webhooks.ReplayProtector = webhooks.NewMemoryReplayProtector(conf.Webhooks.ReplayTTL, m.options.Clock)
		if client != nil {
			protector = webhooks.NewRedisReplayProtector(client, "milestones:webhooks:seen", conf.Webhooks.ReplayTTL)
		}
		app.RegisterControllers(controllers.NewWebhooksController(
			app,
			webhooks.NewHMACVerifier(secret, ""),
			protector,
			conf.Webhooks.MaxBodyBytes,
		))
	}
	handlers.RegisterOutboxEventHandlers(app, conf.Logger())

	return nil
}

func (m *Module) Name() string {
	return "milestones"
}

// redisClient accepts a redis:// URL or a bare host:port.
func redisClient(url string) (redis.UniversalClient, error) {
	if !strings.Contains(url, "://") {
		return redis.NewClient(&redis.Options{Addr: url}), nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}
