package application

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/recruit-sla/pkg/eventbus"
)

type ApplicationOptions struct {
	Pool     *pgxpool.Pool
	EventBus eventbus.EventBusWithError
	Logger   *logrus.Logger
	// DatabaseURL is used by the migration manager, which runs through database/sql.
	DatabaseURL string
}

func New(opts *ApplicationOptions) Application {
	bus := opts.EventBus
	if bus == nil {
		bus = eventbus.NewEventPublisher(opts.Logger)
	}
	return &application{
		pool:           opts.Pool,
		eventPublisher: bus,
		controllers:    make(map[string]Controller),
		services:       make(map[reflect.Type]any),
		migrations:     NewMigrationManager(opts.DatabaseURL, opts.Logger),
	}
}

type application struct {
	pool           *pgxpool.Pool
	eventPublisher eventbus.EventBusWithError
	services       map[reflect.Type]any
	controllers    map[string]Controller
	middleware     []mux.MiddlewareFunc
	migrations     MigrationManager
}

func (app *application) DB() *pgxpool.Pool {
	return app.pool
}

func (app *application) EventPublisher() eventbus.EventBusWithError {
	return app.eventPublisher
}

func (app *application) Migrations() MigrationManager {
	return app.migrations
}

func (app *application) Middleware() []mux.MiddlewareFunc {
	return app.middleware
}

func (app *application) RegisterMiddleware(middleware ...mux.MiddlewareFunc) {
	app.middleware = append(app.middleware, middleware...)
}

// Controllers returns the registered controllers ordered by key.
func (app *application) Controllers() []Controller {
	keys := make([]string, 0, len(app.controllers))
	for k := range app.controllers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Controller, 0, len(keys))
	for _, k := range keys {
		out = append(out, app.controllers[k])
	}
	return out
}

func (app *application) RegisterControllers(controllers ...Controller) {
	for _, c := range controllers {
		app.controllers[c.Key()] = c
	}
}

// RegisterServices registers pointers to services keyed by their element type.
func (app *application) RegisterServices(services ...any) {
	for _, service := range services {
		app.services[reflect.TypeOf(service).Elem()] = service
	}
}

// Service looks a service up by a zero value of its struct type:
//
//	app.Service(services.InstanceService{}).(*services.InstanceService)
func (app *application) Service(service any) any {
	serviceType := reflect.TypeOf(service)
	svc, ok := app.services[serviceType]
	if !ok {
		panic(fmt.Sprintf("service %s not found", serviceType.Name()))
	}
	return svc
}

func (app *application) Services() map[reflect.Type]any {
	return app.services
}
