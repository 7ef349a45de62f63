package application

import (
	"context"
	"io/fs"
	"reflect"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iota-uz/recruit-sla/pkg/eventbus"
)

type Controller interface {
	Register(r *mux.Router)
	Key() string
}

type Module interface {
	Register(app Application) error
	Name() string
}

// MigrationManager collects embedded schema files from modules and applies them with goose.
type MigrationManager interface {
	RegisterSchema(fsys ...fs.FS)
	Up(ctx context.Context) error
	Down(ctx context.Context) error
	Status(ctx context.Context) ([]MigrationStatus, error)
}

// Application is the registry modules use to expose their services and controllers.
type Application interface {
	DB() *pgxpool.Pool
	EventPublisher() eventbus.EventBusWithError
	Migrations() MigrationManager
	Middleware() []mux.MiddlewareFunc
	Controllers() []Controller
	RegisterMiddleware(middleware ...mux.MiddlewareFunc)
	RegisterControllers(controllers ...Controller)
	RegisterServices(services ...any)
	Service(service any) any
	Services() map[reflect.Type]any
}
