package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	limitermw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/iota-uz/recruit-sla/pkg/application"
	"github.com/iota-uz/recruit-sla/pkg/composables"
	"github.com/iota-uz/recruit-sla/pkg/configuration"
	"github.com/iota-uz/recruit-sla/pkg/httpapi"
	"github.com/iota-uz/recruit-sla/pkg/middleware"
	"github.com/iota-uz/recruit-sla/pkg/server"
)

type DefaultOptions struct {
	Logger        *logrus.Logger
	Configuration *configuration.Configuration
	Application   application.Application
	Pool          *pgxpool.Pool
}

func Default(options *DefaultOptions) (*server.HTTPServer, error) {
	app := options.Application
	conf := options.Configuration

	middlewares := []mux.MiddlewareFunc{
		middleware.WithLogger(options.Logger, middleware.LoggerOptions{
			RequestIDHeader: conf.RequestIDHeader,
			RealIPHeader:    conf.RealIPHeader,
		}),
		middleware.WithMetrics(),
		middleware.WithPool(options.Pool),
	}

	if origins := conf.AllowedOriginList(); len(origins) > 0 {
		c := cors.New(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders: []string{"Content-Type", conf.RequestIDHeader},
		})
		middlewares = append(middlewares, c.Handler)
	}

	if conf.RateLimit.Enabled {
		rate, err := limiter.NewRateFromFormatted(conf.RateLimit.Rate)
		if err != nil {
			return nil, err
		}
		lm := limitermw.NewMiddleware(
			limiter.New(memory.NewStore(), rate),
			limitermw.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
				_ = httpapi.WriteError(w, http.StatusTooManyRequests, composables.UseRequestID(r.Context()), "RATE_LIMITED", "too many requests")
			}),
		)
		middlewares = append(middlewares, lm.Handler)
	}

	app.RegisterMiddleware(middlewares...)

	return server.NewHTTPServer(app, notFound(), methodNotAllowed()), nil
}

func notFound() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = httpapi.WriteError(w, http.StatusNotFound, composables.UseRequestID(r.Context()), "NOT_FOUND", "route not found")
	})
}

func methodNotAllowed() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = httpapi.WriteError(w, http.StatusMethodNotAllowed, composables.UseRequestID(r.Context()), "METHOD_NOT_ALLOWED", "method not allowed")
	})
}
