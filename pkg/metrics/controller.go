package metrics

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"

	"github.com/iota-uz/recruit-sla/pkg/application"
	"github.com/iota-uz/recruit-sla/pkg/configuration"
)

const defaultPath = "/metrics"

// Controller serves the scrape endpoint. Milestone, outbox and HTTP metrics
// register on the default registry through promauto.
type Controller struct {
	path     string
	gatherer prometheus.Gatherer
}

func NewController(opts configuration.MetricsOptions, gatherer prometheus.Gatherer) application.Controller {
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		path = defaultPath
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if !opts.IncludeRuntime {
		gatherer = withoutRuntime(gatherer)
	}
	return &Controller{path: path, gatherer: gatherer}
}

func (c *Controller) Key() string {
	return c.path
}

func (c *Controller) Register(r *mux.Router) {
	h := promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
	r.Handle(c.path, h).Methods(http.MethodGet)
}

func withoutRuntime(g prometheus.Gatherer) prometheus.Gatherer {
	return prometheus.GathererFunc(func() ([]*dto.MetricFamily, error) {
		families, err := g.Gather()
		out := families[:0]
		for _, mf := range families {
			name := mf.GetName()
			if strings.HasPrefix(name, "go_") || strings.HasPrefix(name, "process_") {
				continue
			}
			out = append(out, mf)
		}
		return out, err
	})
}
