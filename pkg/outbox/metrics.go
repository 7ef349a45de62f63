package outbox

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	enqueueTotal    *prometheus.CounterVec
	dispatchTotal   *prometheus.CounterVec
	deadTotal       *prometheus.CounterVec
	dispatchLatency *prometheus.HistogramVec
	pending         *prometheus.GaugeVec
	locked          *prometheus.GaugeVec
	relayLeader     *prometheus.GaugeVec
}

var getMetrics = sync.OnceValue(func() *metrics {
	return &metrics{
		enqueueTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outbox",
			Name:      "enqueue_total",
			Help:      "Messages written to an outbox table.",
		}, []string{"table", "topic"}),
		dispatchTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outbox",
			Name:      "dispatch_total",
			Help:      "Dispatch attempts by result.",
		}, []string{"table", "topic", "result"}),
		deadTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outbox",
			Name:      "dead_total",
			Help:      "Messages that exhausted their attempts.",
		}, []string{"table", "topic"}),
		dispatchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "outbox",
			Name:      "dispatch_latency_seconds",
			Help:      "Dispatch latency.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}, []string{"table", "topic", "result"}),
		pending: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "outbox",
			Name:      "pending",
			Help:      "Unpublished messages.",
		}, []string{"table"}),
		locked: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "outbox",
			Name:      "locked",
			Help:      "Unpublished messages currently claimed by a relay.",
		}, []string{"table"}),
		relayLeader: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "outbox",
			Name:      "relay_leader",
			Help:      "1 when this process holds the relay lock for the table.",
		}, []string{"table"}),
	}
})
