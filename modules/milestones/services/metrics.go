package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	milestonesInstantiated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "milestones",
		Name:      "instantiated_total",
		Help:      "Total number of milestone instances created, by service type.",
	}, []string{"service_type"})

	milestonesActivated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "milestones",
		Name:      "activated_total",
		Help:      "Total number of milestone instances activated, by anchor event.",
	}, []string{"anchor_event"})

	milestonesCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "milestones",
		Name:      "completed_total",
		Help:      "Total number of milestone instances completed, split by lateness.",
	}, []string{"late"})

	milestonesDashboardEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "milestones",
		Name:      "dashboard_entries",
		Help:      "Entries returned by the last dashboard query of each kind.",
	}, []string{"kind"})

	milestonesStatusCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "milestones",
		Subsystem: "status_cache",
		Name:      "requests_total",
		Help:      "Status cache lookups broken down by hit/miss.",
	}, []string{"result"})

	milestonesWriteConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "milestones",
		Subsystem: "write",
		Name:      "conflicts_total",
		Help:      "Storage constraint violations broken down by kind.",
	}, []string{"kind"})
)

func recordCacheLookup(hits, misses int) {
	milestonesStatusCache.WithLabelValues("hit").Add(float64(hits))
	milestonesStatusCache.WithLabelValues("miss").Add(float64(misses))
}

func recordWriteConflict(kind string) {
	if kind == "" {
		kind = "other"
	}
	milestonesWriteConflicts.WithLabelValues(kind).Inc()
}

func recordCompleted(late bool) {
	label := "false"
	if late {
		label = "true"
	}
	milestonesCompleted.WithLabelValues(label).Inc()
}
