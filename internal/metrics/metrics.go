// Package metrics holds the Prometheus instrumentation of the pipeline,
// exposed on /metrics by the HTTP server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FeedFetches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beats_feed_fetches_total",
		Help: "Completed sales feed fetch attempts.",
	})

	FeedFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beats_feed_failures_total",
		Help: "Sales feed fetches that failed and were skipped.",
	})

	EventsAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beats_events_appended_total",
		Help: "Purchase events appended to the log.",
	})

	EventsMaterialized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beats_events_materialized_total",
		Help: "Log entries successfully materialized and acknowledged.",
	})

	MaterializeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beats_materialize_failures_total",
		Help: "Materialization attempts that failed and were left pending.",
	})

	EventsDeadLettered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beats_events_dead_lettered_total",
		Help: "Entries moved to the dead-letter stream after exhausting redeliveries.",
	})

	BroadcastMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "beats_broadcast_messages_total",
		Help: "Messages pushed to websocket viewers.",
	})

	ConnectedViewers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "beats_connected_viewers",
		Help: "Currently connected websocket viewers.",
	})
)
