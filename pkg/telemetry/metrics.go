// Package telemetry holds the process-wide Prometheus collectors. They are
// registered with the default registry on import.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GraphBuilds counts builder runs by outcome ("ok" or "error").
	GraphBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relgraph_graph_builds_total",
			Help: "Total number of graph builds",
		},
		[]string{"outcome"},
	)

	// BuildWarnings counts records skipped by the builder.
	BuildWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relgraph_build_warnings_total",
			Help: "Records skipped while building the graph",
		},
		[]string{"kind"},
	)

	// GraphSize tracks the node and edge count of the published graph.
	GraphSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relgraph_graph_size",
			Help: "Nodes and edges in the current graph",
		},
		[]string{"element"},
	)

	// LayoutRuns counts layout runs by strategy.
	LayoutRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relgraph_layout_runs_total",
			Help: "Total number of layout runs",
		},
		[]string{"strategy"},
	)

	// StageDuration measures each session stage.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relgraph_stage_duration_seconds",
			Help:    "Duration of build, layout, analysis and clustering stages",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"stage"},
	)

	// HTTPRequests counts API requests.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relgraph_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration measures API response time.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relgraph_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// EventsPublished counts pub/sub events by topic.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relgraph_events_published_total",
			Help: "Events published to subscribers",
		},
		[]string{"topic"},
	)

	// EventsDropped counts events not delivered to a full subscriber.
	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relgraph_events_dropped_total",
			Help: "Events dropped because a subscriber was full",
		},
		[]string{"topic"},
	)
)
