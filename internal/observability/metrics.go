package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RidesRequested = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_hail", Name: "rides_requested_total", Help: "Total rides created"})
	RideTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_hail", Name: "ride_transitions_total", Help: "Successful ride state transitions"},
		[]string{"to"},
	)
	InvalidTransitions = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_hail", Name: "invalid_transitions_total", Help: "Rejected ride state transitions"})

	EventsBroadcast = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_hail", Name: "events_broadcast_total", Help: "Events fanned out to channels"},
		[]string{"event"},
	)
	DeliveriesDropped = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_hail", Name: "deliveries_dropped_total", Help: "Best-effort event sends that failed"})
	WSConnections     = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ride_hail", Name: "ws_connections", Help: "Live websocket connections"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_hail", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_hail",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
