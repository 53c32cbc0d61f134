package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics (side channel)
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Session metrics
	ConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_connections_total",
			Help: "Total connections ever accepted",
		},
	)

	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_connections_active",
			Help: "Currently connected clients",
		},
	)

	EvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_liveness_evictions_total",
			Help: "Connections evicted by the liveness monitor",
		},
	)

	// Routing metrics
	MessagesRoutedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_routed_total",
			Help: "Total inbound messages routed, by kind",
		},
		[]string{"kind"},
	)

	DiceRollsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_dice_rolls_total",
			Help: "Total dice rolls broadcast",
		},
	)

	ErrorsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_errors_sent_total",
			Help: "Error envelopes sent to clients, by code",
		},
		[]string{"code"},
	)

	BroadcastDropsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_broadcast_drops_total",
			Help: "Deliveries abandoned because a client queue was full or closed",
		},
	)
)
