package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Gateway
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_connections",
			Help: "Open authenticated WebSocket connections",
		},
	)

	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_online_users",
			Help: "Users with at least one open connection",
		},
	)

	HandshakeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_ws_handshake_failures_total",
			Help: "Connections closed because authentication failed",
		},
	)

	EventsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_events_handled_total",
			Help: "Inbound events by name and outcome code",
		},
		[]string{"event", "code"},
	)

	EventDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_event_duration_seconds",
			Help:    "Inbound event handling latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"event"},
	)

	FramesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_frames_dropped_total",
			Help: "Outbound frames dropped because a client's send queue was full",
		},
	)

	// Event bus
	DomainEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_domain_events_published_total",
			Help: "Domain events handed to the bus by type and result",
		},
		[]string{"type", "result"},
	)
)

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
