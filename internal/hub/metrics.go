package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	registry *prometheus.Registry
	sessions prometheus.Gauge
	rooms    prometheus.Gauge
	inbound  *prometheus.CounterVec
	fanout   prometheus.Counter
}

// newMetrics builds a per-hub registry so multiple hubs (tests) never collide
// on the default registerer.
func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &metrics{
		registry: reg,
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "beatcord",
			Name:      "sessions_active",
			Help:      "Number of live sessions.",
		}),
		rooms: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "beatcord",
			Name:      "rooms_active",
			Help:      "Number of live rooms.",
		}),
		inbound: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "beatcord",
			Name:      "messages_inbound_total",
			Help:      "Inbound client frames by message type.",
		}, []string{"type"}),
		fanout: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "beatcord",
			Name:      "messages_fanout_total",
			Help:      "Frames delivered to room members.",
		}),
	}
}

// Registry exposes the hub's metrics registry for the /metrics endpoint.
func (h *Hub) Registry() *prometheus.Registry { return h.metrics.registry }
