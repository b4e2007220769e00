// Package metrics exposes the service's Prometheus instruments.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "songcircle_ws_connections_active",
		Help: "Live websocket connections.",
	})

	FramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "songcircle_ws_frames_total",
		Help: "Inbound websocket frames by event.",
	}, []string{"event"})

	BroadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "songcircle_broadcasts_total",
		Help: "Room broadcasts fanned out.",
	})

	BroadcastDropsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "songcircle_broadcast_drops_total",
		Help: "Recipients dropped during fan-out (backpressure or dead sockets).",
	})
)

// Handler serves the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
