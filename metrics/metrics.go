// Package metrics exposes the process-wide Prometheus collectors shared
// across services: connections accepted, borrow-queue depth, and frame
// decode outcomes by kind.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsAccepted counts accepted TCP connections per service.
	ConnectionsAccepted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fabric",
		Name:      "connections_accepted_total",
		Help:      "Total TCP connections accepted, by service.",
	}, []string{"service"})

	// BorrowQueueDepth tracks the number of pending borrow requests
	// outstanding against a handle's registry, by service tag.
	BorrowQueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fabric",
		Name:      "borrow_queue_depth",
		Help:      "Pending borrow requests currently queued, by handler tag.",
	}, []string{"tag"})

	// FramesDecoded counts decoded frames, partitioned by service and
	// outcome ("ok", "checksum_mismatch", "unknown_id", "error").
	FramesDecoded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fabric",
		Name:      "frames_decoded_total",
		Help:      "Frames decoded from the wire, by service and outcome.",
	}, []string{"service", "outcome"})
)

func init() {
	prometheus.MustRegister(ConnectionsAccepted, BorrowQueueDepth, FramesDecoded)
}

// Handler returns the HTTP handler to mount at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
