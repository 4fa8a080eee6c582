// Package metrics exposes Prometheus instrumentation for the bot. Collectors
// are registered at init and scraped through the ops HTTP listener.
//
// Cardinality is kept bounded: update types are a small fixed set
// (message/command/callback), gateway services are the two upstream panels,
// and outcomes collapse to ok/unavailable/http_<status>.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// updates counts inbound Telegram updates by kind.
	updates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_updates_total",
			Help: "Total number of Telegram updates processed.",
		},
		[]string{"type"},
	)

	// gatewayReqs counts upstream panel requests by service and outcome.
	gatewayReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total number of upstream panel requests.",
		},
		[]string{"service", "outcome"},
	)

	// gatewayLat records upstream request duration in seconds by service.
	// Outcome is intentionally omitted to keep histogram cardinality low.
	gatewayLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Duration of upstream panel requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)
)

func init() {
	prometheus.MustRegister(updates, gatewayReqs, gatewayLat)
}

// CountUpdate records one inbound update of the given kind.
func CountUpdate(kind string) {
	updates.WithLabelValues(kind).Inc()
}

// ObserveGateway records one upstream request with its outcome and duration.
func ObserveGateway(service, outcome string, d time.Duration) {
	gatewayReqs.WithLabelValues(service, outcome).Inc()
	gatewayLat.WithLabelValues(service).Observe(d.Seconds())
}
