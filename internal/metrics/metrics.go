// Package metrics registers the process-global Prometheus collectors and
// exposes the handler mounted at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

var (
	ActiveTranscodeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mediaserver",
		Name:      "active_transcode_sessions",
		Help:      "Number of HLS transcode sessions currently running.",
	})

	ScanDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mediaserver",
		Name:      "scan_duration_seconds",
		Help:      "Duration of a completed library scan, by library kind.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"kind"})

	StreamBytesServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediaserver",
		Name:      "stream_bytes_served_total",
		Help:      "Bytes served to clients, by delivery method.",
	}, []string{"method"})

	PlayDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mediaserver",
		Name:      "play_decisions_total",
		Help:      "Play-decision outcomes, by method.",
	}, []string{"method"})

	ProbeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mediaserver",
		Name:      "probe_failures_total",
		Help:      "ffprobe invocations that failed or tripped the circuit breaker.",
	})
)

// Handler returns the HTTP handler to mount at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
