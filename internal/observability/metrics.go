package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

var (
	registerOnce sync.Once

	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "netframe",
			Subsystem: "frames",
			Name:      "total",
			Help:      "Frames decoded (in) and encoded (out).",
		},
		[]string{"node", "direction"},
	)
	frameBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "netframe",
			Subsystem: "frames",
			Name:      "payload_bytes",
			Help:      "Frame payload size in bytes.",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 10),
		},
		[]string{"node", "direction"},
	)
	decodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "netframe",
			Subsystem: "frames",
			Name:      "decode_errors_total",
			Help:      "Connections dropped on a decode or transport error, by kind.",
		},
		[]string{"node", "kind"},
	)
	activeConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "netframe",
			Subsystem: "conn",
			Name:      "active",
			Help:      "Open framed connections.",
		},
		[]string{"node", "transport"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "netframe",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "netframe",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(framesTotal, frameBytes, decodeErrors, activeConnections, httpRequests, httpDuration)
	})
}

func RecordFrame(node, direction string, size int) {
	RegisterMetrics()
	framesTotal.WithLabelValues(node, direction).Inc()
	frameBytes.WithLabelValues(node, direction).Observe(float64(size))
}

func RecordDecodeError(node, kind string) {
	RegisterMetrics()
	decodeErrors.WithLabelValues(node, kind).Inc()
}

func ConnectionOpened(node, transport string) {
	RegisterMetrics()
	activeConnections.WithLabelValues(node, transport).Inc()
}

func ConnectionClosed(node, transport string) {
	RegisterMetrics()
	activeConnections.WithLabelValues(node, transport).Dec()
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
