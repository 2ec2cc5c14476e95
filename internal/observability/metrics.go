package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toolsel",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests served.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "toolsel",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	gatewayCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toolsel",
			Subsystem: "gateway",
			Name:      "calls_total",
			Help:      "Calls made to the upstream gateway API.",
		},
		[]string{"method", "path", "outcome"},
	)
	gatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "toolsel",
			Subsystem: "gateway",
			Name:      "call_duration_seconds",
			Help:      "Upstream gateway call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "outcome"},
	)
	panelOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "toolsel",
			Subsystem: "panel",
			Name:      "operations_total",
			Help:      "Tool selector panel operations by outcome.",
		},
		[]string{"operation", "outcome"},
	)
)

// Gateway call outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeRejected  = "rejected"  // success:false
	OutcomeTransport = "transport" // request never produced a decodable answer
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, gatewayCalls, gatewayDuration, panelOps)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordGatewayCall(method, path, outcome string, duration time.Duration) {
	RegisterMetrics()
	gatewayCalls.WithLabelValues(method, path, outcome).Inc()
	gatewayDuration.WithLabelValues(method, path, outcome).Observe(duration.Seconds())
}

func RecordPanelOp(operation string, err error) {
	RegisterMetrics()
	outcome := OutcomeOK
	if err != nil {
		outcome = "error"
	}
	panelOps.WithLabelValues(operation, outcome).Inc()
}
