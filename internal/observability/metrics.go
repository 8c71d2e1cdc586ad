package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ros2bridge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"bridge", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ros2bridge",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"bridge", "method", "path", "status"},
	)
	nodeLaunches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ros2bridge",
			Subsystem: "launcher",
			Name:      "launches_total",
			Help:      "Node launch attempts by outcome.",
		},
		[]string{"node", "outcome"},
	)
	processExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ros2bridge",
			Subsystem: "launcher",
			Name:      "process_exits_total",
			Help:      "Child process exits by outcome.",
		},
		[]string{"node", "outcome"},
	)
	logLines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ros2bridge",
			Subsystem: "logs",
			Name:      "lines_total",
			Help:      "Stdout lines scanned, by parse outcome.",
		},
		[]string{"outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, nodeLaunches, processExits, logLines)
	})
}

func RecordHTTPRequest(bridge, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(bridge, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(bridge, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordLaunch(node, outcome string) {
	RegisterMetrics()
	nodeLaunches.WithLabelValues(node, outcome).Inc()
}

func RecordProcessExit(node, outcome string) {
	RegisterMetrics()
	processExits.WithLabelValues(node, outcome).Inc()
}

func RecordLogLine(outcome string) {
	RegisterMetrics()
	logLines.WithLabelValues(outcome).Inc()
}
