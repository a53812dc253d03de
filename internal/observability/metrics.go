package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eswifi",
			Subsystem: "channel",
			Name:      "commands_total",
			Help:      "Command attempts by outcome.",
		},
		[]string{"outcome"},
	)
	joinOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eswifi",
			Subsystem: "wifi",
			Name:      "join_total",
			Help:      "Join attempts by outcome.",
		},
		[]string{"outcome"},
	)
	joinPolls = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "eswifi",
			Subsystem: "wifi",
			Name:      "join_status_polls",
			Help:      "Status polls needed to resolve one join.",
			Buckets:   prometheus.LinearBuckets(1, 1, 20),
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eswifi",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total diagnostic HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "eswifi",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Diagnostic HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(commands, joinOutcomes, joinPolls, httpRequests, httpDuration)
	})
}

func RecordCommand(outcome string) {
	RegisterMetrics()
	commands.WithLabelValues(outcome).Inc()
}

func RecordJoin(outcome string, polls int) {
	RegisterMetrics()
	joinOutcomes.WithLabelValues(outcome).Inc()
	if polls > 0 {
		joinPolls.Observe(float64(polls))
	}
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
