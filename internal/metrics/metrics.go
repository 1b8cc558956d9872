package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the daybook collectors.
	Registry = prometheus.NewRegistry()

	notificationsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "daybook",
			Name:      "notifications_dispatched_total",
			Help:      "Notification send attempts by category and outcome.",
		},
		[]string{"category", "outcome"},
	)

	sweepItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "daybook",
			Name:      "sweep_items_total",
			Help:      "Items handled by the scheduler sweeps.",
		},
		[]string{"sweep", "result"},
	)

	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "daybook",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of a full scheduler run.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "daybook",
			Name:      "http_requests_total",
			Help:      "HTTP requests handled.",
		},
		[]string{"method", "status"},
	)
)

func init() {
	Registry.MustRegister(
		notificationsDispatched,
		sweepItems,
		sweepDuration,
		httpRequests,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func RecordDispatch(category, outcome string) {
	notificationsDispatched.WithLabelValues(category, outcome).Inc()
}

func RecordSweepItems(sweep, result string, n int) {
	if n <= 0 {
		return
	}
	sweepItems.WithLabelValues(sweep, result).Add(float64(n))
}

func ObserveSweep(d time.Duration) {
	sweepDuration.Observe(d.Seconds())
}

// RecordRequest counts one served HTTP request.
func RecordRequest(method string, status int) {
	httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}
