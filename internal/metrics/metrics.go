// Package metrics exposes Prometheus collectors for workflow transitions and
// notification delivery.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mediaflow"

type metrics struct {
	transitionsTotal   *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	sendLatency        *prometheus.HistogramVec
}

var singleton = sync.OnceValue(func() *metrics {
	return &metrics{
		transitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Total number of transition attempts by action and outcome.",
		}, []string{"action", "outcome"}),
		notificationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Total number of notification deliveries by event and result.",
		}, []string{"event", "result"}),
		sendLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notification_send_seconds",
			Help:      "Latency distribution of single notification sends.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}, []string{"event"}),
	}
})

// Transition counts one transition attempt.
func Transition(action, outcome string) {
	singleton().transitionsTotal.WithLabelValues(action, outcome).Inc()
}

// Notification counts one delivery attempt and observes its latency; result is
// sent, failed or skipped.
func Notification(event, result string, elapsed time.Duration) {
	m := singleton()
	m.notificationsTotal.WithLabelValues(event, result).Inc()
	if result != "skipped" {
		m.sendLatency.WithLabelValues(event).Observe(elapsed.Seconds())
	}
}

// Transitions returns the transitions counter, mostly for tests.
func Transitions() *prometheus.CounterVec {
	return singleton().transitionsTotal
}

// Notifications returns the notifications counter, mostly for tests.
func Notifications() *prometheus.CounterVec {
	return singleton().notificationsTotal
}
