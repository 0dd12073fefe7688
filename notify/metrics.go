package notify

import "github.com/prometheus/client_golang/prometheus"

var (
	dispatched = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "flowchat",
		Subsystem: "notify",
		Name:      "dispatched_total",
		Help:      "Notifications written to the topic",
	})
	dispatchFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowchat",
		Subsystem: "notify",
		Name:      "dispatch_failures_total",
		Help:      "Notifications that could not be written, by reason",
	}, []string{"reason"})
	spooled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "flowchat",
		Subsystem: "notify",
		Name:      "spooled_total",
		Help:      "Notifications stored for retry",
	})
	expired = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "flowchat",
		Subsystem: "notify",
		Name:      "expired_total",
		Help:      "Spooled notifications dropped after the TTL",
	})
	queueSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "flowchat",
		Subsystem: "notify",
		Name:      "queue_size",
		Help:      "Notifications waiting in the dispatch queue",
	})
	spoolSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "flowchat",
		Subsystem: "notify",
		Name:      "spool_size",
		Help:      "Notifications waiting in the spool",
	})
)

func init() {
	prometheus.MustRegister(dispatched, dispatchFailures, spooled, expired, queueSize, spoolSize)
}
