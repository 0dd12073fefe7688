package chat

import "github.com/prometheus/client_golang/prometheus"

var (
	messagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowchat",
		Name:      "messages_sent_total",
		Help:      "Messages persisted, by kind and status at send time.",
	}, []string{"kind", "status"})

	reconciled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowchat",
		Name:      "messages_reconciled_total",
		Help:      "Messages moved from sent to delivered when the receiver connected.",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(messagesSent, reconciled)
}
