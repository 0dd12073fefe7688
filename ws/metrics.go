package ws

import "github.com/prometheus/client_golang/prometheus"

var (
	connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "flowchat",
		Subsystem: "ws",
		Name:      "connections",
		Help:      "Open websocket sessions",
	})
	onlineUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "flowchat",
		Subsystem: "ws",
		Name:      "online_users",
		Help:      "Users with a registered connection",
	})
	inboundEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowchat",
		Subsystem: "ws",
		Name:      "events_total",
		Help:      "Client events received, by event name",
	}, []string{"event"})
	eventErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowchat",
		Subsystem: "ws",
		Name:      "errors_total",
		Help:      "Errors reported to clients, by code",
	}, []string{"code"})
	droppedEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "flowchat",
		Subsystem: "ws",
		Name:      "dropped_events_total",
		Help:      "Server events dropped because the session queue was full or closed",
	})
)

func init() {
	prometheus.MustRegister(connections, onlineUsers, inboundEvents, eventErrors, droppedEvents)
}
