package chat

import "github.com/prometheus/client_golang/prometheus"

var (
	ConnectedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_connected_clients",
		Help: "Number of currently open sessions",
	})

	RegisteredUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_registered_users",
		Help: "Number of users holding a login",
	})

	OpenRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_open_rooms",
		Help: "Number of open rooms, welcome included",
	})

	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_total",
		Help: "Total inbound frames processed by type",
	}, []string{"type"})

	RejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_rejections_total",
		Help: "Rejected inbound frames by error class",
	}, []string{"class"})

	DroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_outbound_dropped_total",
		Help: "Outbound messages dropped because a session queue was full",
	})

	EventProcessingDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chat_event_processing_seconds",
		Help:    "Time to process each inbound frame type",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
)

func init() {
	prometheus.MustRegister(ConnectedClients)
	prometheus.MustRegister(RegisteredUsers)
	prometheus.MustRegister(OpenRooms)
	prometheus.MustRegister(MessagesTotal)
	prometheus.MustRegister(RejectionsTotal)
	prometheus.MustRegister(DroppedTotal)
	prometheus.MustRegister(EventProcessingDuration)
}
