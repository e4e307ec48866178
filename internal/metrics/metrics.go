package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "callbroker"

// Drop reasons for relayed or inbound messages.
const (
	DropReasonRecipientOffline = "recipient_offline"
	DropReasonNoPeer           = "no_peer"
	DropReasonSendTimeout      = "send_timeout"
	DropReasonConnClosed       = "conn_closed"
	DropReasonRateLimited      = "rate_limited"
	DropReasonMalformed        = "malformed"
)

// Call initiation results.
const (
	CallResultInitiated   = "initiated"
	CallResultPeerOffline = "peer_offline"
	CallResultRejected    = "rejected"
)

// Metrics groups every collector the broker exports. A nil *Metrics is valid
// and records nothing, which keeps tests free of registry plumbing.
type Metrics struct {
	Registry *prometheus.Registry

	ActiveRooms     prometheus.Gauge
	OnlineUsers     prometheus.Gauge
	Connections     prometheus.Gauge
	Reservations    prometheus.Gauge
	RelayedMessages *prometheus.CounterVec
	DroppedMessages *prometheus.CounterVec
	CallInitiations *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Rooms with at least one participant.",
		}),
		OnlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_users",
			Help:      "Users with a live presence entry.",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open websocket connections.",
		}),
		Reservations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "room_reservations",
			Help:      "Room ids handed out by call initiation and not yet joined.",
		}),
		RelayedMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relayed_messages_total",
			Help:      "Signaling messages delivered to a peer.",
		}, []string{"event"}),
		DroppedMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_messages_total",
			Help:      "Messages dropped before delivery.",
		}, []string{"reason"}),
		CallInitiations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_initiations_total",
			Help:      "Calls requested by the booking layer.",
		}, []string{"result"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ActiveRooms,
		m.OnlineUsers,
		m.Connections,
		m.Reservations,
		m.RelayedMessages,
		m.DroppedMessages,
		m.CallInitiations,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "metrics not configured", http.StatusInternalServerError)
		})
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RoomOpened() {
	if m != nil {
		m.ActiveRooms.Inc()
	}
}

func (m *Metrics) RoomClosed() {
	if m != nil {
		m.ActiveRooms.Dec()
	}
}

func (m *Metrics) UserOnline() {
	if m != nil {
		m.OnlineUsers.Inc()
	}
}

func (m *Metrics) UserOffline() {
	if m != nil {
		m.OnlineUsers.Dec()
	}
}

func (m *Metrics) ConnOpened() {
	if m != nil {
		m.Connections.Inc()
	}
}

func (m *Metrics) ConnClosed() {
	if m != nil {
		m.Connections.Dec()
	}
}

func (m *Metrics) ReservationAdded() {
	if m != nil {
		m.Reservations.Inc()
	}
}

func (m *Metrics) ReservationRemoved() {
	if m != nil {
		m.Reservations.Dec()
	}
}

func (m *Metrics) Relayed(event string) {
	if m != nil {
		m.RelayedMessages.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) Dropped(reason string) {
	if m != nil {
		m.DroppedMessages.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) CallInitiated(result string) {
	if m != nil {
		m.CallInitiations.WithLabelValues(result).Inc()
	}
}
