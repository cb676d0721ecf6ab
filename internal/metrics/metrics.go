// Package metrics exposes relay activity as Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/flemzord/tgrelay/pkg/message"
)

const namespace = "tgrelay"

// Relay holds the collectors updated by relays and the gateway.
type Relay struct {
	messages   *prometheus.CounterVec
	pending    prometheus.Gauge
	reports    *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	typing     prometheus.Gauge
	chunkBytes prometheus.Counter
	channels   prometheus.Gauge
	wsClients  prometheus.Gauge
}

// NewRelay creates the collectors and registers them on reg.
func NewRelay(reg prometheus.Registerer) *Relay {
	m := &Relay{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_relayed_total",
			Help:      "Messages relayed between the protocol and channels, by direction.",
		}, []string{"direction"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_media_messages",
			Help:      "Media messages waiting for their payload.",
		}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_reports_total",
			Help:      "Delivery reports published, by status.",
		}, []string{"status"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dropped_total",
			Help:      "Notifications not published, by reason.",
		}, []string{"reason"}),
		typing: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "typing_timers",
			Help:      "Armed local typing reactivation timers.",
		}),
		chunkBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_chunk_bytes_total",
			Help:      "Bytes of media payload received in chunks.",
		}),
		channels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channels",
			Help:      "Open text channels.",
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected websocket clients.",
		}),
	}
	reg.MustRegister(m.messages, m.pending, m.reports, m.dropped, m.typing, m.chunkBytes, m.channels, m.wsClients)
	return m
}

// NewRegistry returns a registry with the Go and process collectors and
// the relay collectors registered.
func NewRegistry() (*prometheus.Registry, *Relay) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, NewRelay(reg)
}

// MessageRelayed counts one message in direction ("incoming", "outgoing",
// "sent").
func (m *Relay) MessageRelayed(direction string) {
	m.messages.WithLabelValues(direction).Inc()
}

// PendingMedia moves the pending media gauge by delta.
func (m *Relay) PendingMedia(delta int) {
	m.pending.Add(float64(delta))
}

// DeliveryReport counts a published delivery report.
func (m *Relay) DeliveryReport(status message.DeliveryStatus) {
	m.reports.WithLabelValues(status.String()).Inc()
}

// NotificationDropped counts a notification that was not published.
func (m *Relay) NotificationDropped(reason string) {
	m.dropped.WithLabelValues(reason).Inc()
}

// TypingTimer moves the typing timer gauge by delta.
func (m *Relay) TypingTimer(delta int) {
	m.typing.Add(float64(delta))
}

// ChunkBytes adds n received payload bytes.
func (m *Relay) ChunkBytes(n int) {
	m.chunkBytes.Add(float64(n))
}

// ChannelOpened increments the open channel gauge.
func (m *Relay) ChannelOpened() { m.channels.Inc() }

// ChannelClosed decrements the open channel gauge.
func (m *Relay) ChannelClosed() { m.channels.Dec() }

// ClientConnected increments the websocket client gauge.
func (m *Relay) ClientConnected() { m.wsClients.Inc() }

// ClientDisconnected decrements the websocket client gauge.
func (m *Relay) ClientDisconnected() { m.wsClients.Dec() }
