// monitor/monitor.go
package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	OnlineClients     prometheus.Gauge
	ActiveRooms       prometheus.Gauge
	RegisteredPlayers prometheus.Gauge
	MessagesReceived  *prometheus.CounterVec
	ProtocolErrors    prometheus.Counter
	MessageLatency    prometheus.Histogram
	Ticks             prometheus.Counter
	TickDuration      prometheus.Histogram
	StateSyncFrames   prometheus.Counter
	PlayersReaped     prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		OnlineClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_clients",
			Help:      "Number of open client connections",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of rooms in the directory",
		}),
		RegisteredPlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registered_players",
			Help:      "Number of players in the registry, connected or not",
		}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of frames received, by message type",
		}, []string{"type"}),
		ProtocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Frames that could not be parsed",
		}),
		MessageLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_latency_seconds",
			Help:      "Message processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Simulation ticks executed",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time spent in one simulation tick",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		StateSyncFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_sync_frames_total",
			Help:      "State sync frames handed to client connections",
		}),
		PlayersReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "players_reaped_total",
			Help:      "Players removed after the disconnect timeout",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.OnlineClients,
		m.ActiveRooms,
		m.RegisteredPlayers,
		m.MessagesReceived,
		m.ProtocolErrors,
		m.MessageLatency,
		m.Ticks,
		m.TickDuration,
		m.StateSyncFrames,
		m.PlayersReaped,
	}
}

// Monitor owns a private registry so several servers can live in one process.
type Monitor struct {
	metrics   *Metrics
	registry  *prometheus.Registry
	startTime time.Time
}

func NewMonitor(namespace string) *Monitor {
	m := &Monitor{
		metrics:   NewMetrics(namespace),
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
	}
	m.registry.MustRegister(m.metrics.collectors()...)
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the monitor was created",
		}, func() float64 { return time.Since(m.startTime).Seconds() }),
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Monitor) IncOnlineClients() {
	m.metrics.OnlineClients.Inc()
}

func (m *Monitor) DecOnlineClients() {
	m.metrics.OnlineClients.Dec()
}

func (m *Monitor) SetActiveRooms(count int) {
	m.metrics.ActiveRooms.Set(float64(count))
}

func (m *Monitor) SetRegisteredPlayers(count int) {
	m.metrics.RegisteredPlayers.Set(float64(count))
}

func (m *Monitor) IncMessagesReceived(msgType string) {
	m.metrics.MessagesReceived.WithLabelValues(msgType).Inc()
}

func (m *Monitor) IncProtocolErrors() {
	m.metrics.ProtocolErrors.Inc()
}

func (m *Monitor) ObserveMessageLatency(duration time.Duration) {
	m.metrics.MessageLatency.Observe(duration.Seconds())
}

func (m *Monitor) ObserveTick(duration time.Duration) {
	m.metrics.Ticks.Inc()
	m.metrics.TickDuration.Observe(duration.Seconds())
}

func (m *Monitor) AddStateSyncFrames(n int) {
	m.metrics.StateSyncFrames.Add(float64(n))
}

func (m *Monitor) IncPlayersReaped() {
	m.metrics.PlayersReaped.Inc()
}
