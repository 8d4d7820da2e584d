package obs

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
	messagesSent    *prometheus.CounterVec
	conversations   prometheus.Counter
	realtimeConns   prometheus.Gauge
	realtimeDropped prometheus.Counter
	outboxPublished *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "route", "status"}),
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "route", "status"}),
		messagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Chat messages accepted, by item type",
		}, []string{"item_type"}),
		conversations: factory.NewCounter(prometheus.CounterOpts{
			Name: "chat_conversations_started_total",
			Help: "Conversations created",
		}),
		realtimeConns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "realtime_connections_active",
			Help: "Open realtime websocket connections",
		}),
		realtimeDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "realtime_events_dropped_total",
			Help: "Realtime events dropped for slow subscribers",
		}),
		outboxPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_records_total",
			Help: "Outbox records processed, by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveRequest(method, route, status string, elapsed time.Duration) {
	m.requestDuration.WithLabelValues(method, route, status).Observe(elapsed.Seconds())
	m.requestsTotal.WithLabelValues(method, route, status).Inc()
}

func (m *Metrics) MessageSent(itemType string) {
	if itemType == "" {
		itemType = "unknown"
	}
	m.messagesSent.WithLabelValues(itemType).Inc()
}

func (m *Metrics) ConversationStarted() { m.conversations.Inc() }

func (m *Metrics) ConnectionOpened() { m.realtimeConns.Inc() }

func (m *Metrics) ConnectionClosed() { m.realtimeConns.Dec() }

func (m *Metrics) EventDropped() { m.realtimeDropped.Inc() }

func (m *Metrics) OutboxPublished() { m.outboxPublished.WithLabelValues("published").Inc() }

func (m *Metrics) OutboxFailed() { m.outboxPublished.WithLabelValues("failed").Inc() }
