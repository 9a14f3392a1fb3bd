package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fleetws"

// Registry holds every fleetws collector plus the Go runtime collectors.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Domain event router
var (
	EventsPublished = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Domain events published on the shared channel, by outcome",
		},
		[]string{"outcome"},
	)

	EventsReceived = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Domain events decoded from the shared channel",
		},
	)

	HandlerRuns = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_handler_runs_total",
			Help:      "Handler executions by matched pattern and outcome",
		},
		[]string{"pattern", "outcome"},
	)

	MalformedMessages = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_messages_total",
			Help:      "Broker payloads dropped because they could not be decoded",
		},
		[]string{"channel"},
	)
)

// Refresh signals and gateways
var (
	RefreshEmitted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_signals_emitted_total",
			Help:      "Refresh signals published, by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)

	RefreshReceived = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_signals_received_total",
			Help:      "Refresh signals received from the broker, by channel",
		},
		[]string{"channel"},
	)

	ConnectedClients = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connected_clients",
			Help:      "Open websocket connections per gateway namespace",
		},
		[]string{"namespace"},
	)

	FramesDropped = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_frames_dropped_total",
			Help:      "Frames dropped because a client send buffer was full",
		},
		[]string{"namespace"},
	)
)

// Broker connections
var (
	BrokerDialFailures = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_dial_failures_total",
			Help:      "Failed broker dials, by connection role",
		},
		[]string{"role"},
	)

	KafkaRecords = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_records_total",
			Help:      "Kafka records bridged into the domain event router, by topic and outcome",
		},
		[]string{"topic", "outcome"},
	)
)

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
