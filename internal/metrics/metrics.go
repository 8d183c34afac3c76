package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// singleton instance
	instance *Metrics
	once     sync.Once
)

// Metrics holds Prometheus metrics for textai
type Metrics struct {
	// Bridge metrics
	BridgeMessagesTotal       *prometheus.CounterVec
	BridgeRequestsTotal       *prometheus.CounterVec
	BridgeRequestDuration     *prometheus.HistogramVec
	BridgeProtocolErrorsTotal *prometheus.CounterVec
	BridgePendingRequests     prometheus.Gauge

	// Router metrics
	RouterEventsTotal         *prometheus.CounterVec
	RouterDroppedEventsTotal  *prometheus.CounterVec
	RouterSubscriptionsActive prometheus.Gauge

	// Host metrics
	HostWindowsActive     prometheus.Gauge
	HostMenuActionsTotal  *prometheus.CounterVec
	HostDialogsTotal      *prometheus.CounterVec
	HostFileOperations    *prometheus.CounterVec
	HostFileOperationTime *prometheus.HistogramVec

	// Processor metrics
	ProcessorRequestsTotal *prometheus.CounterVec
	ProcessorDuration      prometheus.Histogram

	// API metrics
	APIRequestsTotal *prometheus.CounterVec
}

// GetMetrics returns the metrics singleton
func GetMetrics() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

// newMetrics initializes and registers all metrics
func newMetrics() *Metrics {
	m := &Metrics{}

	// Bridge metrics
	m.BridgeMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textai_bridge_messages_total",
			Help: "Total number of envelopes crossing the bridge",
		},
		[]string{"channel", "kind", "flow"}, // flow: sent, received
	)

	m.BridgeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textai_bridge_requests_total",
			Help: "Total number of settled content->host requests",
		},
		[]string{"channel", "outcome"}, // outcome: ok, null, error
	)

	m.BridgeRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "textai_bridge_request_duration_seconds",
			Help:    "Round-trip time of content->host requests in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16), // from 0.5ms to ~16s
		},
		[]string{"channel"},
	)

	m.BridgeProtocolErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textai_bridge_protocol_errors_total",
			Help: "Total number of envelopes rejected by the channel contract",
		},
		[]string{"code"},
	)

	m.BridgePendingRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "textai_bridge_pending_requests",
			Help: "Number of requests awaiting a reply",
		},
	)

	// Router metrics
	m.RouterEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textai_router_events_total",
			Help: "Total number of notifications delivered to a listener queue",
		},
		[]string{"channel"},
	)

	m.RouterDroppedEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textai_router_dropped_events_total",
			Help: "Total number of notifications not delivered",
		},
		[]string{"channel", "reason"}, // reason: no_listener, queue_full
	)

	m.RouterSubscriptionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "textai_router_subscriptions_active",
			Help: "Number of active listener subscriptions",
		},
	)

	// Host metrics
	m.HostWindowsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "textai_host_windows_active",
			Help: "Number of attached content windows (0 or 1)",
		},
	)

	m.HostMenuActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textai_host_menu_actions_total",
			Help: "Total number of triggered menu items",
		},
		[]string{"item"},
	)

	m.HostDialogsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textai_host_dialogs_total",
			Help: "Total number of dialogs shown",
		},
		[]string{"dialog", "outcome"}, // outcome: confirmed, cancelled, error
	)

	m.HostFileOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textai_host_file_operations_total",
			Help: "Total number of host file reads and writes",
		},
		[]string{"operation", "success"},
	)

	m.HostFileOperationTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "textai_host_file_operation_duration_seconds",
			Help:    "Duration of host file reads and writes in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // from 0.1ms to ~200ms
		},
		[]string{"operation"},
	)

	// Processor metrics
	m.ProcessorRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textai_processor_requests_total",
			Help: "Total number of text transformations",
		},
		[]string{"action", "outcome"},
	)

	m.ProcessorDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "textai_processor_duration_seconds",
			Help:    "Duration of text transformations in seconds",
			Buckets: prometheus.LinearBuckets(0.5, 0.5, 10),
		},
	)

	// API metrics
	m.APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "textai_api_requests_total",
			Help: "Total number of host HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	return m
}
