package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "exchange_json_rpc"

// Metrics contains metrics exposed by the gateway.
type Metrics struct {
	registry *prometheus.Registry

	// Relayed requests by final outcome: ok, exhausted
	RelayRequests *prometheus.CounterVec

	// Attempts needed per relayed request
	RelayAttempts prometheus.Histogram

	// Individual attempts that failed, by reason
	RelayFailures *prometheus.CounterVec

	// Peers probed and found unreachable
	PeerProbeFailures prometheus.Counter

	// Size of the working peer set
	WorkingPeers prometheus.Gauge

	// RPC calls by method and result code
	RPCCalls *prometheus.CounterVec
}

// New builds the metrics on a dedicated registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RelayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "requests_total",
			Help:      "Relayed requests by outcome",
		}, []string{"method", "outcome"}),
		RelayAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "attempts",
			Help:      "Attempts used per relayed request",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),
		RelayFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "failures_total",
			Help:      "Failed relay attempts by reason",
		}, []string{"reason"}),
		PeerProbeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "peers",
			Name:      "probe_failures_total",
			Help:      "Peers found unreachable while picking",
		}),
		WorkingPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "peers",
			Name:      "working",
			Help:      "Number of peers in the working set",
		}),
		RPCCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "calls_total",
			Help:      "JSON-RPC calls by method and result code",
		}, []string{"method", "code"}),
	}

	m.registry.MustRegister(
		m.RelayRequests,
		m.RelayAttempts,
		m.RelayFailures,
		m.PeerProbeFailures,
		m.WorkingPeers,
		m.RPCCalls,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRPC counts one RPC call. code 0 means success.
func (m *Metrics) ObserveRPC(method string, code int) {
	if m == nil {
		return
	}
	m.RPCCalls.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
