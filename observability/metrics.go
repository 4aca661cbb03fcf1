package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics records activity on the issuance engine's action surface.
type EngineMetrics struct {
	actions      *prometheus.CounterVec
	failures     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	liquidations prometheus.Counter
}

// RPCMetrics records JSON-RPC handler activity.
type RPCMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	engineMetricsOnce sync.Once
	engineRegistry    *EngineMetrics

	rpcMetricsOnce sync.Once
	rpcRegistry    *RPCMetrics
)

// Engine returns the lazily-initialised engine metrics registry.
func Engine() *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineRegistry = &EngineMetrics{
			actions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "xusd",
				Subsystem: "engine",
				Name:      "actions_total",
				Help:      "Total guarded engine actions segmented by action and outcome.",
			}, []string{"action", "outcome"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "xusd",
				Subsystem: "engine",
				Name:      "failures_total",
				Help:      "Engine action failures segmented by action and error kind.",
			}, []string{"action", "kind"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "xusd",
				Subsystem: "engine",
				Name:      "action_duration_seconds",
				Help:      "Latency distribution for engine actions.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"action"}),
			liquidations: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "xusd",
				Subsystem: "engine",
				Name:      "liquidations_total",
				Help:      "Completed liquidations.",
			}),
		}
		prometheus.MustRegister(
			engineRegistry.actions,
			engineRegistry.failures,
			engineRegistry.latency,
			engineRegistry.liquidations,
		)
	})
	return engineRegistry
}

// ObserveAction records one engine action with its outcome and duration.
func (m *EngineMetrics) ObserveAction(action string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.actions.WithLabelValues(action, outcome).Inc()
	m.latency.WithLabelValues(action).Observe(elapsed.Seconds())
}

// ObserveFailure records the error kind of a failed action.
func (m *EngineMetrics) ObserveFailure(action, kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(action, kind).Inc()
}

// ObserveLiquidation records a completed liquidation.
func (m *EngineMetrics) ObserveLiquidation() {
	if m == nil {
		return
	}
	m.liquidations.Inc()
}

// RPC returns the lazily-initialised RPC metrics registry.
func RPC() *RPCMetrics {
	rpcMetricsOnce.Do(func() {
		rpcRegistry = &RPCMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "xusd",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "xusd",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by method and code.",
			}, []string{"method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "xusd",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(rpcRegistry.requests, rpcRegistry.errors, rpcRegistry.latency)
	})
	return rpcRegistry
}

// ObserveRequest records one RPC request with its outcome and duration.
func (m *RPCMetrics) ObserveRequest(method string, failed bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveError records one RPC error by code.
func (m *RPCMetrics) ObserveError(method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(method, code).Inc()
}
