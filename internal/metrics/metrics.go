// Package metrics exposes the engine's prometheus instrumentation: tick
// duration, active node count, queue depth, and executor call latency.
// Grounded on the pack's metrics style (jinterlante1206-AleutianLocal's
// services/trace/graph package): promauto-registered package-level vars
// and a small set of helper methods callers use at the point of work
// rather than reaching into the vars directly.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "relaygrid_engine_tick_duration_seconds",
		Help:    "Time to complete one engine tick (drain kills, drain adds, advance actives).",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
	})

	activeNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relaygrid_active_nodes",
		Help: "Number of nodes currently in the engine's hot active set.",
	})

	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "relaygrid_queue_depth",
		Help: "Node ids reported by the most recent drain of the add or kill queue.",
	}, []string{"queue"})

	executorCallLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relaygrid_executor_call_duration_seconds",
		Help:    "Time an executor call (start/check/kill) took to return.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"plugin_name", "operation"})

	executorCallErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaygrid_executor_call_errors_total",
		Help: "Executor calls that returned a fatal result.",
	}, []string{"plugin_name", "operation"})

	nodesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaygrid_nodes_finished_total",
		Help: "Nodes that reached a terminal status, by outcome.",
	}, []string{"outcome"})
)

// ObserveTick records one completed engine tick's wall-clock duration.
func ObserveTick(d time.Duration) {
	tickDuration.Observe(d.Seconds())
}

// SetActiveNodes records the current size of the engine's active set.
func SetActiveNodes(n int) {
	activeNodes.Set(float64(n))
}

// SetQueueDepth records n against the named queue ("add" or "kill"); the
// engine passes the number of node ids its latest drain of that queue
// reported.
func SetQueueDepth(queue string, n int) {
	queueDepth.WithLabelValues(queue).Set(float64(n))
}

// ObserveExecutorCall records one executor RPC's latency and, if fatal is
// true, increments the matching error counter.
func ObserveExecutorCall(pluginName, operation string, d time.Duration, fatal bool) {
	executorCallLatency.WithLabelValues(pluginName, operation).Observe(d.Seconds())
	if fatal {
		executorCallErrors.WithLabelValues(pluginName, operation).Inc()
	}
}

// ObserveNodeFinished increments the finished-node counter for outcome
// ("successful" or "failed").
func ObserveNodeFinished(outcome string) {
	nodesFinished.WithLabelValues(outcome).Inc()
}

// Handler returns the HTTP handler the server mounts at GET /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
