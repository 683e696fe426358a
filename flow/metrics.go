package flow

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics collects Prometheus metrics for flow runs.
//
// Metrics exposed (all namespaced with "taskflow_"):
//
//  1. node_latency_ms (histogram): node invocation duration, labels node_id, status
//     (success, error).
//  2. inflight_branches (gauge): Parallel children currently running.
//  3. retries_total (counter): retry attempts, labels node_id, reason.
//  4. merge_overwrites_total (counter): tags written by more than one Parallel sibling,
//     label tag.
//  5. timeouts_total (counter): invocations cut off by the timeout middleware, label node_id.
//  6. cache_requests_total (counter): cache middleware lookups, labels node_id, result
//     (hit, miss, bypass).
//  7. runs_total (counter): finished runs, label status.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := flow.NewPrometheusMetrics(registry)
//	f, _ := flow.New(entry, flow.WithMetrics(metrics))
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// A nil *PrometheusMetrics is valid and records nothing.
type PrometheusMetrics struct {
	nodeLatency      *prometheus.HistogramVec
	inflightBranches prometheus.Gauge
	retries          *prometheus.CounterVec
	mergeOverwrites  *prometheus.CounterVec
	timeouts         *prometheus.CounterVec
	cacheRequests    *prometheus.CounterVec
	runs             *prometheus.CounterVec

	mu      sync.RWMutex
	enabled bool
}

// NewPrometheusMetrics creates and registers every metric with registry, or with the
// default registerer when registry is nil.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &PrometheusMetrics{
		enabled: true,

		nodeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "taskflow",
			Name:      "node_latency_ms",
			Help:      "Node invocation duration in milliseconds, middleware included",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"node_id", "status"}),

		inflightBranches: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "taskflow",
			Name:      "inflight_branches",
			Help:      "Number of parallel branches currently running",
		}),

		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskflow",
			Name:      "retries_total",
			Help:      "Retry attempts made by the retry middleware",
		}, []string{"node_id", "reason"}),

		mergeOverwrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskflow",
			Name:      "merge_overwrites_total",
			Help:      "Tags written by more than one parallel sibling, resolved last-declared-wins",
		}, []string{"tag"}),

		timeouts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskflow",
			Name:      "timeouts_total",
			Help:      "Node invocations that exceeded their deadline",
		}, []string{"node_id"}),

		cacheRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskflow",
			Name:      "cache_requests_total",
			Help:      "Cache middleware lookups by result",
		}, []string{"node_id", "result"}),

		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskflow",
			Name:      "runs_total",
			Help:      "Finished flow runs by status",
		}, []string{"status"}),
	}
}

func (pm *PrometheusMetrics) on() bool {
	if pm == nil {
		return false
	}
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.enabled
}

// RecordNodeLatency observes one node invocation. status is "success" or "error".
func (pm *PrometheusMetrics) RecordNodeLatency(nodeID string, latency time.Duration, status string) {
	if !pm.on() {
		return
	}
	pm.nodeLatency.WithLabelValues(nodeID, status).Observe(float64(latency.Milliseconds()))
}

// AddInflightBranches adjusts the running branch gauge by delta.
func (pm *PrometheusMetrics) AddInflightBranches(delta int) {
	if !pm.on() {
		return
	}
	pm.inflightBranches.Add(float64(delta))
}

// IncrementRetries counts one retry attempt.
func (pm *PrometheusMetrics) IncrementRetries(nodeID, reason string) {
	if !pm.on() {
		return
	}
	pm.retries.WithLabelValues(nodeID, reason).Inc()
}

// IncrementMergeOverwrites counts one sibling overwrite of tag.
func (pm *PrometheusMetrics) IncrementMergeOverwrites(tag Tag) {
	if !pm.on() {
		return
	}
	pm.mergeOverwrites.WithLabelValues(string(tag)).Inc()
}

// IncrementTimeouts counts one deadline exceeded by nodeID.
func (pm *PrometheusMetrics) IncrementTimeouts(nodeID string) {
	if !pm.on() {
		return
	}
	pm.timeouts.WithLabelValues(nodeID).Inc()
}

// RecordCacheRequest counts one cache lookup. result is "hit", "miss" or "bypass".
func (pm *PrometheusMetrics) RecordCacheRequest(nodeID, result string) {
	if !pm.on() {
		return
	}
	pm.cacheRequests.WithLabelValues(nodeID, result).Inc()
}

// RecordRun counts one finished run.
func (pm *PrometheusMetrics) RecordRun(status string) {
	if !pm.on() {
		return
	}
	pm.runs.WithLabelValues(status).Inc()
}

// Disable stops metric recording.
func (pm *PrometheusMetrics) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// Enable resumes metric recording after Disable.
func (pm *PrometheusMetrics) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}

// Reset zeroes the gauges. Counters and histograms are cumulative and are left alone.
func (pm *PrometheusMetrics) Reset() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.inflightBranches.Set(0)
}
