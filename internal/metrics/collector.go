// Package metrics provides internal metrics collection for the worker
// process. This package is internal and should not be imported by
// external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector holds the worker process's Prometheus instruments: task
// execution (C7), queue depth (C5/C6), rate-limit decisions (C3), and
// LLM Gateway call latency (C9).
type Collector struct {
	tasksTotal   *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec

	queueDepth *prometheus.GaugeVec

	rateLimitDecisions *prometheus.CounterVec

	ledgerCacheHits   *prometheus.CounterVec
	ledgerCacheMisses *prometheus.CounterVec

	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector registers the worker's instruments under namespace and
// returns a Collector ready to record against them.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.tasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_tasks_total",
			Help:      "Total number of task executions by task name and outcome",
		},
		[]string{"task", "status"},
	)

	c.taskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "worker_task_duration_seconds",
			Help:      "Task execution duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"task"},
	)

	c.queueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "broker_queue_depth",
			Help:      "Visible depth of a broker queue",
		},
		[]string{"queue"},
	)

	c.rateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_decisions_total",
			Help:      "Total rate-limit decisions by action and outcome",
		},
		[]string{"action", "decision"}, // decision: allowed, denied
	)

	c.ledgerCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_cache_hits_total",
			Help:      "Total usage-ledger cache hits by TTL tier",
		},
		[]string{"tier"}, // negative, positive, at_limit
	)

	c.ledgerCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_cache_misses_total",
			Help:      "Total usage-ledger cache misses",
		},
		[]string{"tier"},
	)

	c.llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM Gateway calls by provider, model and outcome",
		},
		[]string{"provider", "model", "status"},
	)

	c.llmRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM Gateway call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordTaskExecution records one Task Library invocation's outcome
// and duration.
func (c *Collector) RecordTaskExecution(task, status string, duration time.Duration) {
	c.tasksTotal.WithLabelValues(task, status).Inc()
	c.taskDuration.WithLabelValues(task).Observe(duration.Seconds())
}

// SetQueueDepth reports a broker queue's current visible depth.
func (c *Collector) SetQueueDepth(queue string, depth int) {
	c.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// RecordRateLimitDecision records a rate limiter allow/deny decision
// for a given action kind.
func (c *Collector) RecordRateLimitDecision(action, decision string) {
	c.rateLimitDecisions.WithLabelValues(action, decision).Inc()
}

// RecordLedgerCacheHit records a usage-ledger count read served from
// cache at the given TTL tier.
func (c *Collector) RecordLedgerCacheHit(tier string) {
	c.ledgerCacheHits.WithLabelValues(tier).Inc()
}

// RecordLedgerCacheMiss records a usage-ledger count read that fell
// through to the store.
func (c *Collector) RecordLedgerCacheMiss(tier string) {
	c.ledgerCacheMisses.WithLabelValues(tier).Inc()
}

// RecordLLMRequest records one LLM Gateway call's outcome and duration.
func (c *Collector) RecordLLMRequest(provider, model, status string, duration time.Duration) {
	c.llmRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.llmRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}
