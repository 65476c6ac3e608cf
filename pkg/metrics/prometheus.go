package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Package-level Prometheus collectors, registered once at import time the
// way this stack's own metrics packages expose process-wide gauges and
// counters for a scrape endpoint run by the operator, outside this core's
// boundary.
var (
	ItemsProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawlcore_items_processed_total",
		Help: "Total items that completed a task across all sessions.",
	})

	ItemsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawlcore_items_failed_total",
		Help: "Total items whose task ultimately failed across all sessions.",
	})

	ThroughputGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crawlcore_throughput_items_per_second",
		Help: "Most recently observed items/sec throughput across the active session.",
	})

	ErrorRateGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crawlcore_error_rate",
		Help: "Most recently observed windowed error rate across the active session.",
	})

	OptimizationSuggestionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crawlcore_optimization_suggestions_total",
		Help: "Total OptimizationSuggested events emitted by the aggregator.",
	})
)
