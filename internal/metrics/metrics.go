// Package metrics holds the Prometheus collectors for the restock pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registry served on /metrics.
var Registry = prometheus.NewRegistry()

var (
	ForecastFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restock_forecast_fallbacks_total",
			Help: "Forecasts answered by the flat projection, by reason",
		},
		[]string{"reason"},
	)

	SkippedRecords = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "restock_usage_records_skipped_total",
			Help: "Malformed usage records dropped during aggregation",
		},
	)

	Analyses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restock_analyses_total",
			Help: "Restock analyses by outcome",
		},
		[]string{"outcome"},
	)

	AnalysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "restock_analysis_duration_seconds",
			Help:    "Time taken to compute a restock analysis",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"forecaster"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restock_cache_lookups_total",
			Help: "Analysis cache lookups by tier and result",
		},
		[]string{"tier", "result"},
	)

	UrgencyDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restock_urgency_decisions_total",
			Help: "Urgency levels handed out by the advisor",
		},
		[]string{"urgency"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		ForecastFallbacks,
		SkippedRecords,
		Analyses,
		AnalysisDuration,
		CacheLookups,
		UrgencyDecisions,
	)
}

// Handler serves Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
