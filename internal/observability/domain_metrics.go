package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlscribe_generations_total",
			Help: "Total number of completion calls by prompt variant.",
		},
		[]string{"variant"},
	)
	generationFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlscribe_generation_failures_total",
			Help: "Total number of failed completion calls.",
		},
	)
	extractionMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlscribe_extraction_misses_total",
			Help: "Total number of model outputs missing the expected delimiters.",
		},
	)
	sentinelFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlscribe_sentinel_fallbacks_total",
			Help: "Total number of times the pipeline substituted the sentinel statement.",
		},
	)
	repairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlscribe_repairs_total",
			Help: "Total number of repair cycles by outcome.",
		},
		[]string{"outcome"},
	)
	pipelineDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlscribe_pipeline_duration_seconds",
			Help:    "End-to-end question pipeline latency.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
		},
	)
	llmInputTokensTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlscribe_llm_input_tokens_total",
			Help: "Total input tokens reported by the completion backend.",
		},
	)
	llmOutputTokensTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlscribe_llm_output_tokens_total",
			Help: "Total output tokens reported by the completion backend.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		generationsTotal,
		generationFailuresTotal,
		extractionMissesTotal,
		sentinelFallbacksTotal,
		repairsTotal,
		pipelineDurationSeconds,
		llmInputTokensTotal,
		llmOutputTokensTotal,
	)
}

func ObserveGeneration(variant string) {
	generationsTotal.WithLabelValues(variant).Inc()
}

func IncrementGenerationFailure() {
	generationFailuresTotal.Inc()
}

func IncrementExtractionMiss() {
	extractionMissesTotal.Inc()
}

func IncrementSentinelFallback() {
	sentinelFallbacksTotal.Inc()
}

func ObserveRepair(succeeded bool) {
	outcome := "failed"
	if succeeded {
		outcome = "succeeded"
	}
	repairsTotal.WithLabelValues(outcome).Inc()
}

func ObservePipelineDuration(elapsed time.Duration) {
	pipelineDurationSeconds.Observe(elapsed.Seconds())
}

func AddLLMTokens(input, output int64) {
	if input > 0 {
		llmInputTokensTotal.Add(float64(input))
	}
	if output > 0 {
		llmOutputTokensTotal.Add(float64(output))
	}
}
