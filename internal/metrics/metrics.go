// README: Prometheus collectors for provider calls, benchmark runs and telemetry writes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripbench_provider_calls_total",
		Help: "Provider generation calls by provider and outcome code",
	}, []string{"provider", "outcome"})

	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tripbench_provider_latency_seconds",
		Help:    "Wall time of one generation call including retries",
		Buckets: []float64{1, 2.5, 5, 10, 20, 30, 45, 60, 90, 120, 180, 360},
	}, []string{"provider"})

	ProviderRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripbench_provider_retries_total",
		Help: "Retries issued by the generation client",
	}, []string{"provider", "reason"})

	RunsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tripbench_runs_active",
		Help: "Benchmark runs currently being processed by workers",
	})

	RunsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripbench_runs_finished_total",
		Help: "Benchmark runs reaching a terminal state",
	}, []string{"status"})

	TelemetryWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tripbench_telemetry_write_failures_total",
		Help: "Telemetry events that could not be persisted",
	})

	TelemetryCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripbench_telemetry_cache_total",
		Help: "Telemetry overview cache lookups by result",
	}, []string{"result"})
)
