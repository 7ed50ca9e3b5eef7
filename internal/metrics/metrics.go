// Package metrics holds the Prometheus collectors for pipeline runs and the
// HTTP API. Collectors register with the default registry on import.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "creature_etl"

const (
	MetricRuns          = "runs_total"
	MetricRunDuration   = "run_duration_seconds"
	MetricRowsExtracted = "rows_extracted_total"
	MetricRowsLoaded    = "rows_loaded_total"
	MetricCleaningOps   = "cleaning_operations_total"
	MetricSinkWrites    = "sink_writes_total"
	MetricRunsInFlight  = "runs_in_flight"
	MetricHTTPRequests  = "http_requests_total"
	MetricHTTPDuration  = "http_request_duration_seconds"
)

var CounterRuns = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricRuns,
		Help:      "Pipeline runs by final status.",
	},
	[]string{"status"},
)

var HistogramRunDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      MetricRunDuration,
		Help:      "Duration of each pipeline stage.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	},
	[]string{"stage"},
)

var CounterRowsExtracted = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricRowsExtracted,
		Help:      "Raw rows read from input files.",
	},
)

var CounterRowsLoaded = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricRowsLoaded,
		Help:      "Cleaned records written, by sink.",
	},
	[]string{"sink"},
)

var CounterCleaningOps = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricCleaningOps,
		Help:      "Cleaning corrections, by operation.",
	},
	[]string{"operation"},
)

var CounterSinkWrites = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricSinkWrites,
		Help:      "Sink write attempts, by sink and result.",
	},
	[]string{"sink", "result"},
)

var GaugeRunsInFlight = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      MetricRunsInFlight,
		Help:      "Pipeline runs currently executing.",
	},
)

var CounterHTTPRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      MetricHTTPRequests,
		Help:      "HTTP requests by route pattern, method and status code.",
	},
	[]string{"route", "method", "code"},
)

var HistogramHTTPDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      MetricHTTPDuration,
		Help:      "HTTP request latency by route pattern.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"route"},
)

func init() {
	prometheus.MustRegister(CounterRuns)
	prometheus.MustRegister(HistogramRunDuration)
	prometheus.MustRegister(CounterRowsExtracted)
	prometheus.MustRegister(CounterRowsLoaded)
	prometheus.MustRegister(CounterCleaningOps)
	prometheus.MustRegister(CounterSinkWrites)
	prometheus.MustRegister(GaugeRunsInFlight)
	prometheus.MustRegister(CounterHTTPRequests)
	prometheus.MustRegister(HistogramHTTPDuration)
}

// ObserveStage records how long a pipeline stage took.
func ObserveStage(stage string, d time.Duration) {
	HistogramRunDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveSink records one sink write. n is only counted on success.
func ObserveSink(sink string, n int, err error) {
	if err != nil {
		CounterSinkWrites.WithLabelValues(sink, "error").Inc()
		return
	}
	CounterSinkWrites.WithLabelValues(sink, "ok").Inc()
	CounterRowsLoaded.WithLabelValues(sink).Add(float64(n))
}

// ObserveOperations counts cleaning corrections by operation.
func ObserveOperations(counts map[string]int) {
	for op, n := range counts {
		CounterCleaningOps.WithLabelValues(op).Add(float64(n))
	}
}
