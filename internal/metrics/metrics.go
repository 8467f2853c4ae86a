// Package metrics exposes Prometheus collectors for estimation runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeCompleted labels runs that produced a report.
	OutcomeCompleted = "completed"
	// OutcomeFailed labels runs rejected or aborted by an error.
	OutcomeFailed = "failed"
	// OutcomeCancelled labels runs stopped before finishing.
	OutcomeCancelled = "cancelled"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resilience",
			Name:      "runs_total",
			Help:      "Total number of estimation runs, partitioned by outcome and failure model.",
		},
		[]string{"outcome", "model"},
	)

	trialsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "resilience",
			Name:      "trials_total",
			Help:      "Total number of Monte-Carlo trials drawn.",
		},
	)

	runDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "resilience",
			Name:      "run_seconds",
			Help:      "Estimation run latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	endpointProbability = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "resilience",
			Name:      "endpoint_probability",
			Help:      "Estimated success probability per endpoint of the last completed run.",
		},
		[]string{"endpoint"},
	)

	resilienceIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "resilience",
			Name:      "index",
			Help:      "Weighted resilience index R_avg of the last completed run.",
		},
	)
)

// Register attaches the resilience collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		runsTotal,
		trialsTotal,
		runDurationSeconds,
		endpointProbability,
		resilienceIndex,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRun records a run duration with its outcome and model labels.
func ObserveRun(duration time.Duration, outcome, model string) {
	switch outcome {
	case OutcomeCompleted, OutcomeCancelled:
	default:
		outcome = OutcomeFailed
	}
	if model == "" {
		model = "unknown"
	}
	runsTotal.WithLabelValues(outcome, model).Inc()
	if duration < 0 {
		duration = 0
	}
	runDurationSeconds.Observe(duration.Seconds())
}

// AddTrials counts drawn trials.
func AddTrials(n int) {
	if n > 0 {
		trialsTotal.Add(float64(n))
	}
}

// SetEndpointProbabilities replaces the per-endpoint gauges with the
// estimates of the latest completed run.
func SetEndpointProbabilities(probabilities map[string]float64, rAvg float64) {
	endpointProbability.Reset()
	for name, p := range probabilities {
		endpointProbability.WithLabelValues(name).Set(p)
	}
	resilienceIndex.Set(rAvg)
}
