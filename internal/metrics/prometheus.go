package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "nfcexposure_"

const (
	OutcomeOK       = "ok"
	OutcomeExcluded = "excluded"
	OutcomeError    = "error"

	WindowTask = "task"
	WindowFree = "free"
)

var (
	registerOnce sync.Once

	experimentsTotal   *prometheus.CounterVec
	experimentLatency  *prometheus.HistogramVec
	attackablePercent  *prometheus.HistogramVec
	devicesNormalized  prometheus.Counter
	gridSecondsSummary prometheus.Summary
)

// Init registers the pipeline collectors with the default registry.
func Init() {
	registerOnce.Do(func() {
		experimentsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "experiments_total",
				Help: "Total experiments processed by outcome",
			},
			[]string{"outcome"},
		)
		experimentLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "experiment_duration_seconds",
				Help:    "Experiment processing time in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		)
		attackablePercent = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "attackable_percent",
				Help:    "Share of attackable seconds per window",
				Buckets: prometheus.LinearBuckets(0, 10, 11),
			},
			[]string{"window"},
		)
		devicesNormalized = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "devices_normalized_total",
			Help: "Total device logs projected onto a timeline",
		})
		gridSecondsSummary = prometheus.NewSummary(prometheus.SummaryOpts{
			Name: metricPrefix + "grid_seconds",
			Help: "Timeline length per experiment in seconds",
		})
		prometheus.MustRegister(
			experimentsTotal,
			experimentLatency,
			attackablePercent,
			devicesNormalized,
			gridSecondsSummary,
		)
	})
}

func ObserveExperiment(outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = OutcomeOK
	}
	if experimentsTotal != nil {
		experimentsTotal.WithLabelValues(outcome).Inc()
	}
	if experimentLatency != nil {
		experimentLatency.WithLabelValues(outcome).Observe(duration.Seconds())
	}
}

func ObserveWindow(window string, percent float64) {
	if attackablePercent != nil {
		attackablePercent.WithLabelValues(window).Observe(percent)
	}
}

func ObserveGrid(devices, seconds int) {
	if devicesNormalized != nil {
		devicesNormalized.Add(float64(devices))
	}
	if gridSecondsSummary != nil {
		gridSecondsSummary.Observe(float64(seconds))
	}
}
