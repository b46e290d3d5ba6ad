package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is the metrics sink for scoring runs and forecasts.
// Every collector is registered on its own registry so tests and
// multiple servers in one process never collide.
type Recorder struct {
	registry *prometheus.Registry

	runsTotal      *prometheus.CounterVec
	tickersTotal   *prometheus.CounterVec
	runProgress    prometheus.Gauge
	scoreDuration  prometheus.Histogram
	trainDuration  *prometheus.HistogramVec
	macroScore     prometheus.Gauge
	fusionScore    *prometheus.GaugeVec
	providerErrors *prometheus.CounterVec
}

// New creates a Recorder with all collectors registered
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fusion",
				Subsystem: "analysis",
				Name:      "runs_total",
				Help:      "Analysis runs by terminal status",
			},
			[]string{"status"},
		),
		tickersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fusion",
				Subsystem: "analysis",
				Name:      "tickers_total",
				Help:      "Tickers processed by outcome (scored, skipped, failed)",
			},
			[]string{"outcome"},
		),
		runProgress: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "fusion",
				Subsystem: "analysis",
				Name:      "progress_percent",
				Help:      "Progress of the current analysis run",
			},
		),
		scoreDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "fusion",
				Subsystem: "analysis",
				Name:      "ticker_duration_seconds",
				Help:      "Fetch+score latency per ticker",
				Buckets:   prometheus.DefBuckets,
			},
		),
		trainDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "fusion",
				Subsystem: "forecast",
				Name:      "train_duration_seconds",
				Help:      "Forecaster training duration",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"model"},
		),
		macroScore: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "fusion",
				Subsystem: "macro",
				Name:      "score",
				Help:      "Latest macro regime score (0-100)",
			},
		),
		fusionScore: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "fusion",
				Subsystem: "analysis",
				Name:      "fusion_score",
				Help:      "Latest fusion score per ticker",
			},
			[]string{"ticker"},
		),
		providerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fusion",
				Subsystem: "provider",
				Name:      "errors_total",
				Help:      "Market data provider failures by source",
			},
			[]string{"source"},
		),
	}

	r.registry.MustRegister(
		r.runsTotal,
		r.tickersTotal,
		r.runProgress,
		r.scoreDuration,
		r.trainDuration,
		r.macroScore,
		r.fusionScore,
		r.providerErrors,
	)

	return r
}

// Registry exposes the registry for the /metrics handler
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RunFinished records a terminal run status
func (r *Recorder) RunFinished(status string) {
	r.runsTotal.WithLabelValues(status).Inc()
}

// Progress sets the current run progress
func (r *Recorder) Progress(pct int) {
	r.runProgress.Set(float64(pct))
}

// TickerProcessed records one ticker outcome and its latency
func (r *Recorder) TickerProcessed(outcome string, elapsed time.Duration) {
	r.tickersTotal.WithLabelValues(outcome).Inc()
	r.scoreDuration.Observe(elapsed.Seconds())
}

// TrainingFinished records forecaster training time
func (r *Recorder) TrainingFinished(model string, elapsed time.Duration) {
	r.trainDuration.WithLabelValues(model).Observe(elapsed.Seconds())
}

// MacroScore sets the latest macro score
func (r *Recorder) MacroScore(score float64) {
	r.macroScore.Set(score)
}

// FusionScore sets the latest fusion score of a ticker
func (r *Recorder) FusionScore(ticker string, score float64) {
	r.fusionScore.WithLabelValues(ticker).Set(score)
}

// ProviderError records a market data provider failure
func (r *Recorder) ProviderError(source string) {
	r.providerErrors.WithLabelValues(source).Inc()
}
