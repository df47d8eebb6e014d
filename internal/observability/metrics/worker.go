package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	extractTotal    *prometheus.CounterVec
	extractDuration *prometheus.HistogramVec
	extractInFlight prometheus.Gauge
	queueLag        *prometheus.HistogramVec
	tokensTotal     *prometheus.CounterVec
	costTotal       *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	extractTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mex",
			Subsystem: "worker",
			Name:      "extractions_total",
			Help:      "Total processed extraction jobs by outcome.",
		},
		[]string{"service", "outcome"},
	)
	extractDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mex",
			Subsystem: "worker",
			Name:      "extraction_duration_seconds",
			Help:      "Extraction pipeline duration in seconds by outcome.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60, 90, 120, 180},
		},
		[]string{"service", "outcome"},
	)
	extractInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mex",
			Subsystem: "worker",
			Name:      "extractions_in_flight",
			Help:      "Number of in-flight extraction jobs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mex",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between job submission and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	tokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mex",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Vision model token usage by direction.",
		},
		[]string{"service", "direction", "model"},
	)
	costTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mex",
			Subsystem: "llm",
			Name:      "cost_usd_total",
			Help:      "Estimated vision model spend in USD.",
		},
		[]string{"service", "model"},
	)

	registry.MustRegister(extractTotal, extractDuration, extractInFlight, queueLag, tokensTotal, costTotal)

	return &WorkerMetrics{
		registry:        registry,
		extractTotal:    extractTotal,
		extractDuration: extractDuration,
		extractInFlight: extractInFlight,
		queueLag:        queueLag,
		tokensTotal:     tokensTotal,
		costTotal:       costTotal,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartJob() {
	m.extractInFlight.Inc()
}

func (m *WorkerMetrics) FinishJob() {
	m.extractInFlight.Dec()
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

// PipelineRecorder binds the worker metrics to one service label. It
// satisfies the pipeline's observer contract.
type PipelineRecorder struct {
	metrics *WorkerMetrics
	service string
}

func (m *WorkerMetrics) Recorder(service string) *PipelineRecorder {
	return &PipelineRecorder{metrics: m, service: service}
}

func (r *PipelineRecorder) ObserveExtraction(outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	r.metrics.extractTotal.WithLabelValues(r.service, outcome).Inc()
	if duration > 0 {
		r.metrics.extractDuration.WithLabelValues(r.service, outcome).Observe(duration.Seconds())
	}
}

func (r *PipelineRecorder) ObserveTokens(model string, inputTokens, outputTokens int) {
	if model == "" {
		model = "unknown"
	}
	if inputTokens > 0 {
		r.metrics.tokensTotal.WithLabelValues(r.service, "in", model).Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		r.metrics.tokensTotal.WithLabelValues(r.service, "out", model).Add(float64(outputTokens))
	}
}

func (r *PipelineRecorder) ObserveCost(model string, usd float64) {
	if usd <= 0 {
		return
	}
	if model == "" {
		model = "unknown"
	}
	r.metrics.costTotal.WithLabelValues(r.service, model).Add(usd)
}
