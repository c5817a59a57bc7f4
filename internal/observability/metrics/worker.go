package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics covers the evaluation worker.
type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	evaluateTotal    *prometheus.CounterVec
	evaluateDuration *prometheus.HistogramVec
	evaluateInFlight prometheus.Gauge
	scores           prometheus.Histogram
	queueLag         prometheus.Histogram
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()
	serviceLabel := prometheus.Labels{"service": service}

	m := &WorkerMetrics{
		registry: registry,
		service:  service,
		evaluateTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "evaluations_total",
			Help:      "Total answer evaluations by status.",
		}, []string{"service", "status"}),
		evaluateDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "evaluation_duration_seconds",
			Help:      "Answer evaluation duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "status"}),
		evaluateInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "evaluations_in_flight",
			Help:        "Number of in-flight answer evaluations.",
			ConstLabels: serviceLabel,
		}),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "evaluation_score",
			Help:        "Distribution of judge scores; 0 means no score was parsed.",
			Buckets:     []float64{0, 1, 2, 3, 4, 5},
			ConstLabels: serviceLabel,
		}),
		queueLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "queue_lag_seconds",
			Help:        "Delay between answering a question and starting its evaluation.",
			Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: serviceLabel,
		}),
	}

	registry.MustRegister(m.evaluateTotal, m.evaluateDuration, m.evaluateInFlight, m.scores, m.queueLag)
	return m
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartEvaluation() {
	m.evaluateInFlight.Inc()
}

func (m *WorkerMetrics) FinishEvaluation(duration time.Duration, score int, err error) {
	m.evaluateInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.evaluateTotal.WithLabelValues(m.service, status).Inc()
	m.evaluateDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
	if err == nil {
		m.scores.Observe(float64(score))
	}
}

func (m *WorkerMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.Observe(lag.Seconds())
}
