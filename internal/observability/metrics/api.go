package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/legal-doc-agent/internal/core/domain"
)

const namespace = "legal"

// APIMetrics covers the question-answering server: HTTP traffic, answers and the index cache.
type APIMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	answersTotal        *prometheus.CounterVec
	answerDuration      *prometheus.HistogramVec
	subQuestions        prometheus.Histogram
	contextDocuments    prometheus.Histogram
	contextTruncated    prometheus.Counter
	indexedDocuments    prometheus.Gauge
	indexFailures       prometheus.Gauge
	indexBuildDuration  prometheus.Gauge
	promptTokensTotal   *prometheus.CounterVec
	rateLimitedRequests prometheus.Counter
}

func NewAPIMetrics(service string) *APIMetrics {
	registry := prometheus.NewRegistry()
	serviceLabel := prometheus.Labels{"service": service}

	m := &APIMetrics{
		registry: registry,
		service:  service,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		}, []string{"service", "method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "method", "path"}),
		requestInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: serviceLabel,
		}),
		answersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "answers_total",
			Help:      "Answered questions by outcome.",
		}, []string{"service", "status"}),
		answerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "answer_duration_seconds",
			Help:      "End-to-end answer latency in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"service", "status"}),
		subQuestions: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "rag",
			Name:        "sub_questions",
			Help:        "Sub-questions per answered question.",
			Buckets:     []float64{1, 2, 3, 4, 5, 6, 8, 10},
			ConstLabels: serviceLabel,
		}),
		contextDocuments: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "rag",
			Name:        "context_documents",
			Help:        "Documents cited in the aggregated context per answer.",
			Buckets:     []float64{0, 1, 2, 3, 5, 8, 13, 21},
			ConstLabels: serviceLabel,
		}),
		contextTruncated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "rag",
			Name:        "context_truncated_total",
			Help:        "Answers whose context was cut to fit the token budget.",
			ConstLabels: serviceLabel,
		}),
		indexedDocuments: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "index",
			Name:        "documents",
			Help:        "Documents held in the index cache.",
			ConstLabels: serviceLabel,
		}),
		indexFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "index",
			Name:        "failed_documents",
			Help:        "Documents skipped because their index could not be built.",
			ConstLabels: serviceLabel,
		}),
		indexBuildDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "index",
			Name:        "build_duration_seconds",
			Help:        "Duration of the startup index build.",
			ConstLabels: serviceLabel,
		}),
		promptTokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "context_tokens_total",
			Help:      "Tokens of aggregated context sent for synthesis.",
		}, []string{"service", "model"}),
		rateLimitedRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "rate_limited_total",
			Help:        "Requests rejected by the API rate limiter.",
			ConstLabels: serviceLabel,
		}),
	}

	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.requestInFlight,
		m.answersTotal,
		m.answerDuration,
		m.subQuestions,
		m.contextDocuments,
		m.contextTruncated,
		m.indexedDocuments,
		m.indexFailures,
		m.indexBuildDuration,
		m.promptTokensTotal,
		m.rateLimitedRequests,
	)
	return m
}

func (m *APIMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *APIMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *APIMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(m.service, r.Method, r.URL.Path, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(m.service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// AnswerObservation describes one answer attempt.
type AnswerObservation struct {
	Duration         time.Duration
	Err              error
	SubQuestions     int
	Documents        int
	ContextTruncated bool
}

func (m *APIMetrics) RecordAnswer(obs AnswerObservation) {
	status := "success"
	if obs.Err != nil {
		status = outcomeLabel(obs.Err)
	}
	m.answersTotal.WithLabelValues(m.service, status).Inc()
	m.answerDuration.WithLabelValues(m.service, status).Observe(obs.Duration.Seconds())
	if obs.Err != nil {
		return
	}
	m.subQuestions.Observe(float64(obs.SubQuestions))
	m.contextDocuments.Observe(float64(obs.Documents))
	if obs.ContextTruncated {
		m.contextTruncated.Inc()
	}
}

// outcomeLabel keeps the label set bounded to the known error kinds.
func outcomeLabel(err error) string {
	if name := domain.KindName(err); name != "unknown" {
		return name
	}
	return "error"
}

func (m *APIMetrics) RecordIndexBuild(documents, failures int, duration time.Duration) {
	m.indexedDocuments.Set(float64(documents))
	m.indexFailures.Set(float64(failures))
	m.indexBuildDuration.Set(duration.Seconds())
}

func (m *APIMetrics) RecordContextTokens(model string, tokens int) {
	if tokens <= 0 {
		return
	}
	if model == "" {
		model = "unknown"
	}
	m.promptTokensTotal.WithLabelValues(m.service, model).Add(float64(tokens))
}

func (m *APIMetrics) RecordRateLimited() {
	m.rateLimitedRequests.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
