package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kirillkom/legal-doc-agent/internal/core/domain"
)

func TestAPIMetricsMiddlewareCountsRequests(t *testing.T) {
	m := NewAPIMetrics("legal-api")
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/answer", nil))

	got := testutil.ToFloat64(m.requestTotal.WithLabelValues("legal-api", http.MethodPost, "/v1/answer", "502"))
	if got != 1 {
		t.Fatalf("expected one 502 request, got %v", got)
	}
}

func TestAPIMetricsRecordAnswer(t *testing.T) {
	m := NewAPIMetrics("legal-api")
	m.RecordAnswer(AnswerObservation{Duration: time.Second, SubQuestions: 3, Documents: 2, ContextTruncated: true})
	m.RecordAnswer(AnswerObservation{Duration: time.Second, Err: errors.New("llm down"), ContextTruncated: true})
	m.RecordAnswer(AnswerObservation{Err: domain.WrapError(domain.ErrGeneration, "answer", errors.New("503"))})

	if got := testutil.ToFloat64(m.answersTotal.WithLabelValues("legal-api", "success")); got != 1 {
		t.Fatalf("expected one success, got %v", got)
	}
	if got := testutil.ToFloat64(m.answersTotal.WithLabelValues("legal-api", "error")); got != 1 {
		t.Fatalf("expected one error, got %v", got)
	}
	if got := testutil.ToFloat64(m.answersTotal.WithLabelValues("legal-api", "generation")); got != 1 {
		t.Fatalf("expected one generation failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.contextTruncated); got != 1 {
		t.Fatalf("expected truncation counted once, got %v", got)
	}
}

func TestAPIMetricsHandlerExposesIndexGauges(t *testing.T) {
	m := NewAPIMetrics("legal-api")
	m.RecordIndexBuild(4, 1, 2*time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{`legal_index_documents{service="legal-api"} 4`, `legal_index_failed_documents{service="legal-api"} 1`} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics output:\n%s", want, body)
		}
	}
}

func TestWorkerMetricsFinishEvaluation(t *testing.T) {
	m := NewWorkerMetrics("legal-worker")
	m.StartEvaluation()
	m.FinishEvaluation(time.Second, 4, nil)
	m.StartEvaluation()
	m.FinishEvaluation(time.Second, 0, errors.New("judge failed"))
	m.ObserveQueueLag(-time.Second)

	if got := testutil.ToFloat64(m.evaluateInFlight); got != 0 {
		t.Fatalf("expected no in-flight evaluations, got %v", got)
	}
	if got := testutil.ToFloat64(m.evaluateTotal.WithLabelValues("legal-worker", "error")); got != 1 {
		t.Fatalf("expected one failed evaluation, got %v", got)
	}
	if got := testutil.CollectAndCount(m.scores); got != 1 {
		t.Fatalf("expected one score series, got %d", got)
	}
}
