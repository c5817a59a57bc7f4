package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kirillkom/legal-doc-agent/internal/config"
	"github.com/kirillkom/legal-doc-agent/internal/core/domain"
	"github.com/kirillkom/legal-doc-agent/internal/core/ports"
	"github.com/kirillkom/legal-doc-agent/internal/observability/metrics"
)

const maxRequestBodyBytes = 1 << 20

type Router struct {
	cfg       config.Config
	answerer  ports.QuestionAnswerer
	retriever ports.DocumentRetriever
	catalog   ports.DocumentCatalog
	evaluator ports.AnswerEvaluator
	metrics   *metrics.APIMetrics
}

// NewRouter builds the HTTP API. evaluator and apiMetrics may be nil.
func NewRouter(
	cfg config.Config,
	answerer ports.QuestionAnswerer,
	retriever ports.DocumentRetriever,
	catalog ports.DocumentCatalog,
	evaluator ports.AnswerEvaluator,
	apiMetrics *metrics.APIMetrics,
) *Router {
	return &Router{
		cfg:       cfg,
		answerer:  answerer,
		retriever: retriever,
		catalog:   catalog,
		evaluator: evaluator,
		metrics:   apiMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /v1/documents", rt.listDocuments)
	mux.HandleFunc("POST /v1/decompose", rt.decompose)
	mux.HandleFunc("POST /v1/answer", rt.answer)
	mux.HandleFunc("POST /v1/retrieve", rt.retrieve)
	mux.HandleFunc("POST /v1/evaluate", rt.evaluate)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var onReject func()
	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
		onReject = rt.metrics.RecordRateLimited
	}
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIQueueWait)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, onReject)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return otelhttp.NewHandler(handler, "legal-api")
}

type errorResponse struct {
	Error string `json:"error"`
}

type questionRequest struct {
	Question string `json:"question"`
}

type decomposeResponse struct {
	Question     string   `json:"question"`
	SubQuestions []string `json:"sub_questions"`
}

type retrieveRequest struct {
	DocumentName string `json:"doc_name"`
	Query        string `json:"query"`
	TopK         int    `json:"top_k"`
}

type retrieveResponse struct {
	DocumentName string                   `json:"doc_name"`
	Results      []domain.RetrievalResult `json:"results"`
}

type evaluateRequest struct {
	AnswerID     string   `json:"answer_id"`
	Question     string   `json:"question"`
	SubQuestions []string `json:"sub_questions"`
	Context      string   `json:"context"`
	Answer       string   `json:"answer"`
}

type documentsResponse struct {
	Documents []domain.DocumentSummary `json:"documents"`
	Failures  []domain.IndexFailure    `json:"failures"`
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"documents": len(rt.catalog.Documents()),
	})
}

func (rt *Router) listDocuments(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, documentsResponse{
		Documents: rt.catalog.Documents(),
		Failures:  rt.catalog.Failures(),
	})
}

func (rt *Router) decompose(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	subQuestions, err := rt.answerer.Decompose(r.Context(), req.Question)
	if err != nil {
		rt.writeError(w, r, "decompose", err)
		return
	}
	writeJSON(w, http.StatusOK, decomposeResponse{
		Question:     strings.TrimSpace(req.Question),
		SubQuestions: subQuestions,
	})
}

func (rt *Router) answer(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	start := time.Now()
	answer, err := rt.answerer.Answer(r.Context(), req.Question)
	if rt.metrics != nil {
		obs := metrics.AnswerObservation{Duration: time.Since(start), Err: err}
		if answer != nil {
			obs.SubQuestions = len(answer.SubQuestions)
			obs.Documents = len(answer.Sources)
			obs.ContextTruncated = answer.ContextTruncated
		}
		rt.metrics.RecordAnswer(obs)
	}
	if err != nil {
		rt.writeError(w, r, "answer", err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) retrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TopK == 0 {
		req.TopK = rt.cfg.RAGTopK
	}

	results, err := rt.retriever.Retrieve(r.Context(), req.DocumentName, req.Query, req.TopK)
	if err != nil {
		rt.writeError(w, r, "retrieve", err)
		return
	}
	writeJSON(w, http.StatusOK, retrieveResponse{DocumentName: req.DocumentName, Results: results})
}

func (rt *Router) evaluate(w http.ResponseWriter, r *http.Request) {
	if rt.evaluator == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "evaluation is not enabled"})
		return
	}
	var req evaluateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	evaluation, err := rt.evaluator.Evaluate(r.Context(), domain.AnswerRecord{
		ID:           req.AnswerID,
		Question:     req.Question,
		SubQuestions: req.SubQuestions,
		Context:      req.Context,
		Answer:       req.Answer,
		AnsweredAt:   time.Now().UTC(),
	})
	if err != nil {
		rt.writeError(w, r, "evaluate", err)
		return
	}
	writeJSON(w, http.StatusOK, evaluation)
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := mapErrorToHTTPStatus(err)
	slog.LogAttrs(r.Context(), levelForStatus(status), "request_failed",
		slog.String("request_id", requestIDFromContext(r.Context())),
		slog.String("operation", operation),
		slog.Int("status", status),
		slog.Any("error", err),
	)
	writeJSON(w, status, errorResponse{Error: publicErrorMessage(err, status)})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
		case errors.Is(err, io.EOF):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "request body is empty"})
		default:
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid json: %v", err)})
		}
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
