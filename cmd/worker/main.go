package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kirillkom/legal-doc-agent/internal/bootstrap"
	"github.com/kirillkom/legal-doc-agent/internal/config"
	"github.com/kirillkom/legal-doc-agent/internal/core/domain"
	"github.com/kirillkom/legal-doc-agent/internal/observability/metrics"
)

const serviceName = "legal-worker"

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err)
		os.Exit(1)
	}
	bootstrap.InitObservability(os.Stdout, serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker, err := bootstrap.NewWorker(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer worker.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = worker.Subscriber.SubscribeAnswerRecorded(ctx, func(handlerCtx context.Context, record domain.AnswerRecord) error {
		evalCtx, cancel := context.WithTimeout(handlerCtx, cfg.LLMTimeout+30*time.Second)
		defer cancel()

		workerMetrics.ObserveQueueLag(time.Since(record.AnsweredAt))
		workerMetrics.StartEvaluation()
		start := time.Now()
		evaluation, err := worker.Evaluator.Evaluate(evalCtx, record)
		score := 0
		if evaluation != nil {
			score = evaluation.Score
		}
		workerMetrics.FinishEvaluation(time.Since(start), score, err)
		if err != nil {
			return err
		}
		slog.Info("answer_evaluated", "answer_id", record.ID, "evaluation_id", evaluation.ID, "score", evaluation.Score)
		return nil
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
