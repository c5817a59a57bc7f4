package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/legal-doc-agent/internal/config"
	"github.com/kirillkom/legal-doc-agent/internal/core/domain"
	"github.com/kirillkom/legal-doc-agent/internal/core/ports"
	"github.com/kirillkom/legal-doc-agent/internal/core/usecase"
	"github.com/kirillkom/legal-doc-agent/internal/infrastructure/chunkstore/jsonl"
	"github.com/kirillkom/legal-doc-agent/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/legal-doc-agent/internal/infrastructure/llm/openai"
	"github.com/kirillkom/legal-doc-agent/internal/infrastructure/queue/nats"
	"github.com/kirillkom/legal-doc-agent/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/legal-doc-agent/internal/infrastructure/resilience"
	"github.com/kirillkom/legal-doc-agent/internal/infrastructure/tokens"
	"github.com/kirillkom/legal-doc-agent/internal/infrastructure/vector/flat"
	"github.com/kirillkom/legal-doc-agent/internal/infrastructure/vector/qdrant"
)

// App is the question-answering pipeline with its index cache built once at startup.
type App struct {
	Config config.Config

	Indexes   *usecase.IndexSet
	Answerer  *usecase.AnswerService
	Retriever *usecase.Retriever
	Evaluator *usecase.Evaluator

	IndexBuildDuration time.Duration
	ModelName          string

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	models := NewModels(cfg)
	var source ports.ChunkSource = jsonl.New(cfg.ChunksPath)
	chunks, err := source.LoadChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load chunk store: %w", err)
	}

	vectors, err := newVectorBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	indexes, err := usecase.NewIndexBuilder(models.Embedder, vectors, cfg.IndexWorkers).Build(ctx, chunks)
	if err != nil {
		return nil, err
	}
	buildDuration := time.Since(start)
	if indexes.Len() == 0 {
		slog.Warn("no_documents_indexed", "chunks_path", cfg.ChunksPath, "failures", len(indexes.Failures()))
	}

	counter := tokens.NewCounter(cfg.TokenEncoding)
	if !counter.Exact() {
		slog.Warn("token_encoding_unavailable", "encoding", cfg.TokenEncoding, "fallback", "estimate")
	}

	decomposer := usecase.NewDecomposer(models.Completer, cfg.RAGMaxSubQuestions)
	retriever := usecase.NewRetriever(indexes, models.Embedder)
	aggregator := usecase.NewAggregator(decomposer, retriever, indexes, counter, usecase.AggregatorConfig{
		TopK:         cfg.RAGTopK,
		MaxDocuments: cfg.RAGMaxDocuments,
		Workers:      cfg.RAGFanoutWorkers,
		TokenBudget:  cfg.RAGContextTokenBudget,
	})
	synthesizer := usecase.NewSynthesizer(models.Completer)

	var (
		publisher ports.AnswerPublisher
		closers   []func()
	)
	if strings.TrimSpace(cfg.NATSURL) != "" {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: resilience.NewExecutor(infraResilience(cfg)),
		})
		if err != nil {
			return nil, fmt.Errorf("init answer queue: %w", err)
		}
		publisher = queue
		closers = append(closers, queue.Close)
	}

	return &App{
		Config:             cfg,
		Indexes:            indexes,
		Answerer:           usecase.NewAnswerService(decomposer, aggregator, synthesizer, publisher),
		Retriever:          retriever,
		Evaluator:          usecase.NewEvaluator(models.Completer, nil),
		IndexBuildDuration: buildDuration,
		ModelName:          models.Name,
		closeFn: func() {
			for _, closeFn := range closers {
				closeFn()
			}
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// Worker evaluates recorded answers from the queue and stores the results.
type Worker struct {
	Config     config.Config
	Subscriber ports.AnswerSubscriber
	Evaluator  *usecase.Evaluator

	closeFn func()
}

func NewWorker(ctx context.Context, cfg config.Config) (*Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.NATSURL) == "" {
		return nil, domain.WrapError(domain.ErrConfiguration, "worker", errors.New("NATS_URL is required"))
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewEvaluationRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(infraResilience(cfg)),
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init answer queue: %w", err)
	}

	models := NewModels(cfg)
	return &Worker{
		Config:     cfg,
		Subscriber: queue,
		Evaluator:  usecase.NewEvaluator(models.Completer, repo),
		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (w *Worker) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

// Models holds the embedding and completion clients of the configured provider.
type Models struct {
	Name      string
	Embedder  ports.Embedder
	Completer ports.Completer
}

// NewModels builds the provider clients behind one rate-limited resilience executor.
// cfg must already be validated.
func NewModels(cfg config.Config) Models {
	executor := resilience.NewExecutor(llmResilience(cfg))

	switch cfg.LLMProvider {
	case config.ProviderOllama:
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
			Temperature: cfg.LLMTemperature,
			Timeout:     cfg.LLMTimeout,
			Executor:    executor,
		})
		return Models{
			Name:      cfg.OllamaGenModel,
			Embedder:  ollama.NewEmbedder(client),
			Completer: ollama.NewCompleter(client),
		}
	default:
		client := openai.New(cfg.OpenAIAPIKey, cfg.OpenAIChatModel, cfg.OpenAIEmbedModel, openai.Options{
			BaseURL:     cfg.OpenAIBaseURL,
			Temperature: cfg.LLMTemperature,
			Timeout:     cfg.LLMTimeout,
			Executor:    executor,
		})
		return Models{
			Name:      cfg.OpenAIChatModel,
			Embedder:  openai.NewEmbedder(client),
			Completer: openai.NewCompleter(client),
		}
	}
}

func newVectorBackend(ctx context.Context, cfg config.Config) (ports.VectorIndexBuilder, error) {
	if cfg.VectorBackend != config.VectorBackendQdrant {
		return flat.NewBuilder(), nil
	}
	client := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, resilience.NewExecutor(infraResilience(cfg)))
	// The index cache is rebuilt from the chunk store on every start.
	if err := client.Reset(ctx); err != nil {
		return nil, fmt.Errorf("reset qdrant collection: %w", err)
	}
	return client, nil
}

func llmResilience(cfg config.Config) resilience.Config {
	out := infraResilience(cfg)
	out.RateLimit = resilience.RateLimitPolicy{RPS: cfg.LLMRateLimit, Burst: 1}
	return out
}

func infraResilience(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.Retry.MaxAttempts = cfg.RetryMaxAttempts
	out.Breaker.Enabled = cfg.BreakerEnabled
	return out
}
