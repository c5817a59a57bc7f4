package ports

import (
	"context"

	"github.com/kirillkom/legal-doc-agent/internal/core/domain"
)

// ChunkSource loads the chunk store.
type ChunkSource interface {
	LoadChunks(ctx context.Context) ([]domain.Chunk, error)
}

// Embedder builds vectors for chunks and query text.
// Embed returns exactly one vector per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Completer sends one prompt to the language model and returns the raw completion.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// VectorIndexBuilder creates a nearest-neighbour index over one document's vectors.
type VectorIndexBuilder interface {
	Build(ctx context.Context, documentName string, vectors [][]float32) (VectorIndex, error)
}

// VectorIndex answers k-nearest-neighbour queries by squared L2 distance.
type VectorIndex interface {
	Search(ctx context.Context, query []float32, k int) ([]domain.Neighbor, error)
}

// TokenCounter measures text against the context size budget.
type TokenCounter interface {
	Count(text string) int
}

// AnswerPublisher emits answered questions for asynchronous evaluation.
type AnswerPublisher interface {
	PublishAnswerRecorded(ctx context.Context, record domain.AnswerRecord) error
}

// AnswerSubscriber consumes answered-question events.
type AnswerSubscriber interface {
	SubscribeAnswerRecorded(ctx context.Context, handler func(context.Context, domain.AnswerRecord) error) error
}

// EvaluationStore persists answer evaluations.
type EvaluationStore interface {
	Save(ctx context.Context, evaluation *domain.Evaluation) error
	GetByID(ctx context.Context, id string) (*domain.Evaluation, error)
}

// TextExtractor extracts page text from a source document.
type TextExtractor interface {
	ExtractPages(ctx context.Context, path string) ([]domain.Page, error)
}

// Chunker splits a document's pages into chunks.
type Chunker interface {
	Split(documentName string, pages []domain.Page) []domain.Chunk
}
