package ports

import (
	"context"

	"github.com/kirillkom/legal-doc-agent/internal/core/domain"
)

// QuestionAnswerer is the inbound contract for question decomposition and answering.
type QuestionAnswerer interface {
	Decompose(ctx context.Context, question string) ([]string, error)
	Answer(ctx context.Context, question string) (*domain.Answer, error)
}

// DocumentRetriever runs a nearest-neighbour lookup inside one indexed document.
type DocumentRetriever interface {
	Retrieve(ctx context.Context, documentName, query string, topK int) ([]domain.RetrievalResult, error)
}

// DocumentCatalog is the read model of the index cache.
type DocumentCatalog interface {
	Documents() []domain.DocumentSummary
	Failures() []domain.IndexFailure
}

// AnswerEvaluator grades an answered question.
type AnswerEvaluator interface {
	Evaluate(ctx context.Context, record domain.AnswerRecord) (*domain.Evaluation, error)
}
