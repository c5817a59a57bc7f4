package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kirillkom/legal-doc-agent/internal/core/domain"
	"github.com/kirillkom/legal-doc-agent/internal/core/ports"
)

type AnswerService struct {
	decomposer  *Decomposer
	aggregator  *Aggregator
	synthesizer *Synthesizer
	publisher   ports.AnswerPublisher
	now         func() time.Time
}

// NewAnswerService wires the question pipeline. publisher may be nil.
func NewAnswerService(
	decomposer *Decomposer,
	aggregator *Aggregator,
	synthesizer *Synthesizer,
	publisher ports.AnswerPublisher,
) *AnswerService {
	return &AnswerService{
		decomposer:  decomposer,
		aggregator:  aggregator,
		synthesizer: synthesizer,
		publisher:   publisher,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *AnswerService) Decompose(ctx context.Context, question string) ([]string, error) {
	return s.decomposer.Decompose(ctx, question)
}

// Answer runs decompose → aggregate → synthesize. It either returns a complete answer or an error.
func (s *AnswerService) Answer(ctx context.Context, question string) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", fmt.Errorf("question is empty"))
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "answer")
	defer span.End()

	aggregated, err := s.aggregator.Aggregate(ctx, question)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate failed")
		return nil, err
	}

	text, err := s.synthesizer.Synthesize(ctx, question, aggregated.Rendered)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "synthesize failed")
		return nil, err
	}

	sources := make([]domain.Source, 0, len(aggregated.Documents))
	for _, doc := range aggregated.Documents {
		sources = append(sources, domain.Source{DocumentName: doc.DocumentName, ChunkIDs: doc.ChunkIDs()})
	}
	span.SetAttributes(attribute.Int("sources", len(sources)))

	answer := &domain.Answer{
		Question:         question,
		SubQuestions:     aggregated.SubQuestions,
		Text:             text,
		Sources:          sources,
		ContextTruncated: aggregated.Truncated,
		Context:          aggregated.Rendered,
	}
	s.publish(ctx, answer)
	return answer, nil
}

func (s *AnswerService) publish(ctx context.Context, answer *domain.Answer) {
	if s.publisher == nil {
		return
	}
	record := answer.Record(uuid.NewString(), s.now())
	if err := s.publisher.PublishAnswerRecorded(ctx, record); err != nil {
		slog.Warn("answer_publish_failed", "answer_id", record.ID, "error", err)
	}
}
