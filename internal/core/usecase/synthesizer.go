package usecase

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/kirillkom/legal-doc-agent/internal/core/domain"
	"github.com/kirillkom/legal-doc-agent/internal/core/ports"
)

type Synthesizer struct {
	completer ports.Completer
}

func NewSynthesizer(completer ports.Completer) *Synthesizer {
	return &Synthesizer{completer: completer}
}

// Synthesize makes exactly one model call and returns the completion unmodified.
// An empty context still reaches the model, which is instructed to say the answer was not found.
func (s *Synthesizer) Synthesize(ctx context.Context, question, contextText string) (string, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "answer.synthesize")
	defer span.End()

	text, err := s.completer.Complete(ctx, buildSynthesisPrompt(question, contextText))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return "", domain.WrapError(domain.ErrGeneration, "synthesize", err)
	}
	return text, nil
}
